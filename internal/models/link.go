package models

import (
	"time"
)

// LinkFeatures is the display metadata rendered on the interstitial page
// and in link previews. Fixed shape; absent fields stay empty.
type LinkFeatures struct {
	Title        string `gorm:"size:255" json:"title,omitempty"`
	Body         string `gorm:"type:text" json:"body,omitempty"`
	ShareImage   string `gorm:"type:text" json:"shareImage,omitempty"`
	PreviewImage string `gorm:"type:text" json:"previewImage,omitempty"`
	Language     string `gorm:"size:10" json:"language,omitempty"`
}

// Link is one cloaking endpoint: a unique tracking subdomain that forwards
// visitors to OriginalURL while their visit is recorded.
type Link struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"not null;index" json:"user_id"`
	User        *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Subdomain   string `gorm:"unique;not null;size:63;index" json:"subdomain"`
	URL         string `gorm:"not null;type:text" json:"url"`
	OriginalURL string `gorm:"not null;type:text" json:"originalUrl"`

	// Direct switches the tracking response from the interstitial page to
	// an immediate 302.
	Direct bool `gorm:"default:false" json:"direct"`

	Features  LinkFeatures `gorm:"embedded;embeddedPrefix:feature_" json:"features"`
	CreatedAt time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	// No delete cascade: visits outlive their link and are removed only via
	// the explicit bulk clear.
	Visits []Visit `gorm:"foreignKey:LinkID" json:"visits,omitempty"`
}

func (Link) TableName() string {
	return "link_infos"
}
