package models

import (
	"time"
)

// Via is the structured client-hint bundle captured alongside the raw
// user-agent. Fields are best-effort; missing headers leave them empty.
type Via struct {
	Browser  string `gorm:"size:255" json:"browser,omitempty"`
	Platform string `gorm:"size:100" json:"platform,omitempty"`
	Mobile   string `gorm:"size:10" json:"mobile,omitempty"`
	Language string `gorm:"size:255" json:"language,omitempty"`
	Referrer string `gorm:"size:255;default:'direct'" json:"referrer,omitempty"`
}

// Visit is one observed hit against a Link. Rows are append-only: created
// once per hit, never updated, deletable only through the bulk clear.
type Visit struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	LinkID uint   `gorm:"not null;index" json:"link_id"`
	Link   *Link  `gorm:"foreignKey:LinkID" json:"link,omitempty"`
	IP     string `gorm:"size:45;not null" json:"ip"`

	Country     string `gorm:"size:100;not null;default:'Unknown'" json:"country"`
	CountryCode string `gorm:"size:100;not null;default:'Unknown'" json:"countryCode"`
	Region      string `gorm:"size:100" json:"region,omitempty"`
	City        string `gorm:"size:100" json:"city,omitempty"`
	Timezone    string `gorm:"size:100" json:"timezone,omitempty"`
	Currency    string `gorm:"size:20" json:"currency,omitempty"`
	Languages   string `gorm:"size:255" json:"languages,omitempty"`
	CallingCode string `gorm:"size:20" json:"callingCode,omitempty"`

	UserAgent string    `gorm:"type:text;not null" json:"userAgent"`
	Via       Via       `gorm:"embedded;embeddedPrefix:via_" json:"via"`
	CreatedAt time.Time `gorm:"index;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

func (Visit) TableName() string {
	return "visit_infos"
}
