package services

import (
	"errors"
	"time"

	"github.com/phongnewbie/spamlink/internal/models"
	"github.com/phongnewbie/spamlink/pkg/utils"

	"gorm.io/gorm"
)

var (
	ErrSubdomainTaken = errors.New("subdomain already exists")
	ErrLinkNotFound   = errors.New("link not found")
)

const subdomainLength = 8

type CreateLinkDTO struct {
	UserID      uint
	Subdomain   string // optional; generated when empty
	URL         string
	OriginalURL string
	Direct      bool
	Features    models.LinkFeatures
	IPAddress   string // for the audit trail
}

type LinkService struct {
	db                 *gorm.DB
	auditService       *AuditService
	subdomainGenerator func(int) string
}

func NewLinkService(db *gorm.DB, auditService *AuditService) *LinkService {
	return &LinkService{
		db:                 db,
		auditService:       auditService,
		subdomainGenerator: utils.GenerateSubdomain,
	}
}

// Create mints a new cloaking link. A caller-supplied subdomain candidate is
// rejected on collision; otherwise candidates are generated until one is
// free.
func (s *LinkService) Create(dto CreateLinkDTO) (*models.Link, error) {
	var subdomain string
	if dto.Subdomain != "" {
		taken, err := s.subdomainTaken(dto.Subdomain, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrSubdomainTaken
		}
		subdomain = dto.Subdomain
	} else {
		for {
			subdomain = s.subdomainGenerator(subdomainLength)
			taken, err := s.subdomainTaken(subdomain, 0)
			if err != nil {
				return nil, err
			}
			if !taken {
				break
			}
		}
	}

	link := models.Link{
		UserID:      dto.UserID,
		Subdomain:   subdomain,
		URL:         dto.URL,
		OriginalURL: dto.OriginalURL,
		Direct:      dto.Direct,
		Features:    dto.Features,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := s.db.Create(&link).Error; err != nil {
		return nil, err
	}

	s.auditService.LogAction(&dto.UserID, "CREATE_LINK", link.Subdomain, map[string]interface{}{
		"original_url": dto.OriginalURL,
	}, dto.IPAddress)

	return &link, nil
}

// List returns the user's links, newest first.
func (s *LinkService) List(userID uint) ([]models.Link, error) {
	var links []models.Link
	err := s.db.Where("user_id = ?", userID).Order("created_at desc").Find(&links).Error
	return links, err
}

// Get returns one link, owned by userID, or ErrLinkNotFound.
func (s *LinkService) Get(userID, linkID uint) (*models.Link, error) {
	var link models.Link
	err := s.db.Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Delete removes a link the user owns. Visits against it stay: they are
// removed only through the explicit bulk clear.
func (s *LinkService) Delete(userID, linkID uint, ip string) error {
	result := s.db.Where("id = ? AND user_id = ?", linkID, userID).Delete(&models.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	s.auditService.LogAction(&userID, "DELETE_LINK", "", nil, ip)
	return nil
}

// Regenerate replaces a link's subdomain and public URL while carrying the
// destination and display features over from the original.
func (s *LinkService) Regenerate(userID, linkID uint, subdomain, url, ip string) (*models.Link, error) {
	link, err := s.Get(userID, linkID)
	if err != nil {
		return nil, err
	}

	taken, err := s.subdomainTaken(subdomain, link.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrSubdomainTaken
	}

	updates := map[string]interface{}{
		"subdomain":  subdomain,
		"url":        url,
		"updated_at": time.Now(),
	}
	if err := s.db.Model(link).Updates(updates).Error; err != nil {
		return nil, err
	}

	s.auditService.LogAction(&userID, "REGENERATE_LINK", subdomain, map[string]interface{}{
		"previous_subdomain": link.Subdomain,
	}, ip)

	link.Subdomain = subdomain
	link.URL = url
	return link, nil
}

// FindBySubdomain is the tracking-path lookup; ownership is irrelevant there.
func (s *LinkService) FindBySubdomain(subdomain string) (*models.Link, error) {
	var link models.Link
	err := s.db.Where("subdomain = ?", subdomain).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// subdomainTaken reports whether the subdomain is held by any link other
// than excludeID.
func (s *LinkService) subdomainTaken(subdomain string, excludeID uint) (bool, error) {
	var existing models.Link
	err := s.db.Where("subdomain = ?", subdomain).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return existing.ID != excludeID, nil
}
