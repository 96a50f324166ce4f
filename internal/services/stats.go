package services

import (
	"errors"
	"log/slog"
	"time"

	"github.com/phongnewbie/spamlink/internal/models"

	"gorm.io/gorm"
)

// Window constants for the visit aggregation pipeline. A repeated hit from
// the same IP against the same link inside one dedupe bucket counts once.
const (
	aggregateWindow = 24 * time.Hour
	dedupeBucket    = 30 * time.Minute
	onlineWindow    = 5 * time.Minute
)

// AggregateStats is computed fresh per request and never persisted.
type AggregateStats struct {
	TotalVisits     int            `json:"totalVisits"`
	CountryStats    map[string]int `json:"countryStats"`
	OnlineCount     int            `json:"onlineCount"`
	OnlineByCountry map[string]int `json:"onlineByCountry"`
}

// CountryVisits is one row of the per-link raw breakdown.
type CountryVisits struct {
	Country   string    `json:"country"`
	Visits    int       `json:"visits"`
	LastVisit time.Time `json:"lastVisit"`
}

// LinkStats is the non-deduplicated per-link report.
type LinkStats struct {
	TotalVisits  int             `json:"totalVisits"`
	CountryStats []CountryVisits `json:"countryStats"`
}

type StatsService struct {
	db           *gorm.DB
	logger       *slog.Logger
	auditService *AuditService
	now          func() time.Time
}

func NewStatsService(db *gorm.DB, logger *slog.Logger, auditService *AuditService) *StatsService {
	return &StatsService{
		db:           db,
		logger:       logger,
		auditService: auditService,
		now:          time.Now,
	}
}

// visitGroup identifies one unique visit: an IP hitting a link within one
// dedupe bucket.
type visitGroup struct {
	ip     string
	linkID uint
	bucket int64
}

// Aggregate computes unique-visit statistics over the user's links for the
// trailing 24 hours. Visits are deduplicated by (IP, link, 30-minute
// bucket); the most recent record of each group is its representative.
// "Online" means the representative falls inside the trailing 5 minutes.
func (s *StatsService) Aggregate(userID uint) (*AggregateStats, error) {
	linkIDs, err := s.ownedLinkIDs(userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := &AggregateStats{
		CountryStats:    map[string]int{},
		OnlineByCountry: map[string]int{},
	}
	if len(linkIDs) == 0 {
		return stats, nil
	}

	windowStart := now.Add(-aggregateWindow)

	var visits []models.Visit
	err = s.db.
		Where("link_id IN ? AND created_at >= ?", linkIDs, windowStart).
		Order("created_at desc").
		Find(&visits).Error
	if err != nil {
		return nil, err
	}

	// Visits arrive newest-first, so the first record seen per group is the
	// most recent one and becomes the representative.
	bucketMillis := dedupeBucket.Milliseconds()
	representatives := make(map[visitGroup]*models.Visit)
	order := make([]visitGroup, 0, len(visits))
	for i := range visits {
		v := &visits[i]
		ms := v.CreatedAt.UnixMilli()
		key := visitGroup{ip: v.IP, linkID: v.LinkID, bucket: ms - ms%bucketMillis}
		if _, seen := representatives[key]; !seen {
			representatives[key] = v
			order = append(order, key)
		}
	}

	onlineStart := now.Add(-onlineWindow)
	for _, key := range order {
		v := representatives[key]
		country := v.Country
		if country == "" {
			country = "Unknown"
		}

		stats.TotalVisits++
		stats.CountryStats[country]++

		if !v.CreatedAt.Before(onlineStart) {
			stats.OnlineCount++
			stats.OnlineByCountry[country]++
		}
	}

	return stats, nil
}

// StatsForLink returns raw (non-deduplicated) per-country visit counts for
// one owned link.
func (s *StatsService) StatsForLink(userID, linkID uint) (*LinkStats, error) {
	var link models.Link
	err := s.db.Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}

	var rows []CountryVisits
	err = s.db.Model(&models.Visit{}).
		Where("link_id = ?", linkID).
		Select("country, count(*) as visits, max(created_at) as last_visit").
		Group("country").
		Order("visits desc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &LinkStats{CountryStats: rows}
	for _, row := range rows {
		stats.TotalVisits += row.Visits
	}
	return stats, nil
}

// ClearVisits deletes every visit recorded against the user's links.
func (s *StatsService) ClearVisits(userID uint, ip string) error {
	linkIDs, err := s.ownedLinkIDs(userID)
	if err != nil {
		return err
	}
	if len(linkIDs) == 0 {
		return nil
	}

	if err := s.db.Where("link_id IN ?", linkIDs).Delete(&models.Visit{}).Error; err != nil {
		return err
	}

	s.auditService.LogAction(&userID, "CLEAR_VISITS", "", nil, ip)
	return nil
}

func (s *StatsService) ownedLinkIDs(userID uint) ([]uint, error) {
	var linkIDs []uint
	err := s.db.Model(&models.Link{}).Where("user_id = ?", userID).Pluck("id", &linkIDs).Error
	return linkIDs, err
}
