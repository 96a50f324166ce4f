package services

import (
	"testing"
	"time"

	"github.com/phongnewbie/spamlink/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupStatsTest(t *testing.T) (*StatsService, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.User{}, &models.Link{}, &models.Visit{}, &models.AuditLog{}))

	audit := NewAuditService(db, testLogger())
	return NewStatsService(db, testLogger(), audit), db
}

func createTestLink(t *testing.T, db *gorm.DB, userID uint, subdomain string) models.Link {
	t.Helper()
	link := models.Link{
		UserID:      userID,
		Subdomain:   subdomain,
		URL:         "https://" + subdomain + ".example.com",
		OriginalURL: "https://target.example.com",
	}
	assert.NoError(t, db.Create(&link).Error)
	return link
}

func createVisit(t *testing.T, db *gorm.DB, linkID uint, ip, country string, at time.Time) {
	t.Helper()
	visit := models.Visit{
		LinkID:    linkID,
		IP:        ip,
		Country:   country,
		UserAgent: "test-agent",
		CreatedAt: at,
	}
	assert.NoError(t, db.Create(&visit).Error)
}

func TestAggregateDeduplicatesWithinBucket(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	link := createTestLink(t, db, 1, "promo")

	// Three hits from the same IP inside one 30-minute bucket count once.
	base := now.Add(-10 * time.Minute).Truncate(dedupeBucket)
	createVisit(t, db, link.ID, "1.2.3.4", "Vietnam", base)
	createVisit(t, db, link.ID, "1.2.3.4", "Vietnam", base.Add(5*time.Minute))
	createVisit(t, db, link.ID, "1.2.3.4", "Vietnam", base.Add(10*time.Minute))

	stats, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVisits)
	assert.Equal(t, map[string]int{"Vietnam": 1}, stats.CountryStats)
}

func TestAggregateSeparateBucketsCountSeparately(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	link := createTestLink(t, db, 1, "promo")

	// Same IP and link, but in two different 30-minute buckets.
	bucketA := now.Add(-2 * time.Hour).Truncate(dedupeBucket)
	bucketB := bucketA.Add(dedupeBucket)
	createVisit(t, db, link.ID, "1.2.3.4", "Vietnam", bucketA.Add(time.Minute))
	createVisit(t, db, link.ID, "1.2.3.4", "Vietnam", bucketB.Add(time.Minute))

	stats, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVisits)
	assert.Equal(t, map[string]int{"Vietnam": 2}, stats.CountryStats)
}

func TestAggregateDistinctIPsAndLinks(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	linkA := createTestLink(t, db, 1, "alpha")
	linkB := createTestLink(t, db, 1, "beta")

	at := now.Add(-2 * time.Minute)
	createVisit(t, db, linkA.ID, "1.2.3.4", "US", at)
	createVisit(t, db, linkA.ID, "5.6.7.8", "DE", at)
	createVisit(t, db, linkB.ID, "1.2.3.4", "US", at)

	stats, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, 3, stats.TotalVisits)
	assert.Equal(t, map[string]int{"US": 2, "DE": 1}, stats.CountryStats)
	assert.Equal(t, 3, stats.OnlineCount)
	assert.Equal(t, map[string]int{"US": 2, "DE": 1}, stats.OnlineByCountry)
}

func TestAggregateWindowBoundaries(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	link := createTestLink(t, db, 1, "promo")

	// Outside the 24h aggregation window: excluded entirely.
	createVisit(t, db, link.ID, "9.9.9.9", "FR", now.Add(-aggregateWindow-time.Minute))
	// Inside the 24h window but outside the 5-minute online window.
	createVisit(t, db, link.ID, "1.1.1.1", "US", now.Add(-onlineWindow-time.Millisecond))
	// Just inside the online window.
	createVisit(t, db, link.ID, "2.2.2.2", "DE", now.Add(-onlineWindow+time.Millisecond))

	stats, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVisits)
	assert.Equal(t, 1, stats.OnlineCount)
	assert.Equal(t, map[string]int{"DE": 1}, stats.OnlineByCountry)
}

func TestAggregateUnknownCountryBucket(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	link := createTestLink(t, db, 1, "promo")
	createVisit(t, db, link.ID, "1.2.3.4", "", now.Add(-time.Minute))

	stats, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, map[string]int{"Unknown": 1}, stats.CountryStats)
}

func TestAggregateOwnershipIsolation(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	mine := createTestLink(t, db, 1, "mine")
	theirs := createTestLink(t, db, 2, "theirs")

	createVisit(t, db, mine.ID, "1.2.3.4", "US", now.Add(-time.Minute))
	createVisit(t, db, theirs.ID, "5.6.7.8", "DE", now.Add(-time.Minute))

	stats, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVisits)
	assert.Equal(t, map[string]int{"US": 1}, stats.CountryStats)
}

func TestAggregateIdempotent(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	link := createTestLink(t, db, 1, "promo")
	createVisit(t, db, link.ID, "1.2.3.4", "US", now.Add(-time.Minute))
	createVisit(t, db, link.ID, "5.6.7.8", "DE", now.Add(-3*time.Hour))

	first, err := svc.Aggregate(1)
	assert.NoError(t, err)
	second, err := svc.Aggregate(1)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAggregateNoLinks(t *testing.T) {
	svc, _ := setupStatsTest(t)

	stats, err := svc.Aggregate(99)
	assert.NoError(t, err)
	assert.Equal(t, 0, stats.TotalVisits)
	assert.Empty(t, stats.CountryStats)
	assert.Equal(t, 0, stats.OnlineCount)
}

func TestStatsForLink(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Now()

	link := createTestLink(t, db, 1, "promo")
	createVisit(t, db, link.ID, "1.2.3.4", "US", now.Add(-time.Hour))
	createVisit(t, db, link.ID, "1.2.3.4", "US", now.Add(-time.Minute))
	createVisit(t, db, link.ID, "5.6.7.8", "DE", now.Add(-time.Minute))

	t.Run("Raw Counts By Country", func(t *testing.T) {
		stats, err := svc.StatsForLink(1, link.ID)
		assert.NoError(t, err)
		assert.Equal(t, 3, stats.TotalVisits)
		assert.Len(t, stats.CountryStats, 2)
		assert.Equal(t, "US", stats.CountryStats[0].Country)
		assert.Equal(t, 2, stats.CountryStats[0].Visits)
	})

	t.Run("Not Owned", func(t *testing.T) {
		_, err := svc.StatsForLink(2, link.ID)
		assert.ErrorIs(t, err, ErrLinkNotFound)
	})
}

func TestClearVisits(t *testing.T) {
	svc, db := setupStatsTest(t)
	now := time.Now()

	mine := createTestLink(t, db, 1, "mine")
	theirs := createTestLink(t, db, 2, "theirs")
	createVisit(t, db, mine.ID, "1.2.3.4", "US", now)
	createVisit(t, db, theirs.ID, "5.6.7.8", "DE", now)

	assert.NoError(t, svc.ClearVisits(1, "127.0.0.1"))

	var mineCount, theirsCount int64
	db.Model(&models.Visit{}).Where("link_id = ?", mine.ID).Count(&mineCount)
	db.Model(&models.Visit{}).Where("link_id = ?", theirs.ID).Count(&theirsCount)
	assert.Equal(t, int64(0), mineCount)
	assert.Equal(t, int64(1), theirsCount)
}
