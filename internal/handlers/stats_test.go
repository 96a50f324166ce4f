package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/phongnewbie/spamlink/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func seedVisits(t *testing.T, db *gorm.DB, linkID uint, country string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		visit := models.Visit{
			LinkID:      linkID,
			IP:          fmt.Sprintf("203.0.113.%d", i+1),
			Country:     country,
			CountryCode: strings.ToUpper(country[:2]),
			CreatedAt:   time.Now(),
		}
		assert.NoError(t, db.Create(&visit).Error)
	}
}

func TestAggregateStatsEndpoint(t *testing.T) {
	h, db := setupTestHandler(t)
	r := setupTestRouter(h)
	token := registerTestUser(t, r, "statsuser")

	w := httptest.NewRecorder()
	body := []byte(`{"url":"https://statlink.example.com","originalUrl":"https://example.com","subdomain":"statlink"}`)
	r.ServeHTTP(w, authedRequest("POST", "/api/linkInfo", body, token))
	assert.Equal(t, http.StatusCreated, w.Code)

	var link models.Link
	assert.NoError(t, db.Where("subdomain = ?", "statlink").First(&link).Error)
	seedVisits(t, db, link.ID, "Germany", 3)

	t.Run("Aggregate Shape", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("GET", "/api/linkInfo/stats/all", nil, token))
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			TotalVisits     int            `json:"totalVisits"`
			CountryStats    map[string]int `json:"countryStats"`
			OnlineCount     int            `json:"onlineCount"`
			OnlineByCountry map[string]int `json:"onlineByCountry"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.TotalVisits)
		assert.Equal(t, 3, resp.CountryStats["Germany"])
		assert.Equal(t, 3, resp.OnlineCount)
		assert.Equal(t, 3, resp.OnlineByCountry["Germany"])
	})

	t.Run("Per-Link Stats", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("GET", fmt.Sprintf("/api/linkInfo/%d/stats", link.ID), nil, token))
		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			TotalVisits  int `json:"totalVisits"`
			CountryStats []struct {
				Country string `json:"country"`
				Visits  int    `json:"visits"`
			} `json:"countryStats"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.TotalVisits)
		if assert.Len(t, resp.CountryStats, 1) {
			assert.Equal(t, "Germany", resp.CountryStats[0].Country)
			assert.Equal(t, 3, resp.CountryStats[0].Visits)
		}
	})

	t.Run("Per-Link Stats Foreign Link", func(t *testing.T) {
		other := registerTestUser(t, r, "statsother")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("GET", fmt.Sprintf("/api/linkInfo/%d/stats", link.ID), nil, other))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Download Spreadsheet", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("GET", "/api/linkInfo/stats/download", nil, token))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "all_via_")

		f, err := excelize.OpenReader(w.Body)
		assert.NoError(t, err)
		defer f.Close()
		assert.Contains(t, f.GetSheetList(), "Via Germany")
	})

	t.Run("Download Filtered", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("GET", "/api/linkInfo/stats/download/Germany", nil, token))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "via_Germany_")
	})

	t.Run("Clear Visits", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("DELETE", "/api/linkInfo/stats/clear", nil, token))
		assert.Equal(t, http.StatusOK, w.Code)

		var count int64
		db.Model(&models.Visit{}).Where("link_id = ?", link.ID).Count(&count)
		assert.Equal(t, int64(0), count)

		w = httptest.NewRecorder()
		r.ServeHTTP(w, authedRequest("GET", "/api/linkInfo/stats/all", nil, token))
		var resp struct {
			TotalVisits int `json:"totalVisits"`
		}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 0, resp.TotalVisits)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/linkInfo/stats/all", nil)
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
