package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/phongnewbie/spamlink/internal/auth"
	"github.com/phongnewbie/spamlink/internal/config"
	"github.com/phongnewbie/spamlink/internal/models"
	"github.com/phongnewbie/spamlink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func setupTestHandler(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.User{}, &models.Link{}, &models.Visit{}, &models.AuditLog{}))

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cfg := config.Config{
		AppEnv:               "test",
		BaseDomain:           "example.com",
		RedirectDelaySeconds: 5,
		GeoAPIURL:            "http://localhost:1", // unreachable: geo resolves to Unknown
		GeoTimeoutSeconds:    1,
	}

	tokens := auth.NewTokenService("test-secret-12345678901234567890123456789012")
	audit := services.NewAuditService(db, logger)
	geo := services.NewGeoService(cfg, logger)
	links := services.NewLinkService(db, audit)
	stats := services.NewStatsService(db, logger, audit)
	export := services.NewExportService(db, logger)

	h := NewHandler(cfg, logger, db, nil, tokens, links, stats, export, geo, audit)
	return h, db
}

func setupTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return h.SetupRouter(nil, "../../web/templates/*.html")
}

// registerTestUser creates a user through the API and returns a bearer token.
func registerTestUser(t *testing.T, r *gin.Engine, username string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token, _ := resp["token"].(string)
	assert.NotEmpty(t, token)
	return token
}

func authedRequest(method, path string, body []byte, token string) *http.Request {
	var req *http.Request
	if body != nil {
		req, _ = http.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
