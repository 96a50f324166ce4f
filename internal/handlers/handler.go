package handlers

import (
	"log/slog"

	"github.com/phongnewbie/spamlink/internal/auth"
	"github.com/phongnewbie/spamlink/internal/config"
	"github.com/phongnewbie/spamlink/internal/services"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Handler struct {
	cfg           config.Config
	logger        *slog.Logger
	db            *gorm.DB
	rdb           *redis.Client
	tokens        *auth.TokenService
	linkService   *services.LinkService
	statsService  *services.StatsService
	exportService *services.ExportService
	geoService    *services.GeoService
	auditService  *services.AuditService
}

func NewHandler(
	cfg config.Config,
	logger *slog.Logger,
	db *gorm.DB,
	rdb *redis.Client,
	tokens *auth.TokenService,
	linkService *services.LinkService,
	statsService *services.StatsService,
	exportService *services.ExportService,
	geoService *services.GeoService,
	auditService *services.AuditService,
) *Handler {
	return &Handler{
		cfg:           cfg,
		logger:        logger,
		db:            db,
		rdb:           rdb,
		tokens:        tokens,
		linkService:   linkService,
		statsService:  statsService,
		exportService: exportService,
		geoService:    geoService,
		auditService:  auditService,
	}
}
