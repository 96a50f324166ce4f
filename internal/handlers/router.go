package handlers

import (
	"github.com/phongnewbie/spamlink/internal/services"

	"github.com/gin-gonic/gin"
)

func (h *Handler) SetupRouter(rateLimiter *services.IPRateLimiter, templatePath string) *gin.Engine {
	r := gin.Default()

	if templatePath != "" {
		r.LoadHTMLGlob(templatePath)
	}

	r.Use(h.RequestID())
	r.Use(h.SecurityHeaders())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy"})
	})

	// Public Routes
	r.POST("/api/register", h.RegisterUser)
	r.POST("/api/login", h.LoginUser)

	// Protected API
	api := r.Group("/api")
	api.Use(h.AuthRequired())
	{
		api.GET("/profile", h.GetProfile)

		api.POST("/linkInfo", h.CreateLink)
		api.GET("/linkInfo", h.ListLinks)
		api.DELETE("/linkInfo/:id", h.DeleteLink)
		api.PUT("/linkInfo/:id", h.RegenerateLink)
		api.GET("/linkInfo/:id/stats", h.ShowLinkStats)
		api.GET("/linkInfo/:id/qr", h.ShowLinkQR)

		api.GET("/linkInfo/stats/all", h.ShowAggregateStats)
		api.GET("/linkInfo/stats/download", h.DownloadStats)
		api.GET("/linkInfo/stats/download/:country", h.DownloadStats)
		api.DELETE("/linkInfo/stats/clear", h.ClearStats)
	}

	// Tracking path; rate limited independently of the owner API.
	track := r.Group("/r")
	if rateLimiter != nil {
		track.Use(h.RateLimitMiddleware(rateLimiter))
	}
	track.GET("/:subdomain", h.TrackVisit)

	return r
}
