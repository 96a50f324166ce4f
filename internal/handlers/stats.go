package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/phongnewbie/spamlink/internal/services"

	"github.com/gin-gonic/gin"
)

// ShowAggregateStats returns the deduplicated unique-visit statistics for
// every link the caller owns.
func (h *Handler) ShowAggregateStats(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	stats, err := h.statsService.Aggregate(userID)
	if err != nil {
		h.logger.Error("Failed to aggregate stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ShowLinkStats returns the raw per-country breakdown for one link.
func (h *Handler) ShowLinkStats(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	linkID, ok := pathID(c)
	if !ok {
		return
	}

	stats, err := h.statsService.StatsForLink(userID, linkID)
	if errors.Is(err, services.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch link stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching statistics"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// DownloadStats streams the visit export spreadsheet, optionally filtered
// to one country via the path parameter.
func (h *Handler) DownloadStats(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	country := c.Param("country")

	data, filename, err := h.exportService.Export(userID, country)
	if err != nil {
		h.logger.Error("Failed to export visits", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error downloading statistics"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ClearStats deletes every visit recorded against the caller's links.
func (h *Handler) ClearStats(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	if err := h.statsService.ClearVisits(userID, visitorIP(c)); err != nil {
		h.logger.Error("Failed to clear visits", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error clearing statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All visit data cleared"})
}
