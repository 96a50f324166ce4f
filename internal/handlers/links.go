package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/phongnewbie/spamlink/internal/models"
	"github.com/phongnewbie/spamlink/internal/services"

	"github.com/gin-gonic/gin"
)

type CreateLinkRequest struct {
	Subdomain   string              `json:"subdomain"`
	URL         string              `json:"url" binding:"required,url"`
	OriginalURL string              `json:"originalUrl" binding:"required,url"`
	Direct      bool                `json:"direct"`
	Features    models.LinkFeatures `json:"features"`
}

type RegenerateLinkRequest struct {
	Subdomain string `json:"subdomain" binding:"required"`
	URL       string `json:"url" binding:"required,url"`
}

func (h *Handler) CreateLink(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	link, err := h.linkService.Create(services.CreateLinkDTO{
		UserID:      userID,
		Subdomain:   req.Subdomain,
		URL:         req.URL,
		OriginalURL: req.OriginalURL,
		Direct:      req.Direct,
		Features:    req.Features,
		IPAddress:   visitorIP(c),
	})
	if errors.Is(err, services.ErrSubdomainTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Subdomain already exists"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to create link", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error creating link"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Link created successfully",
		"link":    link,
	})
}

func (h *Handler) ListLinks(c *gin.Context) {
	userID, _ := CurrentUserID(c)

	links, err := h.linkService.List(userID)
	if err != nil {
		h.logger.Error("Failed to list links", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error fetching links"})
		return
	}

	c.JSON(http.StatusOK, links)
}

func (h *Handler) DeleteLink(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	linkID, ok := pathID(c)
	if !ok {
		return
	}

	link, err := h.linkService.Get(userID, linkID)
	if err == nil {
		err = h.linkService.Delete(userID, linkID, visitorIP(c))
	}
	if errors.Is(err, services.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete link", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error deleting link"})
		return
	}

	h.invalidateTrackingCache(c, link.Subdomain)
	c.JSON(http.StatusOK, gin.H{"message": "Link deleted successfully"})
}

func (h *Handler) RegenerateLink(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	linkID, ok := pathID(c)
	if !ok {
		return
	}

	var req RegenerateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	previous, prevErr := h.linkService.Get(userID, linkID)

	link, err := h.linkService.Regenerate(userID, linkID, req.Subdomain, req.URL, visitorIP(c))
	switch {
	case errors.Is(err, services.ErrLinkNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	case errors.Is(err, services.ErrSubdomainTaken):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Subdomain already exists"})
		return
	case err != nil:
		h.logger.Error("Failed to regenerate link", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error regenerating link"})
		return
	}

	if prevErr == nil {
		h.invalidateTrackingCache(c, previous.Subdomain)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Link regenerated successfully",
		"link":    link,
	})
}

// ShowLinkQR renders a QR code pointing at the link's tracking subdomain.
func (h *Handler) ShowLinkQR(c *gin.Context) {
	userID, _ := CurrentUserID(c)
	linkID, ok := pathID(c)
	if !ok {
		return
	}

	link, err := h.linkService.Get(userID, linkID)
	if errors.Is(err, services.ErrLinkNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error generating QR code"})
		return
	}

	size, _ := strconv.Atoi(c.DefaultQuery("size", "256"))
	png, err := services.GenerateQRCode(services.QROptions{
		Content: fmt.Sprintf("https://%s.%s/", link.Subdomain, h.cfg.BaseDomain),
		Size:    size,
		FgColor: c.Query("fg"),
		BgColor: c.Query("bg"),
	})
	if err != nil {
		h.logger.Error("Failed to generate QR code", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error generating QR code"})
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Link not found"})
		return 0, false
	}
	return uint(id), true
}
