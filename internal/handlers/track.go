package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/phongnewbie/spamlink/internal/models"
	"github.com/phongnewbie/spamlink/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/mssola/user_agent"
)

const trackingCacheTTL = 10 * time.Minute

// TrackVisit handles one hit against a tracking subdomain: resolve the
// link, record the visit with geo and client metadata, then respond with
// either an immediate redirect or the interstitial page.
func (h *Handler) TrackVisit(c *gin.Context) {
	subdomain := c.Param("subdomain")

	link, err := h.lookupLink(c, subdomain)
	if errors.Is(err, services.ErrLinkNotFound) {
		c.HTML(http.StatusNotFound, "404.html", gin.H{"message": "Link not found"})
		return
	}
	if err != nil {
		h.logger.Error("Tracking lookup failed", "subdomain", subdomain, "error", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"message": "Error processing request"})
		return
	}

	ip := visitorIP(c)

	geoCtx, cancel := context.WithTimeout(c.Request.Context(), h.geoTimeout())
	defer cancel()
	geo := h.geoService.Resolve(geoCtx, ip)

	visit := models.Visit{
		LinkID:      link.ID,
		IP:          ip,
		Country:     geo.Country,
		CountryCode: geo.CountryCode,
		Region:      geo.Region,
		City:        geo.City,
		Timezone:    geo.Timezone,
		Currency:    geo.Currency,
		Languages:   geo.Languages,
		CallingCode: geo.CallingCode,
		UserAgent:   c.Request.UserAgent(),
		Via:         buildVia(c),
		CreatedAt:   time.Now(),
	}

	// Analytics are best-effort, but a visit that cannot be persisted is a
	// failed request: the visitor sees an error, nothing is retried.
	if err := h.db.Create(&visit).Error; err != nil {
		h.logger.Error("Failed to record visit", "subdomain", subdomain, "error", err)
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"message": "Error processing request"})
		return
	}

	if link.Direct {
		c.Redirect(http.StatusFound, link.OriginalURL)
		return
	}

	delay := h.cfg.RedirectDelay()
	if delay <= 0 {
		delay = 5 * time.Second
	}
	c.HTML(http.StatusOK, "interstitial.html", gin.H{
		"Title":        link.Features.Title,
		"Body":         link.Features.Body,
		"ShareImage":   link.Features.ShareImage,
		"PreviewImage": link.Features.PreviewImage,
		"Language":     link.Features.Language,
		"TargetURL":    link.OriginalURL,
		"DelayMillis":  delay.Milliseconds(),
		"DelaySeconds": int(delay.Seconds()),
	})
}

// lookupLink resolves a subdomain to its link, consulting the redis cache
// before the database.
func (h *Handler) lookupLink(c *gin.Context, subdomain string) (*models.Link, error) {
	ctx := c.Request.Context()

	if h.rdb != nil {
		if val, err := h.rdb.Get(ctx, trackingCacheKey(subdomain)).Result(); err == nil {
			var link models.Link
			if err := json.Unmarshal([]byte(val), &link); err == nil {
				return &link, nil
			}
		}
	}

	link, err := h.linkService.FindBySubdomain(subdomain)
	if err != nil {
		return nil, err
	}

	if h.rdb != nil {
		if data, err := json.Marshal(link); err == nil {
			h.rdb.Set(ctx, trackingCacheKey(subdomain), data, trackingCacheTTL)
		}
	}

	return link, nil
}

func (h *Handler) invalidateTrackingCache(c *gin.Context, subdomain string) {
	if h.rdb == nil || subdomain == "" {
		return
	}
	h.rdb.Del(c.Request.Context(), trackingCacheKey(subdomain))
}

func trackingCacheKey(subdomain string) string {
	return "link:" + subdomain
}

func (h *Handler) geoTimeout() time.Duration {
	if t := h.cfg.GeoTimeout(); t > 0 {
		return t
	}
	return 3 * time.Second
}

// visitorIP extracts the visitor's address, preferring proxy headers in
// order: first X-Forwarded-For hop, Cloudflare's connecting IP, the reverse
// proxy real IP, then the transport peer. IPv6 loopback forms normalize to
// the IPv4 literal.
func visitorIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if ip := c.GetHeader("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}

	ip := c.Request.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "::1" || ip == "::ffff:127.0.0.1" {
		ip = "127.0.0.1"
	}
	return ip
}

// buildVia assembles the client-hint bundle. Browser and mobile flag fall
// back to user-agent parsing when the sec-ch-ua headers are absent.
func buildVia(c *gin.Context) models.Via {
	via := models.Via{
		Browser:  c.GetHeader("Sec-CH-UA"),
		Platform: c.GetHeader("Sec-CH-UA-Platform"),
		Mobile:   c.GetHeader("Sec-CH-UA-Mobile"),
		Language: c.GetHeader("Accept-Language"),
		Referrer: c.Request.Referer(),
	}

	rawUA := c.Request.UserAgent()
	if rawUA != "" && (via.Browser == "" || via.Mobile == "") {
		ua := user_agent.New(rawUA)
		if via.Browser == "" {
			name, version := ua.Browser()
			via.Browser = strings.TrimSpace(name + " " + version)
		}
		if via.Mobile == "" {
			if ua.Mobile() {
				via.Mobile = "?1"
			} else {
				via.Mobile = "?0"
			}
		}
	}

	if via.Referrer == "" {
		via.Referrer = "direct"
	}
	return via
}
