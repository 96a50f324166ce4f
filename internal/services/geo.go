package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/phongnewbie/spamlink/internal/config"

	"github.com/oschwald/geoip2-golang"
)

// GeoInfo is the resolved location for a visitor IP. All fields are
// best-effort; Country and CountryCode are "Unknown" when nothing resolved.
type GeoInfo struct {
	Country     string
	CountryCode string
	Region      string
	City        string
	Timezone    string
	Currency    string
	Languages   string
	CallingCode string
}

func unknownGeo() GeoInfo {
	return GeoInfo{Country: "Unknown", CountryCode: "Unknown"}
}

// geoAPIResponse matches the ipapi.co JSON payload.
type geoAPIResponse struct {
	CountryName        string `json:"country_name"`
	CountryCode        string `json:"country_code"`
	Region             string `json:"region"`
	City               string `json:"city"`
	Timezone           string `json:"timezone"`
	Currency           string `json:"currency"`
	Languages          string `json:"languages"`
	CountryCallingCode string `json:"country_calling_code"`
}

// GeoService resolves an IP to location fields. The primary source is an
// external lookup API; on any failure it falls back to a local MaxMind
// country database, and finally to the Unknown sentinel. Resolve never
// fails the caller.
type GeoService struct {
	cfg       config.Config
	logger    *slog.Logger
	client    *http.Client
	geoReader *geoip2.Reader
	geoLock   sync.RWMutex
}

func NewGeoService(cfg config.Config, logger *slog.Logger) *GeoService {
	timeout := cfg.GeoTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &GeoService{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: timeout},
	}
}

// Resolve looks up ip. Loopback, private and unparseable addresses skip the
// primary API call and go straight to the fallback path.
func (s *GeoService) Resolve(ctx context.Context, ipStr string) GeoInfo {
	parsed := net.ParseIP(ipStr)
	if parsed != nil && !parsed.IsLoopback() && !parsed.IsPrivate() {
		if info, err := s.lookupPrimary(ctx, ipStr); err == nil {
			return info
		} else {
			s.logger.Warn("Geo: primary lookup failed, using fallback", "ip", ipStr, "error", err)
		}
	}

	return s.lookupFallback(parsed)
}

func (s *GeoService) lookupPrimary(ctx context.Context, ip string) (GeoInfo, error) {
	url := fmt.Sprintf("%s/%s/json/", s.cfg.GeoAPIURL, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return GeoInfo{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return GeoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return GeoInfo{}, fmt.Errorf("geo api returned status %d", resp.StatusCode)
	}

	var body geoAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return GeoInfo{}, err
	}

	if body.CountryName == "" && body.CountryCode == "" {
		return GeoInfo{}, fmt.Errorf("geo api returned empty result")
	}

	info := GeoInfo{
		Country:     body.CountryName,
		CountryCode: body.CountryCode,
		Region:      body.Region,
		City:        body.City,
		Timezone:    body.Timezone,
		Currency:    body.Currency,
		Languages:   body.Languages,
		CallingCode: body.CountryCallingCode,
	}
	if info.Country == "" {
		info.Country = info.CountryCode
	}
	return info, nil
}

// lookupFallback consults the local MaxMind database. The country ISO code
// doubles as the country name, which is all the offline edition carries.
func (s *GeoService) lookupFallback(ip net.IP) GeoInfo {
	if ip == nil {
		return unknownGeo()
	}

	s.geoLock.RLock()
	reader := s.geoReader
	s.geoLock.RUnlock()

	if reader == nil {
		return unknownGeo()
	}

	record, err := reader.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return unknownGeo()
	}

	return GeoInfo{
		Country:     record.Country.IsoCode,
		CountryCode: record.Country.IsoCode,
	}
}

// Init opens the local fallback database, downloading it first when MaxMind
// credentials are configured and no database file exists yet.
func (s *GeoService) Init() {
	dbPath := s.cfg.MaxMindDBPath

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		if s.cfg.MaxMindAccountID == "" || s.cfg.MaxMindLicenseKey == "" {
			s.logger.Warn("Geo: fallback database missing and MaxMind credentials not set; offline lookups disabled")
			return
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			s.logger.Error("Geo: failed to create database directory", "error", err)
			return
		}
		s.logger.Info("Geo: fallback database missing, downloading...")
		if err := s.updateGeoDB(); err != nil {
			s.logger.Error("Geo: initial download failed", "error", err)
			return
		}
	}

	s.reloadReader(dbPath)
}

// StartUpdater refreshes the fallback database every 24 hours.
func (s *GeoService) StartUpdater(ctx context.Context) {
	if s.cfg.MaxMindAccountID == "" {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.logger.Info("Geo: running scheduled database update...")
			if err := s.updateGeoDB(); err != nil {
				s.logger.Error("Geo: update failed", "error", err)
				continue
			}
			s.reloadReader(s.cfg.MaxMindDBPath)
		case <-ctx.Done():
			s.logger.Info("Geo: updater stopping")
			return
		}
	}
}

func (s *GeoService) updateGeoDB() error {
	dbDir := filepath.Dir(s.cfg.MaxMindDBPath)
	confPath := filepath.Join(dbDir, "GeoIP.conf")

	content := fmt.Sprintf("AccountID %s\nLicenseKey %s\nEditionIDs %s\nDatabaseDirectory %s\n",
		s.cfg.MaxMindAccountID, s.cfg.MaxMindLicenseKey, s.cfg.MaxMindEditionIDs, dbDir)

	if err := os.WriteFile(confPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write GeoIP.conf: %w", err)
	}
	defer os.Remove(confPath)

	cmd := exec.Command("geoipupdate", "-v", "-f", confPath, "-d", dbDir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("geoipupdate failed: %w, output: %s", err, string(output))
	}

	s.logger.Info("Geo: fallback database updated")
	return nil
}

func (s *GeoService) reloadReader(path string) {
	s.geoLock.Lock()
	defer s.geoLock.Unlock()

	if s.geoReader != nil {
		s.geoReader.Close()
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		s.logger.Error("Geo: failed to open fallback database", "path", path, "error", err)
		return
	}
	s.geoReader = reader

	meta := reader.Metadata()
	s.logger.Info("Geo: loaded fallback database", "epoch", meta.BuildEpoch)
}
