package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()

	assert.NoError(t, err)
	assert.Equal(t, "local", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "https://ipapi.co", cfg.GeoAPIURL)
	assert.Equal(t, 3*time.Second, cfg.GeoTimeout())
	assert.Equal(t, 5*time.Second, cfg.RedirectDelay())
	assert.NotEmpty(t, cfg.BaseDomain)
}
