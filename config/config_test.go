package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://127.0.0.1:7000", cfg.RembgBaseURL)
	assert.Equal(t, int64(25<<20), cfg.MaxUploadBytes)
	assert.Equal(t, int64(2), cfg.MaxConcurrentRemovals)
	assert.Equal(t, "@every 5m", cfg.SweepSpec)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("REMBG_BASE_URL", "http://rembg:7000")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("REMBG_TIMEOUT", "5s")
	t.Setenv("SESSION_TTL", "1m")

	cfg := Load()
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, "http://rembg:7000", cfg.RembgBaseURL)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.RembgTimeout)
	assert.Equal(t, time.Minute, cfg.SessionTTL)
}

func TestLoad_IgnoresUnparsableEnv(t *testing.T) {
	t.Setenv("MAX_UPLOAD_BYTES", "lots")
	t.Setenv("REMBG_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, int64(25<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 120*time.Second, cfg.RembgTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Load()

	bad := cfg
	bad.Port = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxUploadBytes = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxConcurrentRemovals = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.SessionTTL = 0
	assert.Error(t, bad.Validate())
}
