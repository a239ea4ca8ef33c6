package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.ListenAddr)
	assert.Equal(t, "llama3-8b-8192", cfg.GroqModel)
	assert.Empty(t, cfg.GroqAPIKey)
	assert.Empty(t, cfg.ForwardURL)
	assert.Equal(t, 5*time.Minute, cfg.DedupeWindow)
	assert.Equal(t, 3, cfg.DedupeMaxRetries)
	assert.InDelta(t, 0.20, cfg.DedupeCountTolerance, 1e-9)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.RateLimitEnabled)
	assert.InDelta(t, 5, cfg.RateLimitRPS, 1e-9)
	assert.Equal(t, 10, cfg.RateLimitBurst)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KUMBH_LISTEN_ADDR", ":9100")
	t.Setenv("KUMBH_DEDUPE_WINDOW", "90s")
	t.Setenv("KUMBH_DEDUPE_MAX_RETRIES", "5")
	t.Setenv("KUMBH_DEDUPE_COUNT_TOLERANCE", "0.1")
	t.Setenv("KUMBH_GROQ_API_KEY", "gsk_test")
	t.Setenv("KUMBH_RATE_LIMIT_ENABLED", "true")
	t.Setenv("KUMBH_RATE_LIMIT_RPS", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.DedupeWindow)
	assert.Equal(t, 5, cfg.DedupeMaxRetries)
	assert.InDelta(t, 0.1, cfg.DedupeCountTolerance, 1e-9)
	assert.Equal(t, "gsk_test", cfg.GroqAPIKey)
	assert.True(t, cfg.RateLimitEnabled)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 1e-9)
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("KUMBH_DEDUPE_MAX_RETRIES", "many")
	t.Setenv("KUMBH_DEDUPE_WINDOW", "five minutes")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.DedupeMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.DedupeWindow)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }, "KUMBH_LISTEN_ADDR"},
		{"zero window", func(c *Config) { c.DedupeWindow = 0 }, "KUMBH_DEDUPE_WINDOW"},
		{"negative retries", func(c *Config) { c.DedupeMaxRetries = -1 }, "KUMBH_DEDUPE_MAX_RETRIES"},
		{"tolerance out of range", func(c *Config) { c.DedupeCountTolerance = 1.5 }, "KUMBH_DEDUPE_COUNT_TOLERANCE"},
		{"zero body limit", func(c *Config) { c.MaxRequestBodyBytes = 0 }, "KUMBH_MAX_REQUEST_BODY_BYTES"},
		{"rate limit enabled without rps", func(c *Config) { c.RateLimitEnabled = true; c.RateLimitRPS = 0 }, "KUMBH_RATE_LIMIT_RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(&cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
