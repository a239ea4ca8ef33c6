// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	ListenAddr      string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Enrichment provider settings. An empty API key disables the external
	// call entirely; every analysis then comes from the local fallback path.
	GroqAPIKey  string
	GroqURL     string
	GroqModel   string
	GroqTimeout time.Duration

	// Downstream mirror. Empty URL skips forwarding.
	ForwardURL     string
	ForwardTimeout time.Duration

	// Alert deduplication thresholds.
	DedupeWindow         time.Duration
	DedupeMaxRetries     int
	DedupeCountTolerance float64 // relative people-count tolerance, 0.20 = 20%

	// Webhook intake rate limiting (per producer key).
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64 // Maximum request body size in bytes.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:           envStr("KUMBH_LISTEN_ADDR", ":8000"),
		ReadTimeout:          envDuration("KUMBH_READ_TIMEOUT", 30*time.Second),
		ShutdownTimeout:      envDuration("KUMBH_SHUTDOWN_TIMEOUT", 10*time.Second),
		GroqAPIKey:           envStr("KUMBH_GROQ_API_KEY", ""),
		GroqURL:              envStr("KUMBH_GROQ_URL", "https://api.groq.com/openai/v1/chat/completions"),
		GroqModel:            envStr("KUMBH_GROQ_MODEL", "llama3-8b-8192"),
		GroqTimeout:          envDuration("KUMBH_GROQ_TIMEOUT", 20*time.Second),
		ForwardURL:           envStr("KUMBH_FORWARD_URL", ""),
		ForwardTimeout:       envDuration("KUMBH_FORWARD_TIMEOUT", 5*time.Second),
		DedupeWindow:         envDuration("KUMBH_DEDUPE_WINDOW", 5*time.Minute),
		DedupeMaxRetries:     envInt("KUMBH_DEDUPE_MAX_RETRIES", 3),
		DedupeCountTolerance: envFloat("KUMBH_DEDUPE_COUNT_TOLERANCE", 0.20),
		RateLimitEnabled:     envBool("KUMBH_RATE_LIMIT_ENABLED", false),
		RateLimitRPS:         envFloat("KUMBH_RATE_LIMIT_RPS", 5),
		RateLimitBurst:       envInt("KUMBH_RATE_LIMIT_BURST", 10),
		OTELEndpoint:         envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:         envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:          envStr("OTEL_SERVICE_NAME", "kumbhwatch"),
		LogLevel:             envStr("KUMBH_LOG_LEVEL", "info"),
		MaxRequestBodyBytes:  int64(envInt("KUMBH_MAX_REQUEST_BODY_BYTES", 1*1024*1024)), // 1 MB default
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: KUMBH_LISTEN_ADDR is required")
	}
	if c.DedupeWindow <= 0 {
		return fmt.Errorf("config: KUMBH_DEDUPE_WINDOW must be positive")
	}
	if c.DedupeMaxRetries < 0 {
		return fmt.Errorf("config: KUMBH_DEDUPE_MAX_RETRIES must not be negative")
	}
	if c.DedupeCountTolerance < 0 || c.DedupeCountTolerance >= 1 {
		return fmt.Errorf("config: KUMBH_DEDUPE_COUNT_TOLERANCE must be in [0, 1)")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: KUMBH_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("config: KUMBH_RATE_LIMIT_RPS and KUMBH_RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
