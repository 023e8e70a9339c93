package mockbackend

import (
	"fmt"
	"strings"
)

const (
	defaultListenAddr    = ":3000"
	defaultAllowedOrigin = "http://localhost:10086"
	defaultEnvironment   = "development"
	defaultRatePerSecond = 20
	defaultRateBurst     = 40
	defaultTrustProxy    = 1
)

// Config aggregates runtime settings for the mock backend.
type Config struct {
	ListenAddr     string
	GatewayAddr    string
	CloudService   string
	Environment    string
	AllowedOrigins []string
	DevTokenSecret string
	RatePerSecond  int
	RateBurst      int
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.Environment = defaultIfEmpty(cfg.Environment, defaultEnvironment)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = defaultRatePerSecond
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen addr is required")
	}
	if cfg.RatePerSecond < 0 || cfg.RateBurst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
