// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port      string
	Env       string // "development", "staging", "production"
	LogLevel  string
	LogFormat string // "text" or "json"

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Matching settings
	BidTTL           time.Duration // how long a bid stays pending
	BidSweepInterval time.Duration // how often the expiry sweep runs

	// Reputation settings
	BlockSweepInterval time.Duration // how often the auto-block sweep runs
	SnapshotInterval   time.Duration // how often rating snapshots are taken

	// Security
	AdminSecret    string // Admin API secret
	WebhookSecret  string // Default HMAC secret for outbound webhooks
	RateLimitRPM   int
	AllowedOrigins []string

	// Tracing
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultBidTTLHours     = 72
	DefaultBidSweepSecs    = 60
	DefaultBlockSweepMins  = 10
	DefaultSnapshotHours   = 24
	DefaultRateLimitPerMin = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", DefaultPort),
		Env:                getEnv("ENV", DefaultEnv),
		LogLevel:           getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:          getEnv("LOG_FORMAT", DefaultLogFormat),
		DatabaseURL:        os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		BidTTL:             time.Duration(getEnvInt64("BID_TTL_HOURS", DefaultBidTTLHours)) * time.Hour,
		BidSweepInterval:   time.Duration(getEnvInt64("BID_SWEEP_SECONDS", DefaultBidSweepSecs)) * time.Second,
		BlockSweepInterval: time.Duration(getEnvInt64("BLOCK_SWEEP_MINUTES", DefaultBlockSweepMins)) * time.Minute,
		SnapshotInterval:   time.Duration(getEnvInt64("SNAPSHOT_INTERVAL_HOURS", DefaultSnapshotHours)) * time.Hour,
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		RateLimitRPM:       int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimitPerMin)),
		AllowedOrigins:     splitCSV(os.Getenv("ALLOWED_ORIGINS")),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.BidTTL <= 0 {
		return fmt.Errorf("BID_TTL_HOURS must be positive")
	}
	if c.BidSweepInterval <= 0 {
		return fmt.Errorf("BID_SWEEP_SECONDS must be positive")
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
