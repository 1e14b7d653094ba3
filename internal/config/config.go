// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/api and cmd/sweep.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config struct — populated from environment variables.
type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Reminder sweep
	ReminderSweepEnabled bool
	// ReminderSweepAt is the daily sweep fire time, "HH:MM" server-local.
	ReminderSweepAt string

	// Push channels
	// PushChannelTimeout is how long an idle channel is kept before it is
	// pruned; clients must re-subscribe after it fires.
	PushChannelTimeout time.Duration
	// PushSendTimeout bounds one write to a stalled client.
	PushSendTimeout time.Duration

	// Notification retention for the cleanup ticker.
	NotificationRetention time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		ReminderSweepEnabled: envBool("REMINDER_SWEEP_ENABLED", true),
		ReminderSweepAt:      envOr("REMINDER_SWEEP_AT", "09:00"),

		PushChannelTimeout: time.Duration(envInt("PUSH_CHANNEL_TIMEOUT_MINUTES", 60)) * time.Minute,
		PushSendTimeout:    time.Duration(envInt("PUSH_SEND_TIMEOUT_SECONDS", 5)) * time.Second,

		NotificationRetention: time.Duration(envInt("NOTIFICATION_RETENTION_DAYS", 30)) * 24 * time.Hour,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
