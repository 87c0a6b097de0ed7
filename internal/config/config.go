// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port                string
	DatabasePath        string
	JWTSecret           string
	HostTokenDuration   time.Duration
	SpotifyClientID     string
	SpotifyClientSecret string
	RateLimitPerMinute  int
	CORSAllowedOrigins  []string
	TrustedProxies      []string
	SentryDSN           string
	SentryEnvironment   string

	// SingleActiveRoomPerHost makes room creation return the host's
	// still-open room instead of allocating a second code.
	SingleActiveRoomPerHost bool

	// AllowApprovedReject permits the host to reject a request it has
	// already approved.
	AllowApprovedReject bool
}

// Load reads configuration from environment variables, using defaults where not set.
func Load() *Config {
	return &Config{
		Port:                    getEnv("PORT", "8080"),
		DatabasePath:            getEnv("DATABASE_PATH", "./openmic.db"),
		JWTSecret:               getEnv("JWT_SECRET", "change-me-in-production"), // #nosec G101 -- intentional dev default
		HostTokenDuration:       getDurationEnv("HOST_TOKEN_DURATION", 7*24*time.Hour),
		SpotifyClientID:         getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret:     getEnv("SPOTIFY_CLIENT_SECRET", ""),
		RateLimitPerMinute:      getIntEnv("RATE_LIMIT_PER_MINUTE", 10),
		CORSAllowedOrigins:      []string{"http://localhost:5173", "http://localhost:3000"},
		TrustedProxies:          getStringSliceEnv("TRUSTED_PROXIES"),
		SentryDSN:               getEnv("SENTRY_DSN", ""),
		SentryEnvironment:       getEnv("SENTRY_ENVIRONMENT", "production"),
		SingleActiveRoomPerHost: getBoolEnv("SINGLE_ACTIVE_ROOM_PER_HOST", true),
		AllowApprovedReject:     getBoolEnv("ALLOW_APPROVED_REJECT", true),
	}
}

func getStringSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
