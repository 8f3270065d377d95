// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values shared by the api, sweeper and CLI
// binaries. Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" (default) or "text" for colored console output.
	LogFormat string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"].
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// ExpiryHorizon is how long after departure a registration expires.
	// Defaults to 6h.
	ExpiryHorizon time.Duration

	// StoreTimeout bounds each store call attempt. Defaults to 5s.
	StoreTimeout time.Duration

	// StoreMaxAttempts is the total number of tries per store call. Defaults to 3.
	StoreMaxAttempts int

	// SweepInterval is how often the sweeper runs. Defaults to 15m.
	SweepInterval time.Duration

	// PointerCachePath is the SQLite file the CLI keeps its registration
	// pointers and drafts in.
	PointerCachePath string
}

// Load reads configuration from environment variables and returns a Config.
// A .env file in the working directory is loaded first if present; real
// environment variables take precedence over it.
// Returns an error listing any required variables that are not set and any
// values that cannot be parsed.
func Load() (Config, error) {
	_ = godotenv.Load()

	var problems []string

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		CORSOrigins:      splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		MaxBodyBytes:     int64(getInt("MAX_BODY_BYTES", 1<<20, &problems)),
		ExpiryHorizon:    getDuration("EXPIRY_HORIZON", 6*time.Hour, &problems),
		StoreTimeout:     getDuration("STORE_TIMEOUT", 5*time.Second, &problems),
		StoreMaxAttempts: getInt("STORE_MAX_ATTEMPTS", 3, &problems),
		SweepInterval:    getDuration("SWEEP_INTERVAL", 15*time.Minute, &problems),
		PointerCachePath: getEnv("POINTER_CACHE_PATH", defaultPointerCachePath()),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid environment variables: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getInt parses a positive integer variable, recording a problem if the
// value is set but malformed.
func getInt(key string, fallback int, problems *[]string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
		return fallback
	}
	return v
}

// getDuration parses a Go duration ("90m", "6h"), recording a problem if the
// value is set but malformed.
func getDuration(key string, fallback time.Duration, problems *[]string) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive duration, got %q", key, raw))
		return fallback
	}
	return v
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func defaultPointerCachePath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".carpool", "pointers.db")
	}
	return filepath.Join("data", "pointers.db")
}
