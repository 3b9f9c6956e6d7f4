// Package config provides configuration for the master.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
)

// Config holds the master configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Liveness window for deriving agent status
	LivenessWindow time.Duration

	// Artifact host
	GitHubToken string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:       getEnvInt("HTTP_PORT", 8000),
		DatabaseURL:    getEnv("DATABASE_URL", "file:master.db?cache=shared&mode=rwc"),
		LivenessWindow: time.Duration(getEnvInt("LIVENESS_WINDOW_SECONDS", int(domain.LivenessWindow/time.Second))) * time.Second,
		GitHubToken:    getEnv("GITHUB_TOKEN", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
