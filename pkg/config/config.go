// Package config loads application configuration from environment variables,
// one file per concern.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config aggregates the configuration of every concern.
type Config struct {
	App           AppConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Auth          AuthConfig
	Jobx          JobxConfig
	Transcription TranscriptionConfig
	Notifx        NotifxConfig
}

// Load reads the full configuration from the environment.
func Load() *Config {
	return &Config{
		App:           loadAppConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Jobx:          loadJobxConfig(),
		Transcription: loadTranscriptionConfig(),
		Notifx:        loadNotifxConfig(),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
