// Package config loads server configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	DatabaseURL string
	DBDriver    string // "postgres" or "sqlite"
	SQLitePath  string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret string

	// Relay URL the outbound connection pool dials
	RelayURL string

	CORSOrigins []string
}

// Load reads configuration from .env (if present) and the environment
func Load() *Config {
	// Missing .env is fine, system env takes over
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", "server.log"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		SQLitePath:  getEnv("SQLITE_PATH", "matchpulse.db"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		RelayURL: getEnv("RELAY_URL", "ws://localhost:8080/ws"),

		CORSOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},
	}
}

// IsDevelopment reports whether the server runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetEnvInt reads an integer environment variable with a fallback
func GetEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration reads a duration environment variable with a fallback
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
