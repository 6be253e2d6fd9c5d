package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// PostgreSQL
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Auth
	BcryptCost    int
	TokenValidity time.Duration

	// Rate limit for auth endpoints (per IP)
	AuthRateLimitMax    int64
	AuthRateLimitWindow int64 // seconds

	// Device liveness
	DeviceStaleAfter time.Duration

	// CORS
	CORSAllowedOrigins string
	CORSAllowedMethods string
	CORSAllowedHeaders string

	// Server shutdown
	ShutdownTimeoutSecs int64
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "3001"),

		PostgresHost:     getEnv("POSTGRES_HOST", "postgres"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "modbus_registry"),
		PostgresUser:     getEnv("POSTGRES_USER", "admin"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "admin"),

		RedisHost:     getEnv("REDIS_HOST", "redis"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		BcryptCost:    int(getEnvInt64("BCRYPT_COST", 12)),
		TokenValidity: time.Duration(getEnvInt64("TOKEN_VALIDITY_HOURS", 24)) * time.Hour,

		AuthRateLimitMax:    getEnvInt64("AUTH_RATE_LIMIT_MAX", 10),
		AuthRateLimitWindow: getEnvInt64("AUTH_RATE_LIMIT_WINDOW_SECS", 60),

		DeviceStaleAfter: time.Duration(getEnvInt64("DEVICE_STALE_AFTER_SECS", 300)) * time.Second,

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		CORSAllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
		CORSAllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Authorization,Content-Type"),

		ShutdownTimeoutSecs: getEnvInt64("SHUTDOWN_TIMEOUT_SECS", 30),
	}
}

func (c *Config) PostgresURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword + "@" + c.PostgresHost + ":" + c.PostgresPort + "/" + c.PostgresDB
}

func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
