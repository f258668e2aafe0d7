package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	ServerPort      string
	Environment     string
	LegacyAPIKey    string
	SearchEngineURL string
	MaxInflight     int
	CacheMaxEntries int
	CacheTTLFree    int // seconds, 0 keeps the default
	CacheTTLPaid    int // seconds, 0 keeps the default
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LegacyAPIKey:    getEnv("LEGACY_API_KEY", ""),
		SearchEngineURL: getEnv("SEARCH_ENGINE_URL", "http://localhost:9000"),
		MaxInflight:     getEnvInt("MAX_INFLIGHT", 100),
		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),
		CacheTTLFree:    getEnvInt("CACHE_TTL_FREE", 0),
		CacheTTLPaid:    getEnvInt("CACHE_TTL_PAID", 0),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultVal
}
