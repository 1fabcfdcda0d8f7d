package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	ServerPort  string
	Storage     string
	DatabaseURL string

	RedisAddr      string
	IdempotencyTTL time.Duration

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Load .env file if it exists (useful for local dev)
	_ = godotenv.Load()

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	storage := getenv("STORAGE", StoragePostgres)
	if storage != StoragePostgres && storage != StorageMemory {
		return nil, fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, storage)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" && storage == StoragePostgres {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}

	ttl, err := durationEnv("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServerPort:     serverPort,
		Storage:        storage,
		DatabaseURL:    databaseURL,
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		IdempotencyTTL: ttl,
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogFormat:      getenv("LOG_FORMAT", "json"),
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
