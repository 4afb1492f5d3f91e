package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort        string
	DatabaseURL       string
	RedisURL          string
	JWTSecret         string
	RemoteBaseURL     string
	RemoteToken       string
	RemoteTimeout     time.Duration
	SyncWorkers       int
	RuleCacheTTL      time.Duration
	ConflictRetention time.Duration
	AutoSyncInterval  time.Duration
}

func LoadConfig() (*Config, error) {
	remoteTimeout, err := getDuration("REMOTE_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}
	ruleCacheTTL, err := getDuration("RULE_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	retention, err := getDuration("CONFLICT_RETENTION", "720h")
	if err != nil {
		return nil, err
	}
	autoSync, err := getDuration("AUTO_SYNC_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	workers, err := strconv.Atoi(getEnv("SYNC_WORKERS", "4"))
	if err != nil {
		return nil, errors.New("invalid SYNC_WORKERS value")
	}

	cfg := &Config{
		ServerPort:        getEnv("SERVER_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RemoteBaseURL:     os.Getenv("REMOTE_BASE_URL"),
		RemoteToken:       os.Getenv("REMOTE_TOKEN"),
		RemoteTimeout:     remoteTimeout,
		SyncWorkers:       workers,
		RuleCacheTTL:      ruleCacheTTL,
		ConflictRetention: retention,
		AutoSyncInterval:  autoSync,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.RemoteBaseURL == "" {
		return nil, errors.New("REMOTE_BASE_URL is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s format", key)
	}
	return d, nil
}
