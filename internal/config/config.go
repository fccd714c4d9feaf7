// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	DBPath string
	Port   string
	Env    string

	// JWTSecret signs actor tokens. Empty disables authentication.
	JWTSecret string
	TokenTTL  time.Duration

	// DefaultCommissionRate applies to properties without their own rate.
	DefaultCommissionRate decimal.Decimal

	// ResolveWorkers bounds concurrent row resolution during review.
	ResolveWorkers int
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func Load() (*Config, error) {
	cfg := &Config{
		DBPath:    getEnv("DB_PATH", "./data/rentledger.db"),
		Port:      getEnv("SERVER_PORT", "8080"),
		Env:       getEnv("ENVIRONMENT", "development"),
		JWTSecret: os.Getenv("JWT_SECRET"),
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	cfg.TokenTTL = ttl

	rate, err := decimal.NewFromString(getEnv("DEFAULT_COMMISSION_RATE", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_COMMISSION_RATE: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("DEFAULT_COMMISSION_RATE must be between 0 and 100, got %s", rate)
	}
	cfg.DefaultCommissionRate = rate

	workers, err := strconv.Atoi(getEnv("RESOLVE_WORKERS", "4"))
	if err != nil || workers < 1 {
		return nil, fmt.Errorf("RESOLVE_WORKERS must be a positive integer")
	}
	cfg.ResolveWorkers = workers

	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required in production")
	}

	return cfg, nil
}
