// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Config holds everything the jobs server needs. DatabaseURL and the
// market-data API key are required: their absence fails fast with a
// structured error instead of allowing a silent partial run.
type Config struct {
	Address string `env:"ADDRESS" envDefault:":8080"`

	DatabaseURL      string `env:"DATABASE_URL,required"`
	MarketDataAPIURL string `env:"MARKET_DATA_API_URL" envDefault:"https://api.marketdata.example.com"`
	MarketDataAPIKey string `env:"MARKET_DATA_API_KEY,required"`

	// Storage pool capacity. Configured separately from job concurrency;
	// keep it at least as large or batches starve waiting for sessions.
	DBMaxConns int `env:"DB_MAX_CONNS" envDefault:"8"`

	// Dispatch defaults, overridable per request.
	BatchSize      int `env:"JOB_BATCH_SIZE" envDefault:"200"`
	MaxConcurrency int `env:"JOB_MAX_CONCURRENCY" envDefault:"4"`

	// Upstream rate policy.
	APIRateLimit float64 `env:"API_RATE_LIMIT" envDefault:"5"`
	APIGroupSize int     `env:"API_GROUP_SIZE" envDefault:"50"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
