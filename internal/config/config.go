package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Port     string `env:"POCKETMONEY_PORT" envDefault:"8080"`
	DBPath   string `env:"POCKETMONEY_DB_PATH" envDefault:"pocketmoney.db"`
	LogLevel string `env:"POCKETMONEY_LOG_LEVEL" envDefault:"info"`

	// PIN verification rate limit: attempts per window.
	PINRateLimit  int `env:"POCKETMONEY_PIN_RATE_LIMIT" envDefault:"10"`
	PINRateWindow int `env:"POCKETMONEY_PIN_RATE_WINDOW_SECONDS" envDefault:"60"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (*Config, error) {
	// Missing .env is fine; real env vars always win.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.PINRateLimit <= 0 {
		return nil, fmt.Errorf("POCKETMONEY_PIN_RATE_LIMIT must be positive, got %d", cfg.PINRateLimit)
	}
	return &cfg, nil
}
