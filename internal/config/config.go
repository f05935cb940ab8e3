package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr           string        `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath             string        `env:"DB_PATH" envDefault:"data/teamquest.db"`
	LogLevel           slog.Level    `env:"LOG_LEVEL" envDefault:"INFO"`
	DefaultPIN         string        `env:"DEFAULT_PIN" envDefault:"0000"`
	TimerSweepInterval time.Duration `env:"TIMER_SWEEP_INTERVAL" envDefault:"30s"`
	SeedDemo           bool          `env:"SEED_DEMO" envDefault:"false"`
}

// Load reads an optional .env file, then parses the environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.DefaultPIN == "" {
		return nil, errors.New("DEFAULT_PIN must not be empty")
	}
	return &cfg, nil
}
