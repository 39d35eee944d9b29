// Package config parses and validates importer configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup. Command-line flags override the loaded values.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotenvFile is read, if present, before the environment is parsed.
// Variables already set in the environment take precedence.
const DotenvFile = ".env"

// Config holds all importer configuration sourced from environment variables.
type Config struct {
	// ── Paths ────────────────────────────────────────────────────────────────────
	DataPath string `env:"ADVISORY_DATA_PATH" envDefault:"data/advisory-database-main"`
	DBPath   string `env:"ADVISORY_DB_PATH"   envDefault:"data/advisory-database.db"`

	// ── Ingest ───────────────────────────────────────────────────────────────────
	BatchSize int `env:"BATCH_SIZE" envDefault:"1000"`
	// ParseWorkers bounds concurrent parses; 0 = GOMAXPROCS.
	ParseWorkers int `env:"PARSE_WORKERS" envDefault:"0"`
	// RowFallback retries the advisories of a failed batch one per transaction
	// instead of dropping the whole batch.
	RowFallback bool `env:"BATCH_ROW_FALLBACK" envDefault:"false"`

	// ── Output ───────────────────────────────────────────────────────────────────
	ShowProgress    bool   `env:"SHOW_PROGRESS"    envDefault:"true"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	AppEnv    string `env:"APP_ENV"    envDefault:"production"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads DotenvFile if it exists, then parses and validates Config from
// the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(DotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", DotenvFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first out-of-range setting.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.ParseWorkers < 0 {
		return fmt.Errorf("PARSE_WORKERS must not be negative, got %d", c.ParseWorkers)
	}
	return nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
