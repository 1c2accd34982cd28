// Package config resolves runner settings from a YAML file, MIGRATE_*
// environment variables, and defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default values for configuration fields. Zero timeouts leave the server
// settings untouched.
const (
	DefaultMigrationsDir = "./migrations"
	DefaultFormat        = "text"
)

// Config holds the application configuration loaded from file, environment, and flags.
type Config struct {
	DatabaseURL      string
	MigrationsDir    string
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	Production       bool
	Format           string
}

// yamlConfig is the raw YAML file representation with string durations.
type yamlConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	MigrationsDir    string `yaml:"migrations_dir"`
	LockTimeout      string `yaml:"lock_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
	Production       bool   `yaml:"production"`
	Format           string `yaml:"format"`
}

// envConfig holds the MIGRATE_* overlay. Nil fields were not set.
type envConfig struct {
	DatabaseURL      *string        `env:"MIGRATE_DATABASE_URL"`
	MigrationsDir    *string        `env:"MIGRATE_MIGRATIONS_DIR"`
	LockTimeout      *time.Duration `env:"MIGRATE_LOCK_TIMEOUT"`
	StatementTimeout *time.Duration `env:"MIGRATE_STATEMENT_TIMEOUT"`
	Production       *bool          `env:"MIGRATE_PRODUCTION"`
}

// New returns a Config populated with default values.
func New() *Config {
	return &Config{
		MigrationsDir: DefaultMigrationsDir,
		Format:        DefaultFormat,
	}
}

// Load reads a YAML configuration file and returns a Config.
// If allowMissing is true and the file does not exist, defaults are returned.
func Load(path string, allowMissing bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && allowMissing {
			return New(), nil
		}

		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return fromYAML(&raw)
}

// fromYAML converts the raw YAML representation to a Config with defaults applied.
func fromYAML(raw *yamlConfig) (*Config, error) {
	cfg := New()

	if raw.DatabaseURL != "" {
		cfg.DatabaseURL = raw.DatabaseURL
	}

	if raw.MigrationsDir != "" {
		cfg.MigrationsDir = raw.MigrationsDir
	}

	if raw.LockTimeout != "" {
		d, err := time.ParseDuration(raw.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing lock_timeout %q: %w", raw.LockTimeout, err)
		}

		cfg.LockTimeout = d
	}

	if raw.StatementTimeout != "" {
		d, err := time.ParseDuration(raw.StatementTimeout)
		if err != nil {
			return nil, fmt.Errorf("parsing statement_timeout %q: %w", raw.StatementTimeout, err)
		}

		cfg.StatementTimeout = d
	}

	cfg.Production = raw.Production

	if raw.Format != "" {
		cfg.Format = raw.Format
	}

	return cfg, nil
}

// MergeEnv overrides config fields from MIGRATE_* environment variables.
// Set but malformed values are reported rather than ignored.
func MergeEnv(cfg *Config) error {
	var overlay envConfig
	if err := env.Parse(&overlay); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if overlay.DatabaseURL != nil && *overlay.DatabaseURL != "" {
		cfg.DatabaseURL = *overlay.DatabaseURL
	}

	if overlay.MigrationsDir != nil && *overlay.MigrationsDir != "" {
		cfg.MigrationsDir = *overlay.MigrationsDir
	}

	if overlay.LockTimeout != nil {
		cfg.LockTimeout = *overlay.LockTimeout
	}

	if overlay.StatementTimeout != nil {
		cfg.StatementTimeout = *overlay.StatementTimeout
	}

	if overlay.Production != nil {
		cfg.Production = *overlay.Production
	}

	return nil
}
