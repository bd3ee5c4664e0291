package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from the config file.
const (
	EnvAPIBaseURL = "SHELFX_API_BASE_URL"
	EnvAPIToken   = "SHELFX_API_TOKEN"
	EnvLogLevel   = "SHELFX_LOG_LEVEL"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API        APIConfig        `toml:"api"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Database   DatabaseConfig   `toml:"database"`
	Logging    LoggingConfig    `toml:"logging"`
}

// APIConfig contains the remote library API connection settings.
type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	Token     string `toml:"token"`
	TimeoutMS int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
}

// EnrichmentConfig tunes the task orchestrator.
type EnrichmentConfig struct {
	PollIntervalMS    int     `toml:"poll_interval_ms"`
	RefreshDebounceMS int     `toml:"refresh_debounce_ms"`
	PageSize          int     `toml:"page_size"`
	BatchLimit        int     `toml:"batch_limit"`
	BulkRateLimit     float64 `toml:"bulk_rate_limit"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LoggingConfig controls log verbosity and destination.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c EnrichmentConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c EnrichmentConfig) RefreshDebounce() time.Duration {
	return time.Duration(c.RefreshDebounceMS) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects settings the orchestrator cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	case c.Enrichment.PollIntervalMS <= 0:
		return fmt.Errorf("%w: enrichment.poll_interval_ms must be positive", ErrInvalidConfig)
	case c.Enrichment.RefreshDebounceMS <= 0:
		return fmt.Errorf("%w: enrichment.refresh_debounce_ms must be positive", ErrInvalidConfig)
	case c.Enrichment.PageSize <= 0:
		return fmt.Errorf("%w: enrichment.page_size must be positive", ErrInvalidConfig)
	case c.Enrichment.BatchLimit <= 0:
		return fmt.Errorf("%w: enrichment.batch_limit must be positive", ErrInvalidConfig)
	case c.Enrichment.BulkRateLimit < 0:
		return fmt.Errorf("%w: enrichment.bulk_rate_limit cannot be negative", ErrInvalidConfig)
	case c.API.Retries < 0:
		return fmt.Errorf("%w: api.retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv loads a .env file when present and lets SHELFX_* variables override the file values.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
