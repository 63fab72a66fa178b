// Package common provides shared utilities for navrank
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for navrank
type Config struct {
	Environment string           `toml:"environment"`
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Clients     ClientsConfig    `toml:"clients"`
	Dataset     DatasetConfig    `toml:"dataset"`
	Simulation  SimulationConfig `toml:"simulation"`
	Screen      ScreenConfig     `toml:"screen"`
	Logging     LoggingConfig    `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	WriteTimeout string `toml:"write_timeout"` // must cover a cold dataset refresh plus a backtest
}

// GetWriteTimeout parses and returns the response write timeout
func (c *ServerConfig) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(c.WriteTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// StorageConfig selects the persistence backend for datasets and audit output.
type StorageConfig struct {
	Driver string `toml:"driver"` // "file" (default) or "sqlite"
	Path   string `toml:"path"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	AMFI  AMFIConfig  `toml:"amfi"`
	MFAPI MFAPIConfig `toml:"mfapi"`
}

// AMFIConfig holds configuration for the AMFI scheme list download
type AMFIConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *AMFIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// MFAPIConfig holds NAV history API configuration
type MFAPIConfig struct {
	BaseURL     string `toml:"base_url"`
	Timeout     string `toml:"timeout"`
	RateLimit   int    `toml:"rate_limit"`
	MaxRetries  int    `toml:"max_retries"`
	BackoffBase string `toml:"backoff_base"`
}

// GetTimeout parses and returns the per-request timeout
func (c *MFAPIConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetBackoffBase parses and returns the first retry delay
func (c *MFAPIConfig) GetBackoffBase() time.Duration {
	d, err := time.ParseDuration(c.BackoffBase)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// DatasetConfig controls NAV dataset fetching and caching.
type DatasetConfig struct {
	MaxAge      string `toml:"max_age"`     // cached dataset is reused while younger than this
	Concurrency int    `toml:"concurrency"` // parallel NAV history fetches
	StaleAfter  string `toml:"stale_after"` // freshness threshold for a fund's latest NAV
}

// GetMaxAge parses and returns the cache max age
func (c *DatasetConfig) GetMaxAge() time.Duration {
	d, err := time.ParseDuration(c.MaxAge)
	if err != nil {
		return FreshnessDataset
	}
	return d
}

// GetStaleAfter parses and returns the staleness threshold
func (c *DatasetConfig) GetStaleAfter() time.Duration {
	d, err := time.ParseDuration(c.StaleAfter)
	if err != nil || d < 0 {
		return FreshnessNAV
	}
	return d
}

// GetConcurrency returns the fetch pool size, defaulting to 50
func (c *DatasetConfig) GetConcurrency() int {
	if c.Concurrency <= 0 {
		return 50
	}
	return c.Concurrency
}

// SimulationConfig holds momentum-rotation backtest parameters
type SimulationConfig struct {
	InitialInvestment float64 `toml:"initial_investment"`
	StartDate         string  `toml:"start_date"` // YYYY-MM-DD
	CadenceMonths     int     `toml:"cadence_months"`
	Lookback          string  `toml:"lookback"` // e.g. "1y", "6m", "1y6m", "90d"
	TopN              int     `toml:"top_n"`
}

// GetStartDate parses the configured start date
func (c *SimulationConfig) GetStartDate() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", c.StartDate, err)
	}
	return t, nil
}

// ScreenConfig holds screening query defaults
type ScreenConfig struct {
	Limit int `toml:"limit"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string `toml:"level"`
	Format   string `toml:"format"` // "console" or "json"
	FilePath string `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			WriteTimeout: "5m",
		},
		Storage: StorageConfig{
			Driver: "file",
			Path:   "data",
		},
		Clients: ClientsConfig{
			AMFI: AMFIConfig{
				URL:     "https://portal.amfiindia.com/DownloadSchemeData_Po.aspx?mf=0",
				Timeout: "60s",
			},
			MFAPI: MFAPIConfig{
				BaseURL:     "https://api.mfapi.in",
				Timeout:     "10s",
				RateLimit:   20,
				MaxRetries:  5,
				BackoffBase: "2s",
			},
		},
		Dataset: DatasetConfig{
			MaxAge:      "24h",
			Concurrency: 50,
			StaleAfter:  "72h",
		},
		Simulation: SimulationConfig{
			InitialInvestment: 1000000,
			StartDate:         "2019-01-01",
			CadenceMonths:     6,
			Lookback:          "1y",
			TopN:              5,
		},
		Screen: ScreenConfig{
			Limit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NAVRANK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("NAVRANK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("NAVRANK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("NAVRANK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("NAVRANK_DATA_PATH"); path != "" {
		config.Storage.Path = filepath.Clean(path)
	}

	if driver := os.Getenv("NAVRANK_STORAGE_DRIVER"); driver != "" {
		config.Storage.Driver = strings.ToLower(driver)
	}

	if n := os.Getenv("NAVRANK_TOP_N"); n != "" {
		if v, err := strconv.Atoi(n); err == nil {
			config.Simulation.TopN = v
		}
	}
}

// Validate rejects configurations the simulator cannot run with.
func (c *Config) Validate() error {
	if c.Simulation.TopN <= 0 {
		return fmt.Errorf("simulation.top_n must be positive, got %d", c.Simulation.TopN)
	}
	if c.Simulation.CadenceMonths <= 0 {
		return fmt.Errorf("simulation.cadence_months must be positive, got %d", c.Simulation.CadenceMonths)
	}
	if c.Simulation.InitialInvestment <= 0 {
		return fmt.Errorf("simulation.initial_investment must be positive, got %v", c.Simulation.InitialInvestment)
	}
	if _, err := c.Simulation.GetStartDate(); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q (supported: file, sqlite)", c.Storage.Driver)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
