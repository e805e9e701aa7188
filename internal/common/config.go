// Package common provides shared utilities for filingfacts
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// SegmentsMode values control how segment (dimensional) extraction runs.
// Segment extraction is the most network/CPU-expensive step, so it can be
// skipped entirely, limited to annual filings, or run for every filing.
const (
	SegmentsNone   = "none"
	SegmentsAnnual = "annual"
	SegmentsFull   = "full"
)

// Config holds all configuration for filingfacts
type Config struct {
	Environment string        `toml:"environment"`
	SEC         SECConfig     `toml:"sec"`
	Extract     ExtractConfig `toml:"extract"`
	Report      ReportConfig  `toml:"report"`
	Logging     LoggingConfig `toml:"logging"`
}

// SECConfig holds SEC EDGAR client configuration
type SECConfig struct {
	BaseURL       string  `toml:"base_url"`      // www.sec.gov (archives, ticker file)
	DataBaseURL   string  `toml:"data_base_url"` // data.sec.gov (submissions, companyfacts)
	UserAgent     string  `toml:"user_agent"`    // required by SEC access policy
	RateLimit     float64 `toml:"rate_limit"`    // requests per second
	Timeout       string  `toml:"timeout"`
	CacheDir      string  `toml:"cache_dir"`
	MaxArtifactMB float64 `toml:"max_artifact_mb"` // per-artifact download cap
	MaxRunMB      float64 `toml:"max_run_mb"`      // cumulative per-run download cap
}

// GetTimeout parses and returns the timeout duration
func (c *SECConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ExtractConfig holds extraction pipeline configuration
type ExtractConfig struct {
	Years           int    `toml:"years"`         // lookback window
	SegmentsMode    string `toml:"segments_mode"` // none | annual | full
	MaxQuarters     int    `toml:"max_quarters"`  // quarterly filings retained after scoping
	PreferCache     bool   `toml:"prefer_cache"`
	IncludeForecast bool   `toml:"include_forecast"`
}

// Validate checks extraction settings that have no safe fallback. An invalid
// segments mode is a configuration error and fails the run up front.
func (c *ExtractConfig) Validate() error {
	switch c.SegmentsMode {
	case SegmentsNone, SegmentsAnnual, SegmentsFull:
	default:
		return fmt.Errorf("invalid segments_mode %q (want none, annual or full)", c.SegmentsMode)
	}
	if c.Years < 1 {
		return fmt.Errorf("years must be positive, got %d", c.Years)
	}
	if c.MaxQuarters < 1 {
		return fmt.Errorf("max_quarters must be positive, got %d", c.MaxQuarters)
	}
	return nil
}

// ReportConfig holds report/export configuration
type ReportConfig struct {
	OutputDir string `toml:"output_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		SEC: SECConfig{
			BaseURL:       "https://www.sec.gov",
			DataBaseURL:   "https://data.sec.gov",
			RateLimit:     3,
			Timeout:       "30s",
			CacheDir:      ".cache/sec",
			MaxArtifactMB: 25,
			MaxRunMB:      200,
		},
		Extract: ExtractConfig{
			Years:           5,
			SegmentsMode:    SegmentsAnnual,
			MaxQuarters:     8,
			PreferCache:     true,
			IncludeForecast: true,
		},
		Report: ReportConfig{
			OutputDir: "out",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

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

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FILINGFACTS_ENV"); env != "" {
		config.Environment = env
	}

	if ua := os.Getenv("SEC_USER_AGENT"); ua != "" {
		config.SEC.UserAgent = ua
	}

	if dir := os.Getenv("FILINGFACTS_CACHE_DIR"); dir != "" {
		config.SEC.CacheDir = dir
	}

	if level := os.Getenv("FILINGFACTS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if years := os.Getenv("FILINGFACTS_YEARS"); years != "" {
		if y, err := strconv.Atoi(years); err == nil {
			config.Extract.Years = y
		}
	}

	if mode := os.Getenv("FILINGFACTS_SEGMENTS_MODE"); mode != "" {
		config.Extract.SegmentsMode = strings.ToLower(mode)
	}

	if dir := os.Getenv("FILINGFACTS_OUTPUT_DIR"); dir != "" {
		config.Report.OutputDir = dir
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
