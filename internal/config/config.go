package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strrl/focus-signals/internal/logging"
	"github.com/strrl/focus-signals/internal/presets"
	"github.com/strrl/focus-signals/internal/returnctx"
	"github.com/strrl/focus-signals/internal/trends"
)

const (
	EnvDatabase = "FOCUS_SIGNALS_DB"
	EnvLogLevel = "FOCUS_SIGNALS_LOG_LEVEL"
	EnvUser     = "FOCUS_SIGNALS_USER"
)

// Config holds all focus-signals configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  logging.Config `yaml:"logging"`
	User     string         `yaml:"user"`
	Presets  PresetsConfig  `yaml:"presets"`
	Trends   TrendsConfig   `yaml:"trends"`
	Return   ReturnConfig   `yaml:"return"`
}

type DatabaseConfig struct {
	// Path of the DuckDB file; ":memory:" keeps everything in process.
	Path string `yaml:"path"`
}

type PresetsConfig struct {
	// Stacking is "layer" or "replace".
	Stacking string `yaml:"stacking"`
}

type TrendsConfig struct {
	Window           string `yaml:"window"`
	MinSettlingPrior int    `yaml:"min_settling_prior"`
}

type ReturnConfig struct {
	GapDays       int    `yaml:"gap_days"`
	PreferenceTTL string `yaml:"preference_ttl"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "focus-signals.duckdb"},
		Logging:  logging.Config{Level: "warn"},
		User:     "local",
		Presets:  PresetsConfig{Stacking: string(presets.StackLayer)},
		Trends:   TrendsConfig{Window: "168h", MinSettlingPrior: 1},
		Return:   ReturnConfig{GapDays: returnctx.DefaultGapDays, PreferenceTTL: "168h"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(EnvDatabase); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvUser); v != "" {
		c.User = v
	}
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if !presets.StackPolicy(c.Presets.Stacking).IsValid() {
		return fmt.Errorf("presets.stacking must be %q or %q, got %q", presets.StackLayer, presets.StackReplace, c.Presets.Stacking)
	}
	if _, err := parseDuration(c.Trends.Window); err != nil {
		return fmt.Errorf("trends.window: %w", err)
	}
	if _, err := parseDuration(c.Return.PreferenceTTL); err != nil {
		return fmt.Errorf("return.preference_ttl: %w", err)
	}
	return nil
}

func (c *Config) PresetsConfig() presets.Config {
	return presets.Config{Stacking: presets.StackPolicy(c.Presets.Stacking)}
}

func (c *Config) TrendsConfig() trends.Config {
	window, _ := parseDuration(c.Trends.Window)
	return trends.Config{Window: window, MinSettlingPrior: c.Trends.MinSettlingPrior}
}

func (c *Config) ReturnConfig() returnctx.Config {
	ttl, _ := parseDuration(c.Return.PreferenceTTL)
	return returnctx.Config{GapDays: c.Return.GapDays, PreferenceTTL: ttl}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", s)
	}
	return d, nil
}
