package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/rival/internal/domain/model"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if RIVAL_CONFIG is set
//  3. env (prefix RIVAL_)
func Load() (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("RIVAL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: RIVAL_ADDR, RIVAL_DAY_END_TIME, ...
	// Map env keys like RIVAL_DAY_END_TIME -> day_end_time (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("RIVAL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "rival_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field values and wraps failures in ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if _, err := model.ParseDayBoundary(c.DayEndTime); err != nil {
		return fmt.Errorf("%w: day_end_time %q: %w", ErrInvalidConfig, c.DayEndTime, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %w", ErrInvalidConfig, c.Timezone, err)
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("%w: tick_ms must be positive", ErrInvalidConfig)
	}
	if c.SweepIntervalS <= 0 {
		return fmt.Errorf("%w: sweep_interval_s must be positive", ErrInvalidConfig)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	return nil
}

// DayBoundary parses the configured day end time. Call Validate first.
func (c *Config) DayBoundary() (model.DayBoundary, error) {
	return model.ParseDayBoundary(c.DayEndTime)
}

// Location resolves the configured timezone. Empty means the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
