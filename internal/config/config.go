// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's sentinel errors.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DayEndTime is the daily boundary in "HH:MM" local wall-clock time.
	// Daily goals are due at this time and the countdown targets it.
	DayEndTime string `koanf:"day_end_time"`

	// Timezone is an IANA zone name, e.g. "America/New_York".
	// Empty means the host's local zone.
	Timezone string `koanf:"timezone"`

	// DBPath is the SQLite database file path.
	DBPath string `koanf:"db_path"`

	// TickIntervalMS is the engine evaluation interval in milliseconds.
	TickIntervalMS int `koanf:"tick_ms"`

	// SweepIntervalS is the missed-deadline sweep interval in seconds.
	SweepIntervalS int `koanf:"sweep_interval_s"`

	// QueueSize bounds the in-memory resolution queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of resolution workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the in-flight resolution guard.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxGoalListLimit caps GET /goals?limit.
	MaxGoalListLimit int `koanf:"max_goal_list_limit"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		DayEndTime:       "23:59",
		Timezone:         "",
		DBPath:           "rival.db",
		TickIntervalMS:   250,
		SweepIntervalS:   60,
		QueueSize:        10_000,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		MaxGoalListLimit: 200,
	}
}
