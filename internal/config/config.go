// Package config defines service configuration and the rules catalog.
//
// Conventions:
//   - New() returns a Config populated with defaults.
//   - Load(ctx) layers a YAML file and MERIT_ environment variables on top.
//   - The rules catalog (point tables, caps, multiplier tiers) lives in a
//     separate TOML file so it can be reloaded without a restart.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// StoreTimeoutMS bounds every storage call.
	StoreTimeoutMS int `koanf:"store_timeout_ms"`

	// Timezone defines "today" for streaks and day caps.
	Timezone string `koanf:"timezone"`

	// EventQueueSize bounds the async award queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of award workers.
	WorkerCount int `koanf:"worker_count"`

	// AwardRetries is how many times a worker retries a transient failure.
	AwardRetries int `koanf:"award_retries"`

	// DedupeSize sets the size of the committed source key cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /v1/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// League assignment cohort settings.
	MinLeagueSize int     `koanf:"min_league_size"`
	TopPct        float64 `koanf:"top_pct"`
	BottomPct     float64 `koanf:"bottom_pct"`

	// BiasCap is the leaderboard positional bias cap, at most 0.05.
	BiasCap float64 `koanf:"bias_cap"`

	// RulesPath points at a TOML rules catalog. Empty uses DefaultRules.
	RulesPath string `koanf:"rules_path"`

	// StreakRolloverIntervalS is how often the streak rollover job runs.
	// Zero disables the job.
	StreakRolloverIntervalS int `koanf:"streak_rollover_interval_s"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		DBPath:                  "merit.db",
		StoreTimeoutMS:          5000,
		Timezone:                "UTC",
		EventQueueSize:          10_000,
		WorkerCount:             runtime.NumCPU(),
		AwardRetries:            5,
		DedupeSize:              100_000,
		MaxLeaderboardLimit:     100,
		MinLeagueSize:           10,
		TopPct:                  0.20,
		BottomPct:               0.20,
		BiasCap:                 0.05,
		StreakRolloverIntervalS: 3600,
	}
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBPath == "":
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	case c.StoreTimeoutMS <= 0:
		return fmt.Errorf("%w: store_timeout_ms must be positive", ErrInvalidConfig)
	case c.EventQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.AwardRetries < 0:
		return fmt.Errorf("%w: award_retries must not be negative", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.MinLeagueSize <= 0:
		return fmt.Errorf("%w: min_league_size must be positive", ErrInvalidConfig)
	case c.TopPct < 0 || c.BottomPct < 0 || c.TopPct+c.BottomPct > 1:
		return fmt.Errorf("%w: top_pct and bottom_pct must be in [0,1] and not overlap", ErrInvalidConfig)
	case c.BiasCap < 0 || c.BiasCap > 0.05:
		return fmt.Errorf("%w: bias_cap must be within [0, 0.05]", ErrInvalidConfig)
	case c.StreakRolloverIntervalS < 0:
		return fmt.Errorf("%w: streak_rollover_interval_s must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// StoreTimeout returns StoreTimeoutMS as a duration.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMS) * time.Millisecond
}

// StreakRolloverInterval returns StreakRolloverIntervalS as a duration.
func (c *Config) StreakRolloverInterval() time.Duration {
	return time.Duration(c.StreakRolloverIntervalS) * time.Second
}
