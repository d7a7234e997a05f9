package schema

import (
	"errors"
	"time"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	// QuietPeriod is the debounce window for parameter and source edits.
	QuietPeriod time.Duration
	// Seed seeds per-panel data generation; zero picks a time-based seed.
	Seed uint64
	// HistoryMax bounds the per-panel source history.
	HistoryMax int
	// ConsoleMaxLines bounds the per-panel console transcript.
	ConsoleMaxLines int
}

// DefaultQuietPeriod is the default debounce window.
const DefaultQuietPeriod = 100 * time.Millisecond

// DefaultHistoryMax is the default per-panel source history size.
const DefaultHistoryMax = 50

// DefaultConsoleMaxLines is the default per-panel console transcript limit.
const DefaultConsoleMaxLines = 2000

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.QuietPeriod < 0 {
		return ServiceConfig{}, errors.New("quiet period must not be negative")
	}
	if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = DefaultHistoryMax
	}
	if cfg.ConsoleMaxLines <= 0 {
		cfg.ConsoleMaxLines = DefaultConsoleMaxLines
	}
	return cfg, nil
}
