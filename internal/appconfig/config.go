package appconfig

import (
	"os"
	"path/filepath"

	"pkt.systems/smallrhost/internal/evalproc"
	"pkt.systems/smallrhost/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int             `mapstructure:"config_version" yaml:"config_version"`
	Evaluator     EvaluatorConfig `mapstructure:"evaluator" yaml:"evaluator"`
	Scheduler     SchedulerConfig `mapstructure:"scheduler" yaml:"scheduler"`
	Panels        PanelsConfig    `mapstructure:"panels" yaml:"panels"`
	Render        RenderConfig    `mapstructure:"render" yaml:"render"`
	Watch         WatchConfig     `mapstructure:"watch" yaml:"watch"`
	Metrics       MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// Evaluator runtimes.
const (
	RuntimeProcess = "process"
	RuntimeMock    = "mock"
)

// EvaluatorConfig selects and tunes the evaluator backend.
type EvaluatorConfig struct {
	Runtime            string            `mapstructure:"runtime" yaml:"runtime"`
	Binary             string            `mapstructure:"binary" yaml:"binary"`
	Args               []string          `mapstructure:"args" yaml:"args"`
	Env                map[string]string `mapstructure:"env" yaml:"env"`
	CallTimeoutSeconds int               `mapstructure:"call_timeout_seconds" yaml:"call_timeout_seconds"`
	LoadTimeoutSeconds int               `mapstructure:"load_timeout_seconds" yaml:"load_timeout_seconds"`
}

// SchedulerConfig controls trigger coalescing.
type SchedulerConfig struct {
	QuietPeriodMS int `mapstructure:"quiet_period_ms" yaml:"quiet_period_ms"`
}

// PanelsConfig controls which panels exist and how they are seeded.
type PanelsConfig struct {
	Seed            uint64   `mapstructure:"seed" yaml:"seed"`
	Boot            []string `mapstructure:"boot" yaml:"boot"`
	Enabled         []string `mapstructure:"enabled" yaml:"enabled"`
	HistoryMax      int      `mapstructure:"history_max" yaml:"history_max"`
	ConsoleMaxLines int      `mapstructure:"console_max_lines" yaml:"console_max_lines"`
}

// RenderConfig controls terminal output.
type RenderConfig struct {
	Color       string `mapstructure:"color" yaml:"color"`
	ShowConsole bool   `mapstructure:"show_console" yaml:"show_console"`
}

// WatchConfig configures the script directory watcher.
type WatchConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	enabled := make([]string, 0, len(schema.AllPanelKinds))
	for _, kind := range schema.AllPanelKinds {
		enabled = append(enabled, string(kind))
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Evaluator: EvaluatorConfig{
			Runtime:            RuntimeProcess,
			Binary:             evalproc.DefaultBinary,
			Args:               []string{},
			Env:                map[string]string{},
			CallTimeoutSeconds: int(evalproc.DefaultCallTimeout.Seconds()),
			LoadTimeoutSeconds: 60,
		},
		Scheduler: SchedulerConfig{
			QuietPeriodMS: int(schema.DefaultQuietPeriod.Milliseconds()),
		},
		Panels: PanelsConfig{
			Seed:            0,
			Boot:            []string{string(schema.PanelRegression)},
			Enabled:         enabled,
			HistoryMax:      schema.DefaultHistoryMax,
			ConsoleMaxLines: schema.DefaultConsoleMaxLines,
		},
		Render: RenderConfig{
			Color:       "auto",
			ShowConsole: true,
		},
		Watch: WatchConfig{
			Dir: "",
		},
		Metrics: MetricsConfig{
			Addr: "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".smallrhost", "config.yaml"), nil
}
