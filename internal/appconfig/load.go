package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"pkt.systems/smallrhost/internal/evalproc"
	"pkt.systems/smallrhost/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("evaluator.runtime", cfg.Evaluator.Runtime)
	v.SetDefault("evaluator.binary", cfg.Evaluator.Binary)
	v.SetDefault("evaluator.args", cfg.Evaluator.Args)
	v.SetDefault("evaluator.env", cfg.Evaluator.Env)
	v.SetDefault("evaluator.call_timeout_seconds", cfg.Evaluator.CallTimeoutSeconds)
	v.SetDefault("evaluator.load_timeout_seconds", cfg.Evaluator.LoadTimeoutSeconds)
	v.SetDefault("scheduler.quiet_period_ms", cfg.Scheduler.QuietPeriodMS)
	v.SetDefault("panels.seed", cfg.Panels.Seed)
	v.SetDefault("panels.boot", cfg.Panels.Boot)
	v.SetDefault("panels.enabled", cfg.Panels.Enabled)
	v.SetDefault("panels.history_max", cfg.Panels.HistoryMax)
	v.SetDefault("panels.console_max_lines", cfg.Panels.ConsoleMaxLines)
	v.SetDefault("render.color", cfg.Render.Color)
	v.SetDefault("render.show_console", cfg.Render.ShowConsole)
	v.SetDefault("watch.dir", cfg.Watch.Dir)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.IsSet("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks a decoded config.
func Validate(cfg Config) error {
	switch cfg.Evaluator.Runtime {
	case RuntimeProcess:
		if strings.TrimSpace(cfg.Evaluator.Binary) == "" {
			return fmt.Errorf("evaluator.binary is required for runtime %q", RuntimeProcess)
		}
	case RuntimeMock:
	default:
		return fmt.Errorf("unsupported evaluator.runtime %q", cfg.Evaluator.Runtime)
	}
	if cfg.Evaluator.CallTimeoutSeconds < 0 || cfg.Evaluator.LoadTimeoutSeconds < 0 {
		return fmt.Errorf("evaluator timeouts must not be negative")
	}
	if cfg.Scheduler.QuietPeriodMS < 0 {
		return fmt.Errorf("scheduler.quiet_period_ms must not be negative")
	}
	enabled, err := cfg.EnabledKinds()
	if err != nil {
		return err
	}
	boot, err := cfg.BootKinds()
	if err != nil {
		return err
	}
	for _, kind := range boot {
		found := false
		for _, candidate := range enabled {
			if candidate == kind {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("panels.boot lists %q which is not in panels.enabled", kind)
		}
	}
	switch cfg.Render.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("render.color must be auto, always or never")
	}
	return nil
}

// EnabledKinds parses panels.enabled. An empty list enables every kind.
func (c Config) EnabledKinds() ([]schema.PanelKind, error) {
	if len(c.Panels.Enabled) == 0 {
		return append([]schema.PanelKind(nil), schema.AllPanelKinds...), nil
	}
	return parseKinds("panels.enabled", c.Panels.Enabled)
}

// BootKinds parses panels.boot.
func (c Config) BootKinds() ([]schema.PanelKind, error) {
	return parseKinds("panels.boot", c.Panels.Boot)
}

func parseKinds(key string, values []string) ([]schema.PanelKind, error) {
	out := make([]schema.PanelKind, 0, len(values))
	for _, value := range values {
		kind, err := schema.NormalizePanelKind(value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, kind)
	}
	return out, nil
}

// ServiceConfig maps the config onto core service settings.
func (c Config) ServiceConfig() schema.ServiceConfig {
	return schema.ServiceConfig{
		QuietPeriod:     time.Duration(c.Scheduler.QuietPeriodMS) * time.Millisecond,
		Seed:            c.Panels.Seed,
		HistoryMax:      c.Panels.HistoryMax,
		ConsoleMaxLines: c.Panels.ConsoleMaxLines,
	}
}

// ProcessConfig maps the evaluator section onto the process evaluator.
func (c Config) ProcessConfig() evalproc.Config {
	keys := make([]string, 0, len(c.Evaluator.Env))
	for key := range c.Evaluator.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, strings.ToUpper(key)+"="+c.Evaluator.Env[key])
	}
	return evalproc.Config{
		BinaryPath:  c.Evaluator.Binary,
		ExtraArgs:   append([]string(nil), c.Evaluator.Args...),
		Env:         env,
		CallTimeout: time.Duration(c.Evaluator.CallTimeoutSeconds) * time.Second,
	}
}

// LoadTimeout bounds the evaluator load; zero means no bound.
func (c Config) LoadTimeout() time.Duration {
	return time.Duration(c.Evaluator.LoadTimeoutSeconds) * time.Second
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Evaluator.Binary = expandEnv(cfg.Evaluator.Binary)
	for i, arg := range cfg.Evaluator.Args {
		cfg.Evaluator.Args[i] = expandEnv(arg)
	}
	for key, value := range cfg.Evaluator.Env {
		cfg.Evaluator.Env[key] = expandEnv(value)
	}
	cfg.Watch.Dir = expandEnv(cfg.Watch.Dir)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
