package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can say "15m" or "10s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds the engine configuration.
type Config struct {
	DataDir string `yaml:"data_dir"`

	Log struct {
		Level string `yaml:"level"`
		JSON  bool   `yaml:"json"`
	} `yaml:"log"`

	Remote struct {
		URL     string   `yaml:"url"`
		Timeout Duration `yaml:"timeout"`
	} `yaml:"remote"`

	Sync struct {
		StalenessWindow Duration `yaml:"staleness_window"`
		RetryCeiling    int      `yaml:"retry_ceiling"`
		ReplayTimeout   Duration `yaml:"replay_timeout"`
		ProbeInterval   Duration `yaml:"probe_interval"`
	} `yaml:"sync"`

	Metrics struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{DataDir: "data"}
	cfg.Log.Level = "info"
	cfg.Remote.Timeout = Duration(10 * time.Second)
	cfg.Sync.StalenessWindow = Duration(15 * time.Minute)
	cfg.Sync.RetryCeiling = 5
	cfg.Sync.ReplayTimeout = Duration(10 * time.Second)
	cfg.Sync.ProbeInterval = Duration(15 * time.Second)
	cfg.Metrics.Listen = "127.0.0.1:9464"
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Sync.RetryCeiling < 1 {
		return fmt.Errorf("sync.retry_ceiling must be at least 1")
	}
	return nil
}
