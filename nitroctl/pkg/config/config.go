// Package config loads nitroctl's configuration file. All values have
// working defaults so the tool runs without any file present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sanxfxteam/NitroGen/pkg/client"
)

// Duration wraps time.Duration so YAML values like "30s" parse naturally.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds nitroctl's settings.
type Config struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	Timeout      Duration `yaml:"timeout"`
	OutputFormat string   `yaml:"output"`
}

// Default returns the stock configuration: the model server's default
// endpoint, its default receive bound, and table output.
func Default() *Config {
	return &Config{
		Host:         client.DefaultHost,
		Port:         client.DefaultPort,
		Timeout:      Duration(client.DefaultTimeout),
		OutputFormat: "table",
	}
}

// DefaultPath returns the conventional config file location,
// ~/.nitrogen/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nitrogen", "config.yaml")
}

// Load reads the config file at path, layered over the defaults. A missing
// file is not an error; a present but unreadable or invalid one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config %s: port %d out of range", path, cfg.Port)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("config %s: timeout must be positive", path)
	}
	return cfg, nil
}
