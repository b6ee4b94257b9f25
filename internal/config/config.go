package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds optional defaults loaded from
// ~/.config/iamaudit/config.yaml. CLI flags take precedence.
type Config struct {
	DefaultProfile   string `yaml:"default_profile"`
	DefaultRegion    string `yaml:"default_region"`
	AgeThresholdDays int    `yaml:"age_threshold_days"`
	Workers          int    `yaml:"workers"`
	RetryAttempts    int    `yaml:"retry_attempts"`
}

// Load reads the config file. Returns zero-value Config if the file
// doesn't exist.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return &Config{}, nil
	}

	path := filepath.Join(home, ".config", "iamaudit", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Profile resolves the AWS profile: flag first, then config default
func (c *Config) Profile(flag string) string {
	if flag != "" {
		return flag
	}
	return c.DefaultProfile
}

// Region resolves the region: flag, then config default, then fallback
func (c *Config) Region(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	if c.DefaultRegion != "" {
		return c.DefaultRegion
	}
	return fallback
}

// IntOr resolves an integer setting: flag value when the user changed it,
// then the config default, then the engine default.
func IntOr(flag, configured, fallback int) int {
	if flag > 0 {
		return flag
	}
	if configured > 0 {
		return configured
	}
	return fallback
}
