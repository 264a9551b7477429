package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is nmctl's on-disk configuration, read from
// ~/.config/nmctl/config.yaml when present.
type Config struct {
	// Timeout is a Go duration string bounding D-Bus calls and state waits.
	Timeout string `yaml:"timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Interface is the default device for WiFi commands when -i is not given.
	Interface string `yaml:"interface"`
	// Keyring disables passphrase storage lookups when false.
	Keyring *bool `yaml:"keyring"`
}

func defaultConfig() Config {
	enabled := true
	return Config{
		Timeout:  "15s",
		LogLevel: "warn",
		Keyring:  &enabled,
	}
}

func configPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "nmctl", "config.yaml"), nil
}

// loadConfig merges the config file over the defaults. A missing file is not
// an error.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	path, err := configPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fileCfg.Timeout != "" {
		cfg.Timeout = fileCfg.Timeout
	}
	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.Interface != "" {
		cfg.Interface = fileCfg.Interface
	}
	if fileCfg.Keyring != nil {
		cfg.Keyring = fileCfg.Keyring
	}

	return cfg, nil
}

func (c Config) timeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

func (c Config) keyringEnabled() bool {
	return c.Keyring == nil || *c.Keyring
}
