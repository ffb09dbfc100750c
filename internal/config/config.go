// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/frontieralpha/frontier/internal/belief"
	"github.com/frontieralpha/frontier/internal/infrastructure/cache"
	"github.com/frontieralpha/frontier/internal/infrastructure/db"
	"github.com/frontieralpha/frontier/internal/insight"
	"github.com/frontieralpha/frontier/internal/optimizer"
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Database  db.Config              `yaml:"database"`
	Cache     cache.Config           `yaml:"cache"`
	Optimizer optimizer.Config       `yaml:"optimizer"`
	Extractor insight.ExtractorConfig `yaml:"extractor"`
	Updater   belief.UpdaterConfig    `yaml:"updater"`
}

// Default returns the configuration used when no file is supplied: in-memory
// store, no cache, standard learning thresholds.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8090"},
		Database:  db.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Optimizer: optimizer.DefaultConfig(),
		Extractor: insight.DefaultExtractorConfig(),
		Updater:   belief.DefaultUpdaterConfig(),
	}
}

// Load reads and validates a YAML configuration file. Fields left unset fall
// back to defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.enabled")
	}
	if c.Updater.MinRate > 0 && c.Updater.MaxRate > 0 && c.Updater.MinRate > c.Updater.MaxRate {
		return fmt.Errorf("updater.min_rate %.3f exceeds updater.max_rate %.3f", c.Updater.MinRate, c.Updater.MaxRate)
	}
	if c.Updater.VolTargetMin > 0 && c.Updater.VolTargetMax > 0 && c.Updater.VolTargetMin > c.Updater.VolTargetMax {
		return fmt.Errorf("updater.vol_target_min %.3f exceeds updater.vol_target_max %.3f", c.Updater.VolTargetMin, c.Updater.VolTargetMax)
	}
	if c.Updater.DrawdownMin > 0 && c.Updater.DrawdownMax > 0 && c.Updater.DrawdownMin > c.Updater.DrawdownMax {
		return fmt.Errorf("updater.drawdown_min %.3f exceeds updater.drawdown_max %.3f", c.Updater.DrawdownMin, c.Updater.DrawdownMax)
	}
	if c.Extractor.SignificanceThreshold < 0 {
		return fmt.Errorf("extractor.significance_threshold must be non-negative")
	}
	return nil
}
