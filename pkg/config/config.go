// Copyright (c) Drift Apps, Inc.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml"
)

const (
	StorageDefaultDir      = "/var/lib/driftup"
	DatabaseFilename       = "driftup.db"
	StagingDirname         = "staging"
	DefaultIntervalSeconds = 300
)

type Config struct {
	StorageDir            string `toml:"storage_dir"`
	ManifestURL           string `toml:"manifest_url"`
	TelemetryURL          string `toml:"telemetry_url"`
	CheckIntervalSeconds  int    `toml:"check_interval_seconds"`
	LegacyPreferencesPath string `toml:"legacy_preferences_path"`
	InternalUser          bool   `toml:"internal_user"`
}

// Load reads the TOML config file. An absent file yields defaults; an
// unreadable or invalid one is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{
		StorageDir:           StorageDefaultDir,
		CheckIntervalSeconds: DefaultIntervalSeconds,
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %q: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %q: %w", path, err)
	}
	if cfg.ManifestURL != "" {
		if _, err := url.Parse(cfg.ManifestURL); err != nil {
			return nil, fmt.Errorf("config: invalid manifest URL: %w", err)
		}
	}
	if cfg.CheckIntervalSeconds <= 0 {
		cfg.CheckIntervalSeconds = DefaultIntervalSeconds
	}
	return cfg, nil
}

func (c *Config) DBPath() string {
	return filepath.Join(c.StorageDir, DatabaseFilename)
}

func (c *Config) StagingDir() string {
	return filepath.Join(c.StorageDir, StagingDirname)
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}
