// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

// Package config defines the Cardstock configuration structure and its
// layered loading via Koanf v2 (struct defaults → optional YAML file →
// environment variables).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Cardstock server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Catalog  DatasetConfig  `koanf:"catalog"`
	Prices   DatasetConfig  `koanf:"prices"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// APIToken, when non-empty, is required as a Bearer token on all lookup
	// and refresh endpoints. Health and metrics stay open for probes.
	APIToken string `koanf:"api_token"`

	// CORSOrigins lists allowed origins; the spreadsheet add-on calls from
	// Google's script runtime, so the default is permissive.
	CORSOrigins []string `koanf:"cors_origins"`

	// Rate limits, requests per minute per client IP.
	RateLimitLookup int `koanf:"rate_limit_lookup"`
	RateLimitHealth int `koanf:"rate_limit_health"`
}

// DatasetConfig holds one dataset's upstream and cache settings. Catalog and
// prices each get their own copy; they never share locks or cadence.
type DatasetConfig struct {
	URL          string        `koanf:"url"`
	TTL          time.Duration `koanf:"ttl"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	// RefreshOnStart triggers one eager refresh when the process starts.
	RefreshOnStart bool `koanf:"refresh_on_start"`

	// RefreshInterval enables the proactive background refresh ticker when
	// positive. The ticker only calls the same staleness check the lookup
	// path uses, so behavior is identical to lazy checking.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// Upstream requests per minute. Guards the provider, not our callers.
	RateLimit int `koanf:"rate_limit"`

	// TokenURL, PublicKey and PrivateKey configure the OAuth
	// client-credentials exchange for providers that require it
	// (the TCGplayer catalog). Leave empty for unauthenticated sources.
	TokenURL   string `koanf:"token_url"`
	PublicKey  string `koanf:"public_key"`
	PrivateKey string `koanf:"private_key"`
}

// SnapshotConfig controls BadgerDB snapshot persistence across restarts.
type SnapshotConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			APIToken:        "",
			CORSOrigins:     []string{"*"},
			RateLimitLookup: 300,
			RateLimitHealth: 1000,
		},
		Catalog: DatasetConfig{
			URL:             "https://api.tcgplayer.com/catalog/products",
			TTL:             24 * time.Hour,
			FetchTimeout:    5 * time.Minute,
			RefreshOnStart:  true,
			RefreshInterval: 0,
			RateLimit:       10,
			TokenURL:        "https://api.tcgplayer.com/token",
			PublicKey:       "",
			PrivateKey:      "",
		},
		Prices: DatasetConfig{
			URL:             "https://mtgjson.com/api/v5/AllPricesToday.json",
			TTL:             24 * time.Hour,
			FetchTimeout:    5 * time.Minute,
			RefreshOnStart:  true,
			RefreshInterval: 0,
			RateLimit:       10,
		},
		Snapshot: SnapshotConfig{
			Enabled: false,
			Path:    "/data/cardstock/snapshots",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values that would misbehave at
// runtime. Messages name the offending key so operators can fix the right
// setting.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if err := validateDataset("catalog", &c.Catalog); err != nil {
		return err
	}
	if err := validateDataset("prices", &c.Prices); err != nil {
		return err
	}
	if c.Snapshot.Enabled && c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path is required when snapshot.enabled is true")
	}
	return nil
}

func validateDataset(name string, d *DatasetConfig) error {
	if d.URL == "" {
		return fmt.Errorf("%s.url is required", name)
	}
	if d.TTL <= 0 {
		return fmt.Errorf("%s.ttl must be positive, got %s", name, d.TTL)
	}
	if d.FetchTimeout <= 0 {
		return fmt.Errorf("%s.fetch_timeout must be positive, got %s", name, d.FetchTimeout)
	}
	if d.RefreshInterval < 0 {
		return fmt.Errorf("%s.refresh_interval must not be negative, got %s", name, d.RefreshInterval)
	}
	return nil
}
