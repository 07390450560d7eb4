// Cardstock - MTG Card Catalog and Price Lookup Service
// Copyright 2026 Cardstock Authors
// SPDX-License-Identifier: MIT
// https://github.com/tcgtools/cardstock

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cardstock/config.yaml",
	"/etc/cardstock/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if it exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as
// comma-separated slices when they arrive from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings, but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings maps CARDSTOCK_-prefixed environment variable names (lowercased)
// to koanf config paths. An explicit table is required because multi-word leaf
// keys like refresh_on_start cannot be recovered by splitting on underscores.
var envMappings = map[string]string{
	// Server
	"cardstock_host":              "server.host",
	"cardstock_port":              "server.port",
	"cardstock_read_timeout":      "server.read_timeout",
	"cardstock_write_timeout":     "server.write_timeout",
	"cardstock_shutdown_timeout":  "server.shutdown_timeout",
	"cardstock_api_token":         "server.api_token",
	"cardstock_cors_origins":      "server.cors_origins",
	"cardstock_rate_limit_lookup": "server.rate_limit_lookup",
	"cardstock_rate_limit_health": "server.rate_limit_health",

	// Catalog dataset
	"cardstock_catalog_url":              "catalog.url",
	"cardstock_catalog_ttl":              "catalog.ttl",
	"cardstock_catalog_fetch_timeout":    "catalog.fetch_timeout",
	"cardstock_catalog_refresh_on_start": "catalog.refresh_on_start",
	"cardstock_catalog_refresh_interval": "catalog.refresh_interval",
	"cardstock_catalog_rate_limit":       "catalog.rate_limit",
	"cardstock_catalog_token_url":        "catalog.token_url",
	"cardstock_tcgplayer_public_key":     "catalog.public_key",
	"cardstock_tcgplayer_private_key":    "catalog.private_key",

	// Prices dataset
	"cardstock_prices_url":              "prices.url",
	"cardstock_prices_ttl":              "prices.ttl",
	"cardstock_prices_fetch_timeout":    "prices.fetch_timeout",
	"cardstock_prices_refresh_on_start": "prices.refresh_on_start",
	"cardstock_prices_refresh_interval": "prices.refresh_interval",
	"cardstock_prices_rate_limit":       "prices.rate_limit",

	// Snapshot persistence
	"cardstock_snapshot_enabled": "snapshot.enabled",
	"cardstock_snapshot_path":    "snapshot.path",

	// Logging
	"cardstock_log_level":  "logging.level",
	"cardstock_log_format": "logging.format",
}

// envTransformFunc transforms environment variable names to koanf config
// paths. Unrecognized variables are dropped so unrelated environment noise
// never leaks into the configuration.
//
// Examples:
//   - CARDSTOCK_PORT -> server.port
//   - CARDSTOCK_CATALOG_REFRESH_ON_START -> catalog.refresh_on_start
//   - CARDSTOCK_LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(key)
	if path, ok := envMappings[key]; ok {
		return path
	}
	return ""
}
