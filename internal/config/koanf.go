// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ordering/config.yaml",
	"/etc/ordering/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with the defaults every service starts from.
// Defaults are applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Broker: BrokerConfig{
			URL:           "nats://127.0.0.1:4222",
			Embedded:      false,
			StoreDir:      "/data/nats/jetstream",
			RetentionAge:  7 * 24 * time.Hour,
			MaxReconnects: -1, // retry forever
			ReconnectWait: 2 * time.Second,
		},
		Gateway: GatewayConfig{
			HTTPAddr:         ":8000",
			BulkWorkers:      16,
			BulkFlushTimeout: 30 * time.Second,
			BulkRate:         0,
		},
		Inventory: InventoryConfig{
			FailRate:     0,
			MaxQty:       0,
			Throttle:     0,
			DurableName:  "inventory-service-group",
			DurableDedup: false,
			DedupPath:    "/data/inventory/dedup",
		},
		Analytics: AnalyticsConfig{
			HTTPAddr:      ":8002",
			DurableName:   "analytics-group",
			FlushInterval: 5 * time.Second,
			SnapshotPath:  "metrics.json",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if it exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// BROKER_URL -> broker.url, INVENTORY_FAIL_RATE -> inventory.fail_rate
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
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

// findConfigFile searches for a config file in the default paths. Returns the
// first file found, or empty string if none exists.
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

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped keys return empty string so random environment variables do not
// pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Broker mappings
		"broker_url":            "broker.url",
		"broker_embedded":       "broker.embedded",
		"broker_store_dir":      "broker.store_dir",
		"broker_retention_age":  "broker.retention_age",
		"broker_max_reconnects": "broker.max_reconnects",
		"broker_reconnect_wait": "broker.reconnect_wait",

		// Gateway mappings
		"gateway_http_addr":          "gateway.http_addr",
		"gateway_bulk_workers":       "gateway.bulk_workers",
		"gateway_bulk_flush_timeout": "gateway.bulk_flush_timeout",
		"gateway_bulk_rate":          "gateway.bulk_rate",

		// Inventory mappings
		"inventory_fail_rate":     "inventory.fail_rate",
		"inventory_max_qty":       "inventory.max_qty",
		"inventory_throttle":      "inventory.throttle",
		"inventory_durable_name":  "inventory.durable_name",
		"inventory_durable_dedup": "inventory.durable_dedup",
		"inventory_dedup_path":    "inventory.dedup_path",

		// Analytics mappings
		"analytics_http_addr":      "analytics.http_addr",
		"analytics_durable_name":   "analytics.durable_name",
		"analytics_flush_interval": "analytics.flush_interval",
		"analytics_snapshot_path":  "analytics.snapshot_path",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
