// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package config defines the configuration shared by the gateway, inventory,
// and analytics services and loads it from layered sources
// (defaults -> YAML file -> environment).
package config

import (
	"fmt"
	"time"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
)

// Config is the root configuration for every service binary. Each binary
// reads the sections it needs; unknown sections are ignored.
type Config struct {
	Broker    BrokerConfig    `koanf:"broker"`
	Gateway   GatewayConfig   `koanf:"gateway"`
	Inventory InventoryConfig `koanf:"inventory"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Logging   logging.Config  `koanf:"logging"`
}

// BrokerConfig holds the NATS JetStream connection settings shared by all
// services.
type BrokerConfig struct {
	// URL is the NATS server connection URL.
	// Env: BROKER_URL (default: nats://127.0.0.1:4222)
	URL string `koanf:"url"`

	// Embedded runs an in-process NATS server instead of connecting to an
	// external one. Only the gateway enables this by default; the other
	// services connect to it.
	// Env: BROKER_EMBEDDED
	Embedded bool `koanf:"embedded"`

	// StoreDir is the JetStream storage directory for the embedded server.
	// Env: BROKER_STORE_DIR
	StoreDir string `koanf:"store_dir"`

	// RetentionAge is how long the logs retain events.
	// Env: BROKER_RETENTION_AGE
	RetentionAge time.Duration `koanf:"retention_age"`

	// MaxReconnects and ReconnectWait control client reconnection. A
	// negative MaxReconnects retries forever.
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// GatewayConfig holds the order ingestion gateway settings.
type GatewayConfig struct {
	// HTTPAddr is the listen address of the gateway facade.
	// Env: GATEWAY_HTTP_ADDR (default: :8000)
	HTTPAddr string `koanf:"http_addr"`

	// BulkWorkers is the number of concurrent publishers used by bulk
	// submission.
	// Env: GATEWAY_BULK_WORKERS (default: 16)
	BulkWorkers int `koanf:"bulk_workers"`

	// BulkFlushTimeout bounds how long a bulk submission waits for its
	// publish buffer to drain before reporting the remainder.
	// Env: GATEWAY_BULK_FLUSH_TIMEOUT (default: 30s)
	BulkFlushTimeout time.Duration `koanf:"bulk_flush_timeout"`

	// BulkRate paces bulk publishing in events per second. Zero disables
	// pacing.
	// Env: GATEWAY_BULK_RATE (default: 0)
	BulkRate int `koanf:"bulk_rate"`
}

// InventoryConfig holds the inventory processor settings.
type InventoryConfig struct {
	// FailRate is the injected probability p in [0,1] that an order fails
	// reservation with OUT_OF_STOCK.
	// Env: INVENTORY_FAIL_RATE (default: 0)
	FailRate float64 `koanf:"fail_rate"`

	// MaxQty fails any order containing an item with qty above this
	// threshold with reason QUANTITY_TOO_HIGH. Zero disables the check.
	// Env: INVENTORY_MAX_QTY (default: 0)
	MaxQty int `koanf:"max_qty"`

	// Throttle is a fixed per-message processing delay used to demonstrate
	// consumer lag. Bounded to 30s by validation.
	// Env: INVENTORY_THROTTLE (default: 0)
	Throttle time.Duration `koanf:"throttle"`

	// DurableName is the consumer durable name. Must be stable across
	// restarts for offset continuity.
	// Env: INVENTORY_DURABLE_NAME (default: inventory-service-group)
	DurableName string `koanf:"durable_name"`

	// DurableDedup persists the processed-order set in Badger so restarts
	// do not re-emit outcomes for orders handled before the crash.
	// Env: INVENTORY_DURABLE_DEDUP (default: false)
	DurableDedup bool `koanf:"durable_dedup"`

	// DedupPath is the Badger directory used when DurableDedup is on.
	// Env: INVENTORY_DEDUP_PATH
	DedupPath string `koanf:"dedup_path"`
}

// AnalyticsConfig holds the analytics aggregator settings.
type AnalyticsConfig struct {
	// HTTPAddr is the listen address of the analytics facade.
	// Env: ANALYTICS_HTTP_ADDR (default: :8002)
	HTTPAddr string `koanf:"http_addr"`

	// DurableName is the consumer durable name, stable across restarts.
	// Env: ANALYTICS_DURABLE_NAME (default: analytics-group)
	DurableName string `koanf:"durable_name"`

	// FlushInterval is how often the aggregator persists a snapshot while
	// idle or between messages.
	// Env: ANALYTICS_FLUSH_INTERVAL (default: 5s)
	FlushInterval time.Duration `koanf:"flush_interval"`

	// SnapshotPath is where snapshots are written. Empty disables the file.
	// Env: ANALYTICS_SNAPSHOT_PATH (default: metrics.json)
	SnapshotPath string `koanf:"snapshot_path"`
}

// Validate checks configuration invariants shared by all services.
func (c *Config) Validate() error {
	if c.Broker.URL == "" && !c.Broker.Embedded {
		return fmt.Errorf("broker.url is required when broker.embedded is false")
	}
	if c.Inventory.FailRate < 0 || c.Inventory.FailRate > 1 {
		return fmt.Errorf("inventory.fail_rate must be in [0,1], got %v", c.Inventory.FailRate)
	}
	if c.Inventory.MaxQty < 0 {
		return fmt.Errorf("inventory.max_qty must be non-negative, got %d", c.Inventory.MaxQty)
	}
	if c.Inventory.Throttle < 0 || c.Inventory.Throttle > 30*time.Second {
		return fmt.Errorf("inventory.throttle must be in [0s,30s], got %v", c.Inventory.Throttle)
	}
	if c.Inventory.DurableName == "" {
		return fmt.Errorf("inventory.durable_name is required")
	}
	if c.Analytics.DurableName == "" {
		return fmt.Errorf("analytics.durable_name is required")
	}
	if c.Analytics.FlushInterval <= 0 {
		return fmt.Errorf("analytics.flush_interval must be positive, got %v", c.Analytics.FlushInterval)
	}
	if c.Inventory.DurableDedup && c.Inventory.DedupPath == "" {
		return fmt.Errorf("inventory.dedup_path is required when inventory.durable_dedup is true")
	}
	if c.Gateway.BulkWorkers <= 0 {
		return fmt.Errorf("gateway.bulk_workers must be positive, got %d", c.Gateway.BulkWorkers)
	}
	return nil
}
