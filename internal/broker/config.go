// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package broker provides the NATS JetStream substrate for the pipeline:
// an optional embedded server, stream provisioning for the orders and
// inventory logs, and resilient Watermill publishers and subscribers.
//
// Partitioning note: the partition key of an event is the final subject
// token (orders.<orderId>, inventory.<orderId>). JetStream preserves
// publish order within a stream, so all events for one order are totally
// ordered while cross-order interleaving is unspecified.
package broker

import (
	"time"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
)

// Stream names. Subjects under each stream carry the order ID as the last
// token, which acts as the partition key.
const (
	OrdersStream    = "ORDERS"
	InventoryStream = "INVENTORY"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool
}

// DefaultPublisherConfig returns production defaults for the publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024, // 8MB
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName is the JetStream stream to bind to. Binding is required
	// here because the consumed topics are wildcards (orders.>) and NATS
	// stream names cannot contain wildcards, so AutoProvision would fail.
	StreamName string

	// DeliverAll starts a fresh durable at the beginning of the stream.
	// A first subscription with DeliverAll reads the log from offset zero;
	// an existing durable resumes from its last acked position regardless.
	DeliverAll bool
}

// DefaultSubscriberConfig returns production defaults for a durable
// subscriber bound to the given stream.
func DefaultSubscriberConfig(url, durable, stream string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      durable,
		StreamName:       stream,
		SubscribersCount: 1, // single consumer preserves per-key order
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		DeliverAll:       true,
	}
}

// StreamConfig defines a durable event log.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// OrdersStreamConfig returns the configuration of the orders log.
func OrdersStreamConfig(maxAge time.Duration) StreamConfig {
	return StreamConfig{
		Name:            OrdersStream,
		Subjects:        []string{event.TopicOrdersAll},
		MaxAge:          maxAge,
		MaxBytes:        10 * 1024 * 1024 * 1024, // 10GB
		MaxMsgs:         -1,                      // unlimited
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// InventoryStreamConfig returns the configuration of the inventory
// outcomes log.
func InventoryStreamConfig(maxAge time.Duration) StreamConfig {
	return StreamConfig{
		Name:            InventoryStream,
		Subjects:        []string{event.TopicInventoryAll},
		MaxAge:          maxAge,
		MaxBytes:        10 * 1024 * 1024 * 1024, // 10GB
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings for the publisher.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // allowed in half-open state
	Interval         time.Duration // reset interval for counts
	Timeout          time.Duration // time to stay open
	FailureThreshold uint32        // failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
