// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/metrics"
)

// StreamManager handles JetStream stream and consumer lifecycle for the
// orders and inventory logs.
type StreamManager struct {
	js jetstream.JetStream
	nc *nats.Conn
}

// Connect dials NATS and returns a StreamManager over the connection.
func Connect(url string, maxReconnects int, opts ...nats.Option) (*StreamManager, error) {
	connOpts := append([]nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(maxReconnects),
	}, opts...)

	nc, err := nats.Connect(url, connOpts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewStreamManager(nc)
}

// NewStreamManager creates a stream manager over an existing connection.
func NewStreamManager(nc *nats.Conn) (*StreamManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	return &StreamManager{
		js: js,
		nc: nc,
	}, nil
}

// EnsureStream creates or updates one stream.
func (m *StreamManager) EnsureStream(ctx context.Context, cfg StreamConfig) (jetstream.Stream, error) {
	streamCfg := jetstream.StreamConfig{
		Name:        cfg.Name,
		Subjects:    cfg.Subjects,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxBytes:    cfg.MaxBytes,
		MaxMsgs:     cfg.MaxMsgs,
		Duplicates:  cfg.DuplicateWindow,
		Replicas:    cfg.Replicas,
		Storage:     jetstream.FileStorage,
		AllowDirect: true,
		Discard:     jetstream.DiscardOld,
	}

	if _, err := m.js.Stream(ctx, cfg.Name); err == nil {
		stream, err := m.js.UpdateStream(ctx, streamCfg)
		if err != nil {
			return nil, fmt.Errorf("update stream %s: %w", cfg.Name, err)
		}
		return stream, nil
	}

	stream, err := m.js.CreateStream(ctx, streamCfg)
	if err != nil {
		return nil, fmt.Errorf("create stream %s: %w", cfg.Name, err)
	}

	return stream, nil
}

// EnsureStreams provisions both pipeline logs.
func (m *StreamManager) EnsureStreams(ctx context.Context, orders, inventory StreamConfig) error {
	if _, err := m.EnsureStream(ctx, orders); err != nil {
		return err
	}
	if _, err := m.EnsureStream(ctx, inventory); err != nil {
		return err
	}
	return nil
}

// ResetConsumers deletes every durable consumer on the stream whose name
// starts with durablePrefix. A subsequent DeliverAll subscription with the
// same durable name starts from the beginning of the log. This is the
// replay primitive: forgetting the committed position, not rewriting the
// log.
//
// Matching by prefix is deliberate: the Watermill NATS subscriber derives
// consumer names from the configured durable prefix and may suffix them
// per topic.
func (m *StreamManager) ResetConsumers(ctx context.Context, streamName, durablePrefix string) (int, error) {
	stream, err := m.js.Stream(ctx, streamName)
	if err != nil {
		return 0, fmt.Errorf("get stream %s: %w", streamName, err)
	}

	deleted := 0
	lister := stream.ConsumerNames(ctx)
	for name := range lister.Name() {
		if !strings.HasPrefix(name, durablePrefix) {
			continue
		}
		if err := stream.DeleteConsumer(ctx, name); err != nil {
			return deleted, fmt.Errorf("delete consumer %s on %s: %w", name, streamName, err)
		}
		deleted++
	}
	if err := lister.Err(); err != nil {
		return deleted, fmt.Errorf("list consumers on %s: %w", streamName, err)
	}

	return deleted, nil
}

// ConsumerLag reports the number of log entries the durable consumer has
// not yet processed, summed over consumers matching the prefix. The value
// is also exported as a gauge.
func (m *StreamManager) ConsumerLag(ctx context.Context, streamName, durablePrefix string) (uint64, error) {
	stream, err := m.js.Stream(ctx, streamName)
	if err != nil {
		return 0, fmt.Errorf("get stream %s: %w", streamName, err)
	}

	var lag uint64
	lister := stream.ConsumerNames(ctx)
	for name := range lister.Name() {
		if !strings.HasPrefix(name, durablePrefix) {
			continue
		}
		consumer, err := stream.Consumer(ctx, name)
		if err != nil {
			return lag, fmt.Errorf("get consumer %s: %w", name, err)
		}
		info, err := consumer.Info(ctx)
		if err != nil {
			return lag, fmt.Errorf("consumer info %s: %w", name, err)
		}
		lag += info.NumPending
	}
	if err := lister.Err(); err != nil {
		return lag, fmt.Errorf("list consumers on %s: %w", streamName, err)
	}

	metrics.SetConsumerLag(durablePrefix, streamName, float64(lag))
	return lag, nil
}

// StreamInfo returns current stream state.
func (m *StreamManager) StreamInfo(ctx context.Context, streamName string) (*jetstream.StreamInfo, error) {
	stream, err := m.js.Stream(ctx, streamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", streamName, err)
	}
	return stream.Info(ctx)
}

// Close drains the underlying connection.
func (m *StreamManager) Close() error {
	if m.nc != nil && !m.nc.IsClosed() {
		return m.nc.Drain()
	}
	return nil
}

// LagTarget names one durable prefix to sample on one stream.
type LagTarget struct {
	Stream        string
	DurablePrefix string
}

// LagMonitor periodically samples durable consumer lag into the
// Prometheus gauge. Sampling errors are ignored: a target's durables may
// simply not exist yet, and the next tick retries.
type LagMonitor struct {
	manager  *StreamManager
	interval time.Duration
	targets  []LagTarget
}

// NewLagMonitor creates a monitor over the given targets.
func NewLagMonitor(manager *StreamManager, interval time.Duration, targets ...LagTarget) *LagMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &LagMonitor{manager: manager, interval: interval, targets: targets}
}

// Run samples until the context is canceled.
func (m *LagMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, t := range m.targets {
				m.manager.ConsumerLag(ctx, t.Stream, t.DurablePrefix) //nolint:errcheck
			}
		}
	}
}
