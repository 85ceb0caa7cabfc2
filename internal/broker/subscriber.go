// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
)

// Subscriber wraps a Watermill NATS subscriber bound to one stream. The
// durable consumer records the acked position, so a restarted service
// resumes where it left off; a brand-new durable with DeliverAll reads the
// whole log from the beginning.
type Subscriber struct {
	subscriber message.Subscriber
	config     SubscriberConfig
	logger     watermill.LoggerAdapter
}

// NewSubscriber creates a durable JetStream subscriber.
func NewSubscriber(cfg *SubscriberConfig, logger watermill.LoggerAdapter) (*Subscriber, error) {
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("Subscriber disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("Subscriber reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(cfg.MaxAckPending),
		natsgo.AckWait(cfg.AckWaitTimeout),
	}
	if cfg.DeliverAll {
		subOpts = append(subOpts, natsgo.DeliverAll())
	} else {
		subOpts = append(subOpts, natsgo.DeliverNew())
	}

	// The consumed topics are wildcards (orders.>, inventory.>), and NATS
	// stream names cannot contain wildcards, so the subscriber must bind
	// to the pre-created stream instead of auto-provisioning.
	autoProvision := true
	if cfg.StreamName != "" {
		subOpts = append(subOpts, natsgo.BindStream(cfg.StreamName))
		autoProvision = false
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    autoProvision,
			AckAsync:         false, // synchronous acks commit the offset
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Subscriber{
		subscriber: sub,
		config:     *cfg,
		logger:     logger,
	}, nil
}

// Subscribe returns a channel of messages for the given topic. The channel
// closes when the context is canceled or the subscriber is closed.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return s.subscriber.Subscribe(ctx, topic)
}

// Close gracefully shuts down the subscriber.
func (s *Subscriber) Close() error {
	return s.subscriber.Close()
}

// WatermillSubscriber returns the underlying Watermill subscriber for
// wiring into a router.
func (s *Subscriber) WatermillSubscriber() message.Subscriber {
	return s.subscriber
}

// DualSubscriber presents one subscriber per stream as a single
// subscriber, routing Subscribe calls by subject prefix. A stream-bound
// subscriber cannot serve topics on the other stream, and the analytics
// consumer reads both logs.
type DualSubscriber struct {
	orders    *Subscriber
	inventory *Subscriber
}

// NewDualSubscriber creates durable subscribers for the orders and
// inventory streams under a shared durable prefix, so one consumer reset
// by that prefix forgets the position on both.
func NewDualSubscriber(url, durablePrefix string, logger watermill.LoggerAdapter) (*DualSubscriber, error) {
	ordersCfg := DefaultSubscriberConfig(url, durablePrefix+"-orders", OrdersStream)
	orders, err := NewSubscriber(&ordersCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("orders subscriber: %w", err)
	}

	inventoryCfg := DefaultSubscriberConfig(url, durablePrefix+"-inventory", InventoryStream)
	inventory, err := NewSubscriber(&inventoryCfg, logger)
	if err != nil {
		orders.Close()
		return nil, fmt.Errorf("inventory subscriber: %w", err)
	}

	return &DualSubscriber{orders: orders, inventory: inventory}, nil
}

// Subscribe routes the topic to the subscriber bound to its stream.
func (d *DualSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if strings.HasPrefix(topic, event.OrdersSubjectPrefix) {
		return d.orders.Subscribe(ctx, topic)
	}
	return d.inventory.Subscribe(ctx, topic)
}

// Close shuts down both underlying subscribers.
func (d *DualSubscriber) Close() error {
	ordersErr := d.orders.Close()
	inventoryErr := d.inventory.Close()
	if ordersErr != nil {
		return ordersErr
	}
	return inventoryErr
}
