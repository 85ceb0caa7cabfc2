// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/broker"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/metrics"
)

// MessageSubscriber is the subset of a Watermill subscriber the loop
// needs. Satisfied by broker.Subscriber and by the in-memory Pub/Sub.
type MessageSubscriber interface {
	Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error)
	Close() error
}

// SubscriberFactory builds a fresh subscriber. The loop calls it at
// startup and again after each replay, because a replay discards the
// durable consumers the old subscriber was bound to.
type SubscriberFactory func() (MessageSubscriber, error)

// ConsumerResetter forgets committed consumer positions on a stream.
// Satisfied by broker.StreamManager. Nil disables the administrative
// reset, which in-memory tests rely on.
type ConsumerResetter interface {
	ResetConsumers(ctx context.Context, streamName, durablePrefix string) (int, error)
}

// LoopConfig holds consumption loop settings.
type LoopConfig struct {
	// DurablePrefix is the durable consumer prefix replays reset.
	DurablePrefix string

	// FlushInterval is how often a snapshot is persisted.
	FlushInterval time.Duration
}

// Loop consumes both logs into the aggregator and services replay
// requests at message boundaries, so a replay never interrupts the
// processing of an individual event.
type Loop struct {
	agg      *Aggregator
	factory  SubscriberFactory
	resetter ConsumerResetter
	writer   *SnapshotWriter
	config   LoopConfig
}

// NewLoop wires a consumption loop.
func NewLoop(agg *Aggregator, factory SubscriberFactory, resetter ConsumerResetter, writer *SnapshotWriter, cfg LoopConfig) *Loop {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	return &Loop{
		agg:      agg,
		factory:  factory,
		resetter: resetter,
		writer:   writer,
		config:   cfg,
	}
}

// Run consumes until the context is canceled. A final snapshot is flushed
// on the way out.
func (l *Loop) Run(ctx context.Context) error {
	sub, ordersCh, inventoryCh, err := l.subscribe(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if sub != nil {
			sub.Close()
		}
	}()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.flush()
			return ctx.Err()

		case <-l.agg.ReplayPending():
			sub, ordersCh, inventoryCh, err = l.replay(ctx, sub)
			if err != nil {
				return err
			}

		case msg, ok := <-ordersCh:
			if !ok {
				ordersCh = nil
				if inventoryCh == nil {
					return errors.New("subscriber channels closed")
				}
				continue
			}
			l.handle(msg, broker.OrdersStream)

		case msg, ok := <-inventoryCh:
			if !ok {
				inventoryCh = nil
				if ordersCh == nil {
					return errors.New("subscriber channels closed")
				}
				continue
			}
			l.handle(msg, broker.InventoryStream)

		case <-ticker.C:
			l.flush()
		}
	}
}

// handle folds one message into the counters and acks it. Poison payloads
// are acked without counting, so they cannot wedge consumption.
func (l *Loop) handle(msg *message.Message, stream string) {
	ev, err := event.Decode(msg.Payload)
	if err != nil {
		metrics.RecordDecodeFailure(ConsumerName)
		logging.Warn().Err(err).Str("messageUuid", msg.UUID).Msg("skipping malformed payload")
		msg.Ack()
		return
	}

	l.agg.Process(ev)
	metrics.RecordConsume(ConsumerName, stream)
	msg.Ack()
}

// replay discards the current subscriber and its durable consumers,
// zeroes the counters, and resubscribes from the beginning of both logs.
func (l *Loop) replay(ctx context.Context, old MessageSubscriber) (MessageSubscriber, <-chan *message.Message, <-chan *message.Message, error) {
	logging.Info().Msg("replay starting")

	if old != nil {
		if err := old.Close(); err != nil {
			logging.Warn().Err(err).Msg("closing subscriber for replay")
		}
	}

	if l.resetter != nil {
		for _, stream := range []string{broker.OrdersStream, broker.InventoryStream} {
			deleted, err := l.resetter.ResetConsumers(ctx, stream, l.config.DurablePrefix)
			if err != nil {
				// Counters are still intact. Re-arm the request so the
				// restarted loop retries the replay instead of dropping it.
				l.agg.replayRetry()
				return nil, nil, nil, fmt.Errorf("reset consumers on %s: %w", stream, err)
			}
			logging.Info().Str("stream", stream).Int("deleted", deleted).Msg("consumer positions reset")
		}
	}

	// Zero only after every position reset succeeded. A failed reset must
	// never leave zeroed counters paired with the old committed offsets,
	// where nothing would ever be recounted.
	l.agg.Reset()

	sub, ordersCh, inventoryCh, err := l.subscribe(ctx)
	if err != nil {
		l.agg.replayRetry()
		return nil, nil, nil, err
	}
	l.agg.replayDone()

	logging.Info().Msg("replay resubscribed from beginning of logs")
	return sub, ordersCh, inventoryCh, nil
}

func (l *Loop) subscribe(ctx context.Context) (MessageSubscriber, <-chan *message.Message, <-chan *message.Message, error) {
	sub, err := l.factory()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create subscriber: %w", err)
	}

	ordersCh, err := sub.Subscribe(ctx, event.TopicOrdersAll)
	if err != nil {
		sub.Close()
		return nil, nil, nil, fmt.Errorf("subscribe to orders: %w", err)
	}
	inventoryCh, err := sub.Subscribe(ctx, event.TopicInventoryAll)
	if err != nil {
		sub.Close()
		return nil, nil, nil, fmt.Errorf("subscribe to inventory: %w", err)
	}

	return sub, ordersCh, inventoryCh, nil
}

func (l *Loop) flush() {
	if l.writer == nil {
		return
	}
	if err := l.writer.Write(l.agg.Snapshot()); err != nil {
		logging.Error().Err(err).Msg("snapshot flush failed")
	}
}
