// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package inventory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/broker"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/ids"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/metrics"
)

// ConsumerName identifies this processor in metrics.
const ConsumerName = "inventory"

// EventPublisher appends outcome events to the inventory log.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *event.Event) error
}

// Config holds processor behavior settings.
type Config struct {
	// FailRate is the probability p in [0,1] of an OUT_OF_STOCK outcome.
	FailRate float64

	// MaxQty fails orders carrying an item with qty above this threshold
	// with QUANTITY_TOO_HIGH. Zero disables the check.
	MaxQty int

	// Throttle is a fixed per-message delay, used to demonstrate lag.
	Throttle time.Duration

	// Seed seeds the outcome draw. Zero uses the current time. Tests pin
	// it to make outcome sequences reproducible.
	Seed int64
}

// Processor turns each distinct OrderPlaced into exactly one reservation
// outcome. The handler acks by returning nil, and the ack is what commits
// the consumer offset, so the outcome publish always precedes the commit.
// A crash between publish and commit causes redelivery, which the
// processed-order set absorbs.
type Processor struct {
	publisher EventPublisher
	dedup     DedupSet
	config    Config

	mu  sync.Mutex
	rng *rand.Rand

	now func() time.Time
}

// NewProcessor creates a processor over the given publisher and
// processed-order set.
func NewProcessor(publisher EventPublisher, dedup DedupSet, cfg Config) *Processor {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Processor{
		publisher: publisher,
		dedup:     dedup,
		config:    cfg,
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
	}
}

// Handle processes one message from the orders log. It is registered as a
// router consumer handler: a nil return acks the message.
//
// Poison input never blocks the partition. Malformed payloads, events
// without an order ID, and foreign event types are logged and acked, not
// retried. Duplicates are acked without a second outcome. Only a failed
// outcome publish returns an error, which nacks for redelivery.
func (p *Processor) Handle(msg *message.Message) error {
	ctx := msg.Context()

	ev, err := event.Decode(msg.Payload)
	if err != nil {
		var decodeErr *event.DecodeError
		if errors.As(err, &decodeErr) {
			metrics.RecordDecodeFailure(ConsumerName)
			logging.Warn().Err(err).Str("messageUuid", msg.UUID).Msg("skipping malformed payload")
			return nil
		}
		return err
	}

	if ev.EventType != event.TypeOrderPlaced {
		logging.Debug().Str("eventType", ev.EventType).Msg("ignoring foreign event type")
		return nil
	}
	if ev.OrderID == "" {
		metrics.RecordDecodeFailure(ConsumerName)
		logging.Warn().Str("eventId", ev.EventID).Msg("skipping event without order id")
		return nil
	}

	metrics.RecordConsume(ConsumerName, broker.OrdersStream)

	seen, err := p.dedup.Seen(ev.OrderID)
	if err != nil {
		return fmt.Errorf("dedup check %s: %w", ev.OrderID, err)
	}
	if seen {
		metrics.RecordDuplicateSkipped()
		logging.Info().Str("orderId", ev.OrderID).Msg("duplicate delivery skipped")
		return nil
	}

	if p.config.Throttle > 0 {
		select {
		case <-time.After(p.config.Throttle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	outcome := p.decide(ev)

	if err := p.dedup.Mark(ev.OrderID); err != nil {
		return fmt.Errorf("dedup mark %s: %w", ev.OrderID, err)
	}
	if err := p.publisher.PublishEvent(ctx, outcome); err != nil {
		// The order is not processed until its outcome is durable. Undo
		// the mark so the redelivery decides and publishes again.
		if unmarkErr := p.dedup.Unmark(ev.OrderID); unmarkErr != nil {
			logging.Error().Err(unmarkErr).Str("orderId", ev.OrderID).Msg("failed to unmark after publish error")
		}
		return fmt.Errorf("publish outcome for %s: %w", ev.OrderID, err)
	}

	outcomeLabel := "reserved"
	if outcome.EventType == event.TypeInventoryFailed {
		outcomeLabel = "failed"
	}
	metrics.RecordOutcome(outcomeLabel)
	logging.Info().
		Str("orderId", ev.OrderID).
		Str("outcome", outcome.EventType).
		Msg("order processed")

	return nil
}

// decide produces the single outcome event for an order. The decision is
// total and has no side effects.
func (p *Processor) decide(order *event.Event) *event.Event {
	now := event.Timestamp(p.now())

	if p.config.MaxQty > 0 {
		for _, item := range order.Items {
			if item.Qty > p.config.MaxQty {
				return &event.Event{
					EventID:   ids.NewEventID(),
					EventType: event.TypeInventoryFailed,
					OrderID:   order.OrderID,
					Reason:    event.ReasonQuantityTooHigh,
					CreatedAt: now,
				}
			}
		}
	}

	p.mu.Lock()
	draw := p.rng.Float64()
	p.mu.Unlock()

	if draw < p.config.FailRate {
		return &event.Event{
			EventID:   ids.NewEventID(),
			EventType: event.TypeInventoryFailed,
			OrderID:   order.OrderID,
			Reason:    event.ReasonOutOfStock,
			CreatedAt: now,
		}
	}

	return &event.Event{
		EventID:    ids.NewEventID(),
		EventType:  event.TypeInventoryReserved,
		OrderID:    order.OrderID,
		ReservedAt: now,
		CreatedAt:  now,
	}
}
