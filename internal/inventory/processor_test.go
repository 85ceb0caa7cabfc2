// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
}

func (f *fakePublisher) PublishEvent(ctx context.Context, ev *event.Event) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) published() []*event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*event.Event(nil), f.events...)
}

func orderMessage(t *testing.T, orderID string, items []event.Item) *message.Message {
	t.Helper()
	if items == nil {
		items = []event.Item{{SKU: "burrito", Qty: 1}}
	}
	ev := &event.Event{
		EventID:   watermill.NewUUID(),
		EventType: event.TypeOrderPlaced,
		OrderID:   orderID,
		Items:     items,
		CreatedAt: "2026-08-29T12:00:00Z",
	}
	payload, err := event.Encode(ev)
	if err != nil {
		t.Fatalf("encode order: %v", err)
	}
	return message.NewMessage(ev.EventID, payload)
}

func TestHandleReserves(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProcessor(pub, NewMemorySet(), Config{FailRate: 0, Seed: 1})

	msg := orderMessage(t, "o-1", []event.Item{{SKU: "burrito", Qty: 1}})
	if err := p.Handle(msg); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := pub.published()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if got[0].EventType != event.TypeInventoryReserved {
		t.Errorf("EventType = %q, want %q", got[0].EventType, event.TypeInventoryReserved)
	}
	if got[0].OrderID != "o-1" {
		t.Errorf("OrderID = %q, want o-1", got[0].OrderID)
	}
	if got[0].ReservedAt == "" {
		t.Error("ReservedAt is empty")
	}
}

func TestHandleFailsAtRateOne(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProcessor(pub, NewMemorySet(), Config{FailRate: 1, Seed: 1})

	if err := p.Handle(orderMessage(t, "o-1", nil)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := pub.published()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if got[0].EventType != event.TypeInventoryFailed {
		t.Errorf("EventType = %q, want %q", got[0].EventType, event.TypeInventoryFailed)
	}
	if got[0].Reason != event.ReasonOutOfStock {
		t.Errorf("Reason = %q, want %q", got[0].Reason, event.ReasonOutOfStock)
	}
}

func TestHandleQuantityThreshold(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProcessor(pub, NewMemorySet(), Config{FailRate: 0, MaxQty: 10, Seed: 1})

	if err := p.Handle(orderMessage(t, "o-big", []event.Item{{SKU: "burrito", Qty: 11}})); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := pub.published()
	if len(got) != 1 {
		t.Fatalf("published %d events, want 1", len(got))
	}
	if got[0].Reason != event.ReasonQuantityTooHigh {
		t.Errorf("Reason = %q, want %q", got[0].Reason, event.ReasonQuantityTooHigh)
	}
}

func TestHandleIdempotentOnRedelivery(t *testing.T) {
	pub := &fakePublisher{}
	p := NewProcessor(pub, NewMemorySet(), Config{FailRate: 0, Seed: 1})

	msg := orderMessage(t, "o-1", nil)
	for i := 0; i < 3; i++ {
		if err := p.Handle(message.NewMessage(msg.UUID, msg.Payload)); err != nil {
			t.Fatalf("Handle() redelivery %d error = %v", i, err)
		}
	}

	if got := len(pub.published()); got != 1 {
		t.Errorf("published %d outcomes for one order, want 1", got)
	}
}

func TestHandleSkipsPoisonInput(t *testing.T) {
	tests := []struct {
		name string
		msg  *message.Message
	}{
		{"malformed json", message.NewMessage("m1", []byte("{not json"))},
		{"missing order id", func() *message.Message {
			payload := []byte(`{"eventId":"e1","eventType":"OrderPlaced","items":[{"sku":"burrito","qty":1}],"createdAt":"2026-08-29T12:00:00Z"}`)
			return message.NewMessage("m2", payload)
		}()},
		{"foreign event type", func() *message.Message {
			payload := []byte(`{"eventId":"e2","eventType":"InventoryReserved","orderId":"o-1","reservedAt":"2026-08-29T12:00:00Z","createdAt":"2026-08-29T12:00:00Z"}`)
			return message.NewMessage("m3", payload)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			p := NewProcessor(pub, NewMemorySet(), Config{FailRate: 0, Seed: 1})

			// A nil return acks the message so poison input never wedges
			// the partition.
			if err := p.Handle(tt.msg); err != nil {
				t.Fatalf("Handle() error = %v, want nil (skip and ack)", err)
			}
			if got := len(pub.published()); got != 0 {
				t.Errorf("published %d events, want 0", got)
			}
		})
	}
}

func TestHandlePublishErrorRetriable(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	dedup := NewMemorySet()
	p := NewProcessor(pub, dedup, Config{FailRate: 0, Seed: 1})

	msg := orderMessage(t, "o-1", nil)
	if err := p.Handle(msg); err == nil {
		t.Fatal("Handle() error = nil, want publish error")
	}

	// The failed order must not be marked processed, so the redelivery
	// produces the outcome once the broker recovers.
	seen, err := dedup.Seen("o-1")
	if err != nil {
		t.Fatalf("Seen() error = %v", err)
	}
	if seen {
		t.Error("order marked processed despite failed publish")
	}

	pub.err = nil
	if err := p.Handle(message.NewMessage(msg.UUID, msg.Payload)); err != nil {
		t.Fatalf("Handle() after recovery error = %v", err)
	}
	if got := len(pub.published()); got != 1 {
		t.Errorf("published %d events after recovery, want 1", got)
	}
}

func TestDecideDeterministicWithSeed(t *testing.T) {
	outcomes := func() []string {
		pub := &fakePublisher{}
		p := NewProcessor(pub, NewMemorySet(), Config{FailRate: 0.5, Seed: 42})
		var got []string
		for i := 0; i < 20; i++ {
			order := &event.Event{OrderID: "o-x", Items: []event.Item{{SKU: "burrito", Qty: 1}}}
			got = append(got, p.decide(order).EventType)
		}
		return got
	}

	a, b := outcomes(), outcomes()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("outcome %d differs across identically seeded runs: %q vs %q", i, a[i], b[i])
		}
	}
}
