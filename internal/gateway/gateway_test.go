// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
)

// fakePublisher records published events and can inject failures.
type fakePublisher struct {
	mu     sync.Mutex
	events []*event.Event
	err    error
	delay  time.Duration
}

func (f *fakePublisher) PublishEvent(ctx context.Context, ev *event.Event) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
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

func TestSubmit(t *testing.T) {
	t.Run("explicit order", func(t *testing.T) {
		pub := &fakePublisher{}
		g := New(pub, Config{})

		items := []event.Item{{SKU: "taco", Qty: 3}}
		ev, err := g.Submit(context.Background(), "o-cafe0001", items)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if ev.EventType != event.TypeOrderPlaced {
			t.Errorf("EventType = %q, want %q", ev.EventType, event.TypeOrderPlaced)
		}
		if ev.OrderID != "o-cafe0001" {
			t.Errorf("OrderID = %q, want o-cafe0001", ev.OrderID)
		}
		if ev.EventID == "" {
			t.Error("EventID is empty")
		}
		if len(ev.Items) != 1 || ev.Items[0].SKU != "taco" {
			t.Errorf("Items = %v, want [taco x3]", ev.Items)
		}
		if got := pub.published(); len(got) != 1 {
			t.Fatalf("published %d events, want 1", len(got))
		}
	})

	t.Run("defaults applied", func(t *testing.T) {
		pub := &fakePublisher{}
		g := New(pub, Config{})

		ev, err := g.Submit(context.Background(), "", nil)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}

		if !strings.HasPrefix(ev.OrderID, "o-") {
			t.Errorf("OrderID = %q, want o- prefix", ev.OrderID)
		}
		if len(ev.Items) != 1 || ev.Items[0] != DefaultItem {
			t.Errorf("Items = %v, want [%v]", ev.Items, DefaultItem)
		}
		if ev.CreatedAt == "" {
			t.Error("CreatedAt is empty")
		}
	})

	t.Run("fresh event id per submission", func(t *testing.T) {
		pub := &fakePublisher{}
		g := New(pub, Config{})

		ev1, _ := g.Submit(context.Background(), "o-cafe0001", nil)
		ev2, _ := g.Submit(context.Background(), "o-cafe0001", nil)
		if ev1.EventID == ev2.EventID {
			t.Errorf("two submissions share event ID %q", ev1.EventID)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		g := New(pub, Config{})

		if _, err := g.Submit(context.Background(), "o-cafe0001", nil); err == nil {
			t.Fatal("Submit() error = nil, want publish error")
		}
		published, failed := g.Stats()
		if published != 0 || failed != 1 {
			t.Errorf("Stats() = (%d, %d), want (0, 1)", published, failed)
		}
	})
}

func TestBulkSubmit(t *testing.T) {
	t.Run("all produced", func(t *testing.T) {
		pub := &fakePublisher{}
		g := New(pub, Config{BulkWorkers: 4, BulkFlushTimeout: 5 * time.Second})

		result, err := g.BulkSubmit(context.Background(), 100)
		if err != nil {
			t.Fatalf("BulkSubmit() error = %v", err)
		}
		if result.Produced != 100 || result.Remaining != 0 {
			t.Errorf("result = %+v, want {100 0}", result)
		}
		if got := len(pub.published()); got != 100 {
			t.Errorf("published %d events, want 100", got)
		}
	})

	t.Run("load test order ids", func(t *testing.T) {
		pub := &fakePublisher{}
		g := New(pub, Config{BulkWorkers: 1, BulkFlushTimeout: 5 * time.Second})

		if _, err := g.BulkSubmit(context.Background(), 3); err != nil {
			t.Fatalf("BulkSubmit() error = %v", err)
		}

		seen := map[string]bool{}
		for _, ev := range pub.published() {
			seen[ev.OrderID] = true
		}
		for _, want := range []string{"load-000000", "load-000001", "load-000002"} {
			if !seen[want] {
				t.Errorf("missing order ID %q", want)
			}
		}
	})

	t.Run("deadline reports remainder", func(t *testing.T) {
		pub := &fakePublisher{delay: 50 * time.Millisecond}
		g := New(pub, Config{BulkWorkers: 1, BulkFlushTimeout: 120 * time.Millisecond})

		result, err := g.BulkSubmit(context.Background(), 50)
		if err != nil {
			t.Fatalf("BulkSubmit() error = %v", err)
		}
		if result.Produced >= 50 {
			t.Errorf("Produced = %d, want fewer than 50 under deadline", result.Produced)
		}
		if result.Produced+result.Remaining != 50 {
			t.Errorf("Produced+Remaining = %d, want 50", result.Produced+result.Remaining)
		}
	})

	t.Run("failures counted as remaining", func(t *testing.T) {
		pub := &fakePublisher{err: errors.New("broker down")}
		g := New(pub, Config{BulkWorkers: 2, BulkFlushTimeout: 2 * time.Second})

		result, err := g.BulkSubmit(context.Background(), 10)
		if err != nil {
			t.Fatalf("BulkSubmit() error = %v", err)
		}
		if result.Produced != 0 || result.Remaining != 10 {
			t.Errorf("result = %+v, want {0 10}", result)
		}
	})
}
