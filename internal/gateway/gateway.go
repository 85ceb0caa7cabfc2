// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package gateway accepts orders and appends OrderPlaced events to the
// orders log. It owns event identity: every submission gets a fresh event
// ID, and an order without an explicit ID gets a generated one.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/ids"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
)

// DefaultItem is the item attached to orders submitted without a cart.
var DefaultItem = event.Item{SKU: "burrito", Qty: 1}

// DefaultBulkCount is the order count used when a bulk submission does not
// specify one.
const DefaultBulkCount = 10000

// EventPublisher appends events to the durable log.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *event.Event) error
}

// Config holds gateway behavior settings.
type Config struct {
	// BulkWorkers is the number of concurrent publishers for bulk
	// submission.
	BulkWorkers int

	// BulkFlushTimeout bounds how long BulkSubmit waits before reporting
	// the unpublished remainder.
	BulkFlushTimeout time.Duration

	// BulkRate paces bulk publishing in events per second (0 = unpaced).
	BulkRate int
}

// Gateway builds OrderPlaced events and appends them to the orders log.
type Gateway struct {
	publisher EventPublisher
	config    Config

	now func() time.Time

	published atomic.Int64
	failed    atomic.Int64
}

// New creates a gateway over the given publisher.
func New(publisher EventPublisher, cfg Config) *Gateway {
	if cfg.BulkWorkers <= 0 {
		cfg.BulkWorkers = 16
	}
	if cfg.BulkFlushTimeout <= 0 {
		cfg.BulkFlushTimeout = 30 * time.Second
	}
	return &Gateway{
		publisher: publisher,
		config:    cfg,
		now:       time.Now,
	}
}

// Submit appends one OrderPlaced event. An empty orderID gets a generated
// o-<hex8> ID; empty items default to a single burrito. The returned event
// carries the IDs the caller needs to correlate downstream outcomes.
func (g *Gateway) Submit(ctx context.Context, orderID string, items []event.Item) (*event.Event, error) {
	if orderID == "" {
		orderID = ids.NewOrderID()
	}
	if len(items) == 0 {
		items = []event.Item{DefaultItem}
	}

	ev := &event.Event{
		EventID:   ids.NewEventID(),
		EventType: event.TypeOrderPlaced,
		OrderID:   orderID,
		Items:     items,
		CreatedAt: event.Timestamp(g.now()),
	}

	if err := g.publisher.PublishEvent(ctx, ev); err != nil {
		g.failed.Add(1)
		return nil, fmt.Errorf("publish order %s: %w", orderID, err)
	}

	g.published.Add(1)
	return ev, nil
}

// BulkResult reports the outcome of a bounded bulk submission.
type BulkResult struct {
	// Produced is how many events were durably published before the
	// flush deadline.
	Produced int `json:"produced"`

	// Remaining is how many of the requested events were not published,
	// either because the deadline passed or publishes failed.
	Remaining int `json:"remaining_in_queue"`
}

// BulkSubmit publishes count sequential load-test orders (order IDs
// load-000000 on up) through a worker pool and returns how many made it
// into the log before the flush deadline. The operation never blocks past
// BulkFlushTimeout: the remainder is reported, not retried.
func (g *Gateway) BulkSubmit(ctx context.Context, count int) (BulkResult, error) {
	if count <= 0 {
		count = DefaultBulkCount
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.BulkFlushTimeout)
	defer cancel()

	var limiter *rate.Limiter
	if g.config.BulkRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(g.config.BulkRate), g.config.BulkRate)
	}

	jobs := make(chan int)
	var produced atomic.Int64
	var wg sync.WaitGroup

	for w := 0; w < g.config.BulkWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}
				if _, err := g.Submit(ctx, ids.LoadTestOrderID(i), nil); err != nil {
					logging.Warn().Err(err).Int("index", i).Msg("bulk publish failed")
					continue
				}
				produced.Add(1)
			}
		}()
	}

feed:
	for i := 0; i < count; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	result := BulkResult{
		Produced:  int(produced.Load()),
		Remaining: count - int(produced.Load()),
	}

	logging.Info().
		Int("produced", result.Produced).
		Int("remaining", result.Remaining).
		Msg("bulk submission finished")

	return result, nil
}

// Stats reports delivery accounting since startup.
func (g *Gateway) Stats() (published, failed int64) {
	return g.published.Load(), g.failed.Load()
}
