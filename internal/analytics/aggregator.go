// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package analytics consumes both pipeline logs and maintains live
// windowed counters: order totals, reservation outcomes, and per-minute
// order counts keyed by event time. The state is rebuildable: a replay
// zeroes it and re-reads the logs from the beginning, converging on the
// same values because aggregation is deterministic in log contents.
package analytics

import (
	"sort"
	"sync"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/metrics"
)

// ConsumerName identifies the aggregator in metrics.
const ConsumerName = "analytics"

// Snapshot is a point-in-time copy of the aggregate state.
type Snapshot struct {
	TotalOrders        int64            `json:"totalOrders"`
	TotalReservations  int64            `json:"totalReservations"`
	FailedReservations int64            `json:"failedReservations"`
	FailureRate        float64          `json:"failureRate"`
	OrdersPerMinute    map[string]int64 `json:"ordersPerMinute"`
}

// BucketCount is one per-minute window in a sorted report.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// Aggregator holds the windowed counters and coordinates replay. All
// counter access goes through one mutex; the message loop is the only
// writer, HTTP handlers are readers.
type Aggregator struct {
	mu                 sync.Mutex
	totalOrders        int64
	totalReservations  int64
	failedReservations int64
	ordersPerMinute    map[string]int64

	replayMu       sync.Mutex
	replayInFlight bool
	replayCh       chan struct{}
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		ordersPerMinute: make(map[string]int64),
		replayCh:        make(chan struct{}, 1),
	}
}

// Process folds one event into the counters. Events with an unparseable
// createdAt land in the "unknown" bucket rather than being dropped, so
// totals and bucket sums stay consistent.
func (a *Aggregator) Process(ev *event.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.EventType {
	case event.TypeOrderPlaced:
		a.totalOrders++
		a.ordersPerMinute[event.MinuteBucket(ev.CreatedAt)]++
	case event.TypeInventoryReserved:
		a.totalReservations++
	case event.TypeInventoryFailed:
		// A failed reservation is still a reservation attempt, so with a
		// failure probability of one the two totals stay equal.
		a.totalReservations++
		a.failedReservations++
	}
}

// Snapshot returns a copy of the current state. The failure rate is zero
// when no outcomes have arrived yet.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	perMinute := make(map[string]int64, len(a.ordersPerMinute))
	for bucket, count := range a.ordersPerMinute {
		perMinute[bucket] = count
	}

	var failureRate float64
	if a.totalReservations > 0 {
		failureRate = float64(a.failedReservations) / float64(a.totalReservations)
	}

	return Snapshot{
		TotalOrders:        a.totalOrders,
		TotalReservations:  a.totalReservations,
		FailedReservations: a.failedReservations,
		FailureRate:        failureRate,
		OrdersPerMinute:    perMinute,
	}
}

// Report returns the per-minute windows sorted by bucket. The "unknown"
// bucket sorts after all timestamped buckets.
func (a *Aggregator) Report() []BucketCount {
	snap := a.Snapshot()

	report := make([]BucketCount, 0, len(snap.OrdersPerMinute))
	for bucket, count := range snap.OrdersPerMinute {
		report = append(report, BucketCount{Bucket: bucket, Count: count})
	}
	sort.Slice(report, func(i, j int) bool {
		bi, bj := report[i].Bucket, report[j].Bucket
		if (bi == event.UnknownBucket) != (bj == event.UnknownBucket) {
			return bj == event.UnknownBucket
		}
		return bi < bj
	})
	return report
}

// Reset zeroes every counter. Called by the loop when a replay begins.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalOrders = 0
	a.totalReservations = 0
	a.failedReservations = 0
	a.ordersPerMinute = make(map[string]int64)
}

// RequestReplay asks the loop to zero the state and re-read both logs
// from the beginning. The returned snapshot is the state as of the
// request, taken before anything is reset. A request arriving while a
// replay is in flight is coalesced into it: accepted is false and no
// second replay is scheduled.
func (a *Aggregator) RequestReplay() (snap Snapshot, accepted bool) {
	a.replayMu.Lock()
	defer a.replayMu.Unlock()

	snap = a.Snapshot()
	if a.replayInFlight {
		metrics.ReplaysCoalesced.Inc()
		return snap, false
	}

	a.replayInFlight = true
	metrics.ReplaysTriggered.Inc()
	select {
	case a.replayCh <- struct{}{}:
	default:
	}
	return snap, true
}

// ReplayPending exposes the replay signal to the loop.
func (a *Aggregator) ReplayPending() <-chan struct{} {
	return a.replayCh
}

// ReplayInFlight reports whether a replay is currently being performed.
func (a *Aggregator) ReplayInFlight() bool {
	a.replayMu.Lock()
	defer a.replayMu.Unlock()
	return a.replayInFlight
}

// replayRetry re-arms the replay signal without clearing the in-flight
// flag. A loop restarted after a failed reset picks the request back up
// instead of dropping it.
func (a *Aggregator) replayRetry() {
	select {
	case a.replayCh <- struct{}{}:
	default:
	}
}

// replayDone clears the in-flight flag once the loop has resubscribed.
func (a *Aggregator) replayDone() {
	a.replayMu.Lock()
	defer a.replayMu.Unlock()
	a.replayInFlight = false
}
