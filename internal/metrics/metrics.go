// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package metrics registers Prometheus instrumentation for the pipeline:
// publish/consume throughput, decode failures, dedup short-circuits,
// reservation outcomes, replay activity, and the HTTP facades.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Broker Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_published_total",
			Help: "Total number of events published to the log",
		},
		[]string{"stream"},
	)

	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_publish_errors_total",
			Help: "Total number of failed publish attempts",
		},
		[]string{"stream"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_consumed_total",
			Help: "Total number of events consumed from the log",
		},
		[]string{"consumer", "stream"},
	)

	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_decode_failures_total",
			Help: "Total number of payloads skipped because they could not be decoded",
		},
		[]string{"consumer"},
	)

	ConsumerLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipeline_consumer_lag_messages",
			Help: "Messages not yet delivered to a durable consumer",
		},
		[]string{"consumer", "stream"},
	)

	// Inventory Processor Metrics
	DuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_duplicates_skipped_total",
			Help: "Total number of redelivered orders short-circuited by the dedup set",
		},
	)

	ReservationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_reservation_outcomes_total",
			Help: "Total number of reservation outcomes by result",
		},
		[]string{"outcome"}, // "reserved", "failed"
	)

	// Analytics Aggregator Metrics
	ReplaysTriggered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_replays_triggered_total",
			Help: "Total number of accepted replay requests",
		},
	)

	ReplaysCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_replays_coalesced_total",
			Help: "Total number of replay requests coalesced into one already in flight",
		},
	)

	SnapshotFlushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_snapshot_flushes_total",
			Help: "Total number of metrics snapshots persisted to disk",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordPublish increments the publish counter for a stream.
func RecordPublish(stream string) {
	EventsPublished.WithLabelValues(stream).Inc()
}

// RecordPublishError increments the publish error counter for a stream.
func RecordPublishError(stream string) {
	PublishErrors.WithLabelValues(stream).Inc()
}

// RecordConsume increments the consume counter for a consumer/stream pair.
func RecordConsume(consumer, stream string) {
	EventsConsumed.WithLabelValues(consumer, stream).Inc()
}

// RecordDecodeFailure increments the decode failure counter for a consumer.
func RecordDecodeFailure(consumer string) {
	DecodeFailures.WithLabelValues(consumer).Inc()
}

// RecordDuplicateSkipped increments the dedup short-circuit counter.
func RecordDuplicateSkipped() {
	DuplicatesSkipped.Inc()
}

// RecordOutcome increments the reservation outcome counter.
func RecordOutcome(outcome string) {
	ReservationOutcomes.WithLabelValues(outcome).Inc()
}

// SetConsumerLag records the pending message count for a durable consumer.
func SetConsumerLag(consumer, stream string, pending float64) {
	ConsumerLag.WithLabelValues(consumer, stream).Set(pending)
}

// RecordAPIRequest records an API request with its duration.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
