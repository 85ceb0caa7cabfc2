// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package api

import (
	"net/http"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/analytics"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
)

// MetricsSource is the aggregator surface the metrics handlers need.
type MetricsSource interface {
	Snapshot() analytics.Snapshot
	Report() []analytics.BucketCount
	RequestReplay() (analytics.Snapshot, bool)
	ReplayInFlight() bool
}

// MetricsHandler serves the analytics query and replay control surface.
type MetricsHandler struct {
	source MetricsSource
}

// NewMetricsHandler creates the handler over an aggregator.
func NewMetricsHandler(source MetricsSource) *MetricsHandler {
	return &MetricsHandler{source: source}
}

// Metrics returns the current aggregate snapshot. This always answers
// from in-memory state, so it stays responsive even when the broker is
// momentarily unreachable.
//
// Method: GET
// Path: /api/v1/metrics
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.source.Snapshot())
}

// Report returns the per-minute order counts sorted by window.
//
// Method: GET
// Path: /api/v1/metrics/report
func (h *MetricsHandler) Report(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.source.Report())
}

// ReplayResponse acknowledges a replay request.
type ReplayResponse struct {
	// Status is "accepted" for a newly scheduled replay or "coalesced"
	// when a replay was already in flight.
	Status string `json:"status"`

	// MetricsBeforeReplay is the snapshot as of the request, for the
	// caller's reference. Completion is observed via later snapshots.
	MetricsBeforeReplay analytics.Snapshot `json:"metricsBeforeReplay"`
}

// Replay asks the aggregator to zero its state and re-read both logs
// from the beginning. The request is acknowledged immediately; the
// replay itself runs asynchronously in the consumption loop.
//
// Method: POST
// Path: /api/v1/replay
func (h *MetricsHandler) Replay(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	snap, accepted := h.source.RequestReplay()
	status := "accepted"
	if !accepted {
		status = "coalesced"
	}

	logging.Ctx(r.Context()).Info().Str("status", status).Msg("replay requested")

	rw.Accepted(ReplayResponse{
		Status:              status,
		MetricsBeforeReplay: snap,
	})
}
