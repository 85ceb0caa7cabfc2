// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package api

import (
	"context"
	"net/http"
)

// ReadyCheck reports whether the service's dependencies are usable.
type ReadyCheck func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	ready ReadyCheck
}

// NewHealthHandler creates the handler. A nil check means always ready.
func NewHealthHandler(ready ReadyCheck) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// Live reports process liveness.
//
// Method: GET
// Path: /api/v1/health/live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// Ready reports whether the service can do useful work, which for every
// pipeline service means the broker connection is up.
//
// Method: GET
// Path: /api/v1/health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			rw.ServiceUnavailable(err.Error())
			return
		}
	}
	rw.Success(map[string]string{"status": "ready"})
}
