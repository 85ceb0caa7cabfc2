// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewGatewayRouter builds the order ingestion facade.
func NewGatewayRouter(orders *OrderHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(RateLimit(RateLimitAPI))
		r.Get("/", health.Ready)
		r.Get("/live", health.Live)
		r.Get("/ready", health.Ready)
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(PrometheusMetrics())
		r.With(RateLimit(RateLimitWrite)).Post("/", orders.SubmitOrder)
		r.With(RateLimit(RateLimitBulk)).Post("/load-test", orders.LoadTest)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// NewAnalyticsRouter builds the metrics query and replay control facade.
func NewAnalyticsRouter(m *MetricsHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(RateLimit(RateLimitAPI))
		r.Get("/", health.Ready)
		r.Get("/live", health.Live)
		r.Get("/ready", health.Ready)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(PrometheusMetrics())
		r.With(RateLimit(RateLimitAPI)).Get("/metrics", m.Metrics)
		r.With(RateLimit(RateLimitAPI)).Get("/metrics/report", m.Report)
		r.With(RateLimit(RateLimitBulk)).Post("/replay", m.Replay)
	})

	// Prometheus scrape endpoint, distinct from the pipeline snapshot
	// at /api/v1/metrics.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
