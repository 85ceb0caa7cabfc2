// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package main is the analytics aggregator.
//
// It consumes both the orders and inventory logs into in-memory
// counters and serves them over HTTP, with per-minute order buckets
// keyed by event time. POST /api/v1/replay zeroes the counters, deletes
// the durable consumers, and re-reads both logs from the beginning; on
// an unchanged log the rebuilt counters converge to the pre-replay
// snapshot.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/analytics"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/api"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/broker"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/config"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging)

	logging.Info().
		Str("http_addr", cfg.Analytics.HTTPAddr).
		Str("durable", cfg.Analytics.DurableName).
		Str("snapshot_path", cfg.Analytics.SnapshotPath).
		Msg("Starting analytics aggregator")

	manager, err := broker.Connect(cfg.Broker.URL, cfg.Broker.MaxReconnects)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to broker")
	}
	defer manager.Close()

	ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 30*time.Second)
	err = manager.EnsureStreams(ensureCtx,
		broker.OrdersStreamConfig(cfg.Broker.RetentionAge),
		broker.InventoryStreamConfig(cfg.Broker.RetentionAge))
	cancelEnsure()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision streams")
	}

	wmLogger := logging.NewWatermillAdapter()

	agg := analytics.NewAggregator()
	factory := func() (analytics.MessageSubscriber, error) {
		return broker.NewDualSubscriber(cfg.Broker.URL, cfg.Analytics.DurableName, wmLogger)
	}
	writer := analytics.NewSnapshotWriter(cfg.Analytics.SnapshotPath)
	loop := analytics.NewLoop(agg, factory, manager, writer, analytics.LoopConfig{
		DurablePrefix: cfg.Analytics.DurableName,
		FlushInterval: cfg.Analytics.FlushInterval,
	})

	ready := func(ctx context.Context) error {
		_, err := manager.StreamInfo(ctx, broker.InventoryStream)
		return err
	}
	router := api.NewAnalyticsRouter(api.NewMetricsHandler(agg), api.NewHealthHandler(ready))

	httpServer := &http.Server{
		Addr:              cfg.Analytics.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree("analytics", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRunnerService("analytics-loop", loop))

	lagMonitor := broker.NewLagMonitor(manager, 15*time.Second,
		broker.LagTarget{Stream: broker.OrdersStream, DurablePrefix: cfg.Analytics.DurableName},
		broker.LagTarget{Stream: broker.InventoryStream, DurablePrefix: cfg.Analytics.DurableName})
	tree.AddPipelineService(supervisor.NewRunnerService("lag-monitor", lagMonitor))
	tree.AddAPIService(supervisor.NewHTTPServerService("analytics-http", httpServer, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Analytics.HTTPAddr).Msg("Analytics listening")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Analytics aggregator stopped")
}
