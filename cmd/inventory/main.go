// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package main is the inventory processor.
//
// It consumes the orders log through a durable consumer, decides a
// reservation outcome per order exactly once, and appends the outcome to
// the inventory log before acking the input. The processed-order set
// lives in memory by default or in Badger when INVENTORY_DURABLE_DEDUP
// is set, so a crash between outcome and ack cannot produce a second
// outcome for the same order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/broker"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/config"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/inventory"
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
		Float64("fail_rate", cfg.Inventory.FailRate).
		Dur("throttle", cfg.Inventory.Throttle).
		Str("durable", cfg.Inventory.DurableName).
		Bool("durable_dedup", cfg.Inventory.DurableDedup).
		Msg("Starting inventory processor")

	manager, err := broker.Connect(cfg.Broker.URL, cfg.Broker.MaxReconnects)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to broker")
	}
	defer manager.Close()

	// Idempotent against the gateway having provisioned already.
	ensureCtx, cancelEnsure := context.WithTimeout(context.Background(), 30*time.Second)
	err = manager.EnsureStreams(ensureCtx,
		broker.OrdersStreamConfig(cfg.Broker.RetentionAge),
		broker.InventoryStreamConfig(cfg.Broker.RetentionAge))
	cancelEnsure()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to provision streams")
	}

	var dedup inventory.DedupSet
	if cfg.Inventory.DurableDedup {
		dedup, err = inventory.NewBadgerSet(cfg.Inventory.DedupPath)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Inventory.DedupPath).
				Msg("Failed to open dedup store")
		}
	} else {
		dedup = inventory.NewMemorySet()
	}
	defer dedup.Close()

	wmLogger := logging.NewWatermillAdapter()

	publisher, err := broker.NewPublisher(broker.DefaultPublisherConfig(cfg.Broker.URL), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	defer publisher.Close()
	publisher.SetCircuitBreaker(broker.NewCircuitBreaker(
		broker.DefaultCircuitBreakerConfig("inventory-publisher")))

	subscriberCfg := broker.DefaultSubscriberConfig(
		cfg.Broker.URL, cfg.Inventory.DurableName, broker.OrdersStream)
	subscriber, err := broker.NewSubscriber(&subscriberCfg, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create subscriber")
	}
	defer subscriber.Close()

	processor := inventory.NewProcessor(publisher, dedup, inventory.Config{
		FailRate: cfg.Inventory.FailRate,
		MaxQty:   cfg.Inventory.MaxQty,
		Throttle: cfg.Inventory.Throttle,
	})

	routerCfg := broker.DefaultRouterConfig()
	router, err := broker.NewRouter(&routerCfg, nil, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create router")
	}
	router.AddConsumerHandler(
		"inventory-processor",
		event.TopicOrdersAll,
		subscriber.WatermillSubscriber(),
		processor.Handle,
	)

	tree := supervisor.NewTree("inventory", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(supervisor.NewRunnerService("inventory-router", router))

	lagMonitor := broker.NewLagMonitor(manager, 15*time.Second,
		broker.LagTarget{Stream: broker.OrdersStream, DurablePrefix: cfg.Inventory.DurableName})
	tree.AddPipelineService(supervisor.NewRunnerService("lag-monitor", lagMonitor))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Msg("Inventory processor consuming")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Inventory processor stopped")
}
