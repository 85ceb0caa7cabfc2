// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package main is the order ingestion gateway.
//
// The gateway accepts orders over HTTP and appends them as events to the
// orders log. It optionally runs an embedded JetStream server so a single
// compose stack needs no external broker; the inventory and analytics
// services then connect to it.
//
// Startup order:
//
//  1. Configuration (koanf: defaults -> config.yaml -> environment)
//  2. Embedded broker, when BROKER_EMBEDDED=true
//  3. Stream provisioning (ORDERS and INVENTORY logs)
//  4. Publisher with circuit breaker
//  5. HTTP facade under the supervisor tree
//
// Shutdown on SIGINT/SIGTERM drains in-flight requests, closes the
// publisher, and stops the embedded broker last.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/api"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/broker"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/config"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/gateway"
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
		Str("http_addr", cfg.Gateway.HTTPAddr).
		Bool("embedded_broker", cfg.Broker.Embedded).
		Msg("Starting gateway")

	brokerURL := cfg.Broker.URL

	var embedded *broker.EmbeddedServer
	if cfg.Broker.Embedded {
		serverCfg := broker.DefaultServerConfig()
		if cfg.Broker.StoreDir != "" {
			serverCfg.StoreDir = cfg.Broker.StoreDir
		}
		embedded, err = broker.NewEmbeddedServer(&serverCfg)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to start embedded broker")
		}
		brokerURL = embedded.ClientURL()
		logging.Info().Str("url", brokerURL).Msg("Embedded broker ready")
	}

	manager, err := broker.Connect(brokerURL, cfg.Broker.MaxReconnects)
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
	logging.Info().Msg("Streams provisioned")

	wmLogger := logging.NewWatermillAdapter()

	publisher, err := broker.NewPublisher(broker.DefaultPublisherConfig(brokerURL), wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create publisher")
	}
	defer publisher.Close()
	publisher.SetCircuitBreaker(broker.NewCircuitBreaker(
		broker.DefaultCircuitBreakerConfig("orders-publisher")))

	gw := gateway.New(publisher, gateway.Config{
		BulkWorkers:      cfg.Gateway.BulkWorkers,
		BulkFlushTimeout: cfg.Gateway.BulkFlushTimeout,
		BulkRate:         cfg.Gateway.BulkRate,
	})

	ready := func(ctx context.Context) error {
		_, err := manager.StreamInfo(ctx, broker.OrdersStream)
		return err
	}
	router := api.NewGatewayRouter(api.NewOrderHandler(gw), api.NewHealthHandler(ready))

	httpServer := &http.Server{
		Addr:              cfg.Gateway.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.NewTree("gateway", logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if embedded != nil {
		tree.AddBrokerService(supervisor.NewBrokerServerService(embedded, 10*time.Second))
	}
	tree.AddAPIService(supervisor.NewHTTPServerService("gateway-http", httpServer, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", cfg.Gateway.HTTPAddr).Msg("Gateway listening")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("Supervisor tree failed")
	}
	logging.Info().Msg("Gateway stopped")
}
