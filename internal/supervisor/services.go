// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches *http.Server's lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService adapts http.Server's blocking ListenAndServe to
// suture's context-aware Serve.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
	name            string
}

// NewHTTPServerService wraps an HTTP server as a supervised service.
func NewHTTPServerService(name string, server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		name:            name,
	}
}

// Serve implements suture.Service. http.ErrServerClosed is converted to
// nil since it is the expected result of a graceful shutdown.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		// The original context is already canceled, so shutdown gets
		// its own deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return h.name
}

// Runner is a blocking run loop that exits when its context is
// canceled. Both the watermill router and the analytics consumption
// loop satisfy it.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService wraps a Runner as a supervised service. If the runner
// returns an error while the context is still live, suture restarts it
// under the configured backoff.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps a run loop as a supervised service.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (r *RunnerService) Serve(ctx context.Context) error {
	if err := r.runner.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}
	return ctx.Err()
}

func (r *RunnerService) String() string {
	return r.name
}

// BrokerServer matches the embedded JetStream server's lifecycle.
type BrokerServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// BrokerServerService supervises an already-started embedded broker.
// The server starts during wiring, before any publisher or subscriber
// connects, so this service only monitors it and shuts it down when
// the tree stops.
type BrokerServerService struct {
	server          BrokerServer
	shutdownTimeout time.Duration
}

// NewBrokerServerService wraps an embedded broker as a supervised
// service.
func NewBrokerServerService(server BrokerServer, shutdownTimeout time.Duration) *BrokerServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &BrokerServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. An embedded server that stops on its
// own is a failure worth restarting the layer for.
func (b *BrokerServerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), b.shutdownTimeout)
			defer cancel()
			if err := b.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("broker shutdown failed: %w", err)
			}
			return ctx.Err()

		case <-ticker.C:
			if !b.server.IsRunning() {
				return errors.New("embedded broker stopped unexpectedly")
			}
		}
	}
}

func (b *BrokerServerService) String() string {
	return "embedded-broker"
}
