// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type fakeHTTPServer struct {
	listenErr   error
	shutdownErr error
	started     chan struct{}
	release     chan struct{}
	shutdowns   atomic.Int32
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	close(f.started)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.release
	return errors.New("http: Server closed")
}

func (f *fakeHTTPServer) Shutdown(ctx context.Context) error {
	f.shutdowns.Add(1)
	close(f.release)
	return f.shutdownErr
}

func TestHTTPServerService(t *testing.T) {
	t.Run("graceful shutdown", func(t *testing.T) {
		server := newFakeHTTPServer()
		svc := NewHTTPServerService("gateway-http", server, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		<-server.started
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancel")
		}
		if got := server.shutdowns.Load(); got != 1 {
			t.Errorf("shutdowns = %d, want 1", got)
		}
	})

	t.Run("listen failure surfaces", func(t *testing.T) {
		server := newFakeHTTPServer()
		server.listenErr = errors.New("address in use")
		svc := NewHTTPServerService("gateway-http", server, time.Second)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, server.listenErr) {
			t.Errorf("Serve() = %v, want wrapped listen error", err)
		}
	})
}

type fakeRunner struct {
	runErr error
	runs   atomic.Int32
}

func (f *fakeRunner) Run(ctx context.Context) error {
	f.runs.Add(1)
	if f.runErr != nil {
		return f.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunnerService(t *testing.T) {
	t.Run("cancel returns context error", func(t *testing.T) {
		runner := &fakeRunner{}
		svc := NewRunnerService("inventory-router", runner)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()

		cancel()
		err := <-done
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	})

	t.Run("runner failure wrapped with name", func(t *testing.T) {
		runner := &fakeRunner{runErr: errors.New("subscribe failed")}
		svc := NewRunnerService("inventory-router", runner)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, runner.runErr) {
			t.Errorf("Serve() = %v, want wrapped run error", err)
		}
	})
}

func TestTreeServesAndStops(t *testing.T) {
	tree := NewTree("test-service", slog.Default(), DefaultTreeConfig())

	runner := &fakeRunner{}
	tree.AddPipelineService(NewRunnerService("loop", runner))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	// Give the tree a moment to start the service.
	deadline := time.After(2 * time.Second)
	for runner.runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("service never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not stop after cancel")
	}
}
