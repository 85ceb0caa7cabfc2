// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/analytics"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/gateway"
)

type fakeSubmitter struct {
	submitErr error
	lastOrder string
	lastItems []event.Item
	bulkCount int
}

func (f *fakeSubmitter) Submit(ctx context.Context, orderID string, items []event.Item) (*event.Event, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.lastOrder = orderID
	f.lastItems = items
	if orderID == "" {
		orderID = "o-generated"
	}
	return &event.Event{
		EventID:   "e-1",
		EventType: event.TypeOrderPlaced,
		OrderID:   orderID,
		Items:     items,
		CreatedAt: "2026-08-29T12:00:00Z",
	}, nil
}

func (f *fakeSubmitter) BulkSubmit(ctx context.Context, count int) (gateway.BulkResult, error) {
	f.bulkCount = count
	return gateway.BulkResult{Produced: 9990, Remaining: 10}, nil
}

type fakeMetricsSource struct {
	snap      analytics.Snapshot
	accepted  bool
	replayed  int
	coalesced int
}

func (f *fakeMetricsSource) Snapshot() analytics.Snapshot { return f.snap }

func (f *fakeMetricsSource) Report() []analytics.BucketCount {
	return []analytics.BucketCount{{Bucket: "2026-08-29T12:00", Count: 2}}
}

func (f *fakeMetricsSource) RequestReplay() (analytics.Snapshot, bool) {
	if f.accepted {
		f.replayed++
		return f.snap, true
	}
	f.coalesced++
	return f.snap, false
}

func (f *fakeMetricsSource) ReplayInFlight() bool { return !f.accepted }

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return resp
}

func TestSubmitOrderEndpoint(t *testing.T) {
	t.Run("valid order", func(t *testing.T) {
		gw := &fakeSubmitter{}
		router := NewGatewayRouter(NewOrderHandler(gw), NewHealthHandler(nil))

		body := bytes.NewBufferString(`{"orderId":"o-1","items":[{"sku":"burrito","qty":2}]}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
		}
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Error("Success = false")
		}
		if gw.lastOrder != "o-1" {
			t.Errorf("submitted order = %q, want o-1", gw.lastOrder)
		}
		if len(gw.lastItems) != 1 || gw.lastItems[0].Qty != 2 {
			t.Errorf("submitted items = %v", gw.lastItems)
		}
	})

	t.Run("empty body uses defaults", func(t *testing.T) {
		gw := &fakeSubmitter{}
		router := NewGatewayRouter(NewOrderHandler(gw), NewHealthHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
		}
	})

	t.Run("invalid item rejected", func(t *testing.T) {
		gw := &fakeSubmitter{}
		router := NewGatewayRouter(NewOrderHandler(gw), NewHealthHandler(nil))

		body := bytes.NewBufferString(`{"items":[{"sku":"burrito","qty":-1}]}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", body)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if resp.Error == nil || resp.Error.Code != ErrCodeValidationFailed {
			t.Errorf("error = %+v, want %s", resp.Error, ErrCodeValidationFailed)
		}
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		gw := &fakeSubmitter{}
		router := NewGatewayRouter(NewOrderHandler(gw), NewHealthHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("publish failure maps to 502", func(t *testing.T) {
		gw := &fakeSubmitter{submitErr: errors.New("broker down")}
		router := NewGatewayRouter(NewOrderHandler(gw), NewHealthHandler(nil))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/", bytes.NewBufferString(`{"orderId":"o-1"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})
}

func TestLoadTestEndpoint(t *testing.T) {
	gw := &fakeSubmitter{}
	router := NewGatewayRouter(NewOrderHandler(gw), NewHealthHandler(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/load-test", bytes.NewBufferString(`{"count":10000}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	if gw.bulkCount != 10000 {
		t.Errorf("bulk count = %d, want 10000", gw.bulkCount)
	}

	resp := decodeResponse(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("data = %T, want object", resp.Data)
	}
	if data["produced"].(float64) != 9990 || data["remaining_in_queue"].(float64) != 10 {
		t.Errorf("data = %v, want produced 9990 remaining_in_queue 10", data)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	source := &fakeMetricsSource{
		snap: analytics.Snapshot{
			TotalOrders:        10,
			TotalReservations:  8,
			FailedReservations: 2,
			FailureRate:        0.25,
			OrdersPerMinute:    map[string]int64{"2026-08-29T12:00": 10},
		},
		accepted: true,
	}
	router := NewAnalyticsRouter(NewMetricsHandler(source), NewHealthHandler(nil))

	t.Run("snapshot", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]interface{})
		if data["totalOrders"].(float64) != 10 {
			t.Errorf("totalOrders = %v, want 10", data["totalOrders"])
		}
		if data["failureRate"].(float64) != 0.25 {
			t.Errorf("failureRate = %v, want 0.25", data["failureRate"])
		}
	})

	t.Run("report", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/report", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("replay accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/replay", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		resp := decodeResponse(t, rec)
		data := resp.Data.(map[string]interface{})
		if data["status"] != "accepted" {
			t.Errorf("status = %v, want accepted", data["status"])
		}
		// The acknowledgment carries the pre-replay snapshot.
		before := data["metricsBeforeReplay"].(map[string]interface{})
		if before["totalOrders"].(float64) != 10 {
			t.Errorf("metricsBeforeReplay.totalOrders = %v, want 10", before["totalOrders"])
		}
	})

	t.Run("replay coalesced", func(t *testing.T) {
		source.accepted = false
		defer func() { source.accepted = true }()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/replay", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, want 202", rec.Code)
		}
		resp := decodeResponse(t, rec)
		if status := resp.Data.(map[string]interface{})["status"]; status != "coalesced" {
			t.Errorf("status = %v, want coalesced", status)
		}
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		router := NewGatewayRouter(NewOrderHandler(&fakeSubmitter{}), NewHealthHandler(nil))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("ready failure maps to 503", func(t *testing.T) {
		check := func(ctx context.Context) error { return errors.New("broker unreachable") }
		router := NewGatewayRouter(NewOrderHandler(&fakeSubmitter{}), NewHealthHandler(check))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

func TestRequestIDHeader(t *testing.T) {
	router := NewGatewayRouter(NewOrderHandler(&fakeSubmitter{}), NewHealthHandler(nil))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	// An upstream-provided ID is preserved.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("X-Request-ID = %q, want upstream-id", got)
	}
}
