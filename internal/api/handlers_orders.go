// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/nikhil-ghind/cmpe-273-lab2/internal/event"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/gateway"
	"github.com/nikhil-ghind/cmpe-273-lab2/internal/logging"
)

// validate is a reusable validator instance
var validate = validator.New()

// OrderSubmitter is the gateway surface the order handlers need.
type OrderSubmitter interface {
	Submit(ctx context.Context, orderID string, items []event.Item) (*event.Event, error)
	BulkSubmit(ctx context.Context, count int) (gateway.BulkResult, error)
}

// OrderHandler serves the order submission endpoints.
type OrderHandler struct {
	gateway OrderSubmitter
}

// NewOrderHandler creates the handler over a gateway.
func NewOrderHandler(gw OrderSubmitter) *OrderHandler {
	return &OrderHandler{gateway: gw}
}

// OrderRequest is the body of an order submission.
type OrderRequest struct {
	OrderID string        `json:"orderId" validate:"omitempty,max=64"`
	Items   []ItemRequest `json:"items" validate:"omitempty,dive"`
}

// ItemRequest is one cart line.
type ItemRequest struct {
	SKU string `json:"sku" validate:"required,max=64"`
	Qty int    `json:"qty" validate:"required,gt=0"`
}

// OrderResponse echoes the identifiers of the appended event.
type OrderResponse struct {
	OrderID   string `json:"orderId"`
	EventID   string `json:"eventId"`
	CreatedAt string `json:"createdAt"`
}

// SubmitOrder accepts one order and appends it to the orders log.
//
// Method: POST
// Path: /api/v1/orders
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req OrderRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("Invalid JSON body")
			return
		}
	}
	if err := validate.Struct(&req); err != nil {
		rw.ValidationError("Invalid order", err.Error())
		return
	}

	items := make([]event.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, event.Item{SKU: item.SKU, Qty: item.Qty})
	}

	ev, err := h.gateway.Submit(r.Context(), req.OrderID, items)
	if err != nil {
		rw.PublishError(err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("orderId", ev.OrderID).
		Str("eventId", ev.EventID).
		Msg("order accepted")

	rw.Created(OrderResponse{
		OrderID:   ev.OrderID,
		EventID:   ev.EventID,
		CreatedAt: ev.CreatedAt,
	})
}

// LoadTestRequest is the body of a bulk submission.
type LoadTestRequest struct {
	Count int `json:"count" validate:"omitempty,gt=0,lte=1000000"`
}

// LoadTest appends a burst of sequential load-test orders.
//
// Method: POST
// Path: /api/v1/orders/load-test
//
// The response reports {produced, remaining_in_queue}: how many events made it
// into the log before the flush deadline, and how many did not.
func (h *OrderHandler) LoadTest(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req LoadTestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("Invalid JSON body")
			return
		}
	}
	if err := validate.Struct(&req); err != nil {
		rw.ValidationError("Invalid load test request", err.Error())
		return
	}

	result, err := h.gateway.BulkSubmit(r.Context(), req.Count)
	if err != nil {
		rw.InternalError("Bulk submission failed")
		return
	}

	rw.Success(result)
}
