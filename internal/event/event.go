// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package event defines the canonical wire format shared by every stage of
// the ordering pipeline and the codec that reads and writes it.
//
// Three event kinds flow through the system:
//   - OrderPlaced is appended to the orders log by the gateway.
//   - InventoryReserved / InventoryFailed are appended to the inventory log
//     by the processor, exactly one per distinct orderId.
//
// All kinds share one flat JSON shape discriminated by eventType. Field names
// are the contract; changing them breaks every consumer.
package event

import (
	"time"
)

// Event type discriminators carried in the eventType field.
const (
	TypeOrderPlaced       = "OrderPlaced"
	TypeInventoryReserved = "InventoryReserved"
	TypeInventoryFailed   = "InventoryFailed"
)

// Failure reasons carried by InventoryFailed events.
const (
	ReasonOutOfStock      = "OUT_OF_STOCK"
	ReasonQuantityTooHigh = "QUANTITY_TOO_HIGH"
)

// Subject prefixes for the two logs. The order identifier is appended as the
// final subject token so that all events for one order share a subject and
// keep their relative order.
const (
	OrdersSubjectPrefix    = "orders."
	InventorySubjectPrefix = "inventory."

	// Wildcard topics used by consumers subscribing to a whole log.
	TopicOrdersAll    = "orders.>"
	TopicInventoryAll = "inventory.>"
)

// UnknownBucket is the sentinel minute bucket used when an event carries a
// createdAt value that cannot be parsed. Such events are still counted.
const UnknownBucket = "unknown"

// Item is a single order line.
type Item struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty"`
}

// Event is the wire representation of every pipeline event. Timestamps are
// kept as the original ISO-8601 strings rather than time.Time so that the
// producer's embedded UTC offset survives a round trip untouched and
// malformed values can still be transported and counted downstream.
type Event struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	OrderID   string `json:"orderId"`

	// Items is set only on OrderPlaced.
	Items []Item `json:"items,omitempty"`

	// ReservedAt is set only on InventoryReserved.
	ReservedAt string `json:"reservedAt,omitempty"`

	// Reason is set only on InventoryFailed.
	Reason string `json:"reason,omitempty"`

	CreatedAt string `json:"createdAt"`
}

// Topic returns the log subject this event is published to. The orderId is
// the partition key: it becomes the last subject token, so per-order
// delivery order is preserved end to end.
func (e *Event) Topic() string {
	if e.EventType == TypeOrderPlaced {
		return OrdersSubjectPrefix + e.OrderID
	}
	return InventorySubjectPrefix + e.OrderID
}

// Validate checks the invariants an internally produced event must satisfy.
// The codec refuses to encode an event that fails validation.
func (e *Event) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "eventId", Message: "required"}
	}
	if e.OrderID == "" {
		return &ValidationError{Field: "orderId", Message: "required"}
	}
	switch e.EventType {
	case TypeOrderPlaced:
		if len(e.Items) == 0 {
			return &ValidationError{Field: "items", Message: "required"}
		}
		for _, it := range e.Items {
			if it.SKU == "" {
				return &ValidationError{Field: "items.sku", Message: "required"}
			}
			if it.Qty <= 0 {
				return &ValidationError{Field: "items.qty", Message: "must be positive"}
			}
		}
	case TypeInventoryReserved:
		if e.ReservedAt == "" {
			return &ValidationError{Field: "reservedAt", Message: "required"}
		}
	case TypeInventoryFailed:
		if e.Reason == "" {
			return &ValidationError{Field: "reason", Message: "required"}
		}
	default:
		return &ValidationError{Field: "eventType", Message: "unknown type " + e.EventType}
	}
	if e.CreatedAt == "" {
		return &ValidationError{Field: "createdAt", Message: "required"}
	}
	return nil
}

// IsInventoryOutcome reports whether the event is one of the two reservation
// outcomes. Unknown event types are neither orders nor outcomes and are
// ignored by consumers for forward compatibility.
func (e *Event) IsInventoryOutcome() bool {
	return e.EventType == TypeInventoryReserved || e.EventType == TypeInventoryFailed
}

// Timestamp formats a time as the pipeline's ISO-8601 wire format with an
// explicit offset.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

// MinuteBucket truncates an event-time string to its minute, keeping the
// producer's embedded offset so windowing reflects producer time rather than
// consumer wall clock. Unparsable input yields UnknownBucket.
func MinuteBucket(createdAt string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return UnknownBucket
	}
	return t.Format("2006-01-02T15:04")
}

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
