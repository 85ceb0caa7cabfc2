// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package event

import (
	"errors"
	"testing"
	"time"
)

func placedEvent() *Event {
	return &Event{
		EventID:   "e-1",
		EventType: TypeOrderPlaced,
		OrderID:   "o-1",
		Items:     []Item{{SKU: "burrito", Qty: 2}},
		CreatedAt: "2026-08-29T12:00:30.5-07:00",
	}
}

func TestTopic(t *testing.T) {
	placed := placedEvent()
	if got := placed.Topic(); got != "orders.o-1" {
		t.Errorf("Topic() = %q, want orders.o-1", got)
	}

	outcome := &Event{EventType: TypeInventoryReserved, OrderID: "o-1"}
	if got := outcome.Topic(); got != "inventory.o-1" {
		t.Errorf("Topic() = %q, want inventory.o-1", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Event)
		wantField string
	}{
		{"valid", func(e *Event) {}, ""},
		{"missing event id", func(e *Event) { e.EventID = "" }, "eventId"},
		{"missing order id", func(e *Event) { e.OrderID = "" }, "orderId"},
		{"missing items", func(e *Event) { e.Items = nil }, "items"},
		{"zero quantity", func(e *Event) { e.Items[0].Qty = 0 }, "items.qty"},
		{"missing sku", func(e *Event) { e.Items[0].SKU = "" }, "items.sku"},
		{"missing created at", func(e *Event) { e.CreatedAt = "" }, "createdAt"},
		{"unknown type", func(e *Event) { e.EventType = "OrderShipped" }, "eventType"},
		{
			"failed without reason",
			func(e *Event) {
				e.EventType = TypeInventoryFailed
				e.Reason = ""
			},
			"reason",
		},
		{
			"reserved without timestamp",
			func(e *Event) {
				e.EventType = TypeInventoryReserved
				e.ReservedAt = ""
			},
			"reservedAt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := placedEvent()
			tt.mutate(ev)

			err := ev.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestMinuteBucket(t *testing.T) {
	tests := []struct {
		name      string
		createdAt string
		want      string
	}{
		{"utc", "2026-08-29T12:00:30Z", "2026-08-29T12:00"},
		{"fractional seconds", "2026-08-29T12:00:59.999999Z", "2026-08-29T12:00"},
		{"producer offset kept", "2026-08-29T23:59:01-07:00", "2026-08-29T23:59"},
		{"garbage", "not-a-timestamp", UnknownBucket},
		{"empty", "", UnknownBucket},
		{"epoch seconds", "1756468830", UnknownBucket},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinuteBucket(tt.createdAt); got != tt.want {
				t.Errorf("MinuteBucket(%q) = %q, want %q", tt.createdAt, got, tt.want)
			}
		})
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)
	now := time.Date(2026, 8, 29, 12, 0, 30, 500000000, loc)

	s := Timestamp(now)
	if got := MinuteBucket(s); got != "2026-08-29T12:00" {
		t.Errorf("MinuteBucket(Timestamp()) = %q, want 2026-08-29T12:00", got)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	data, err := Encode(placedEvent())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.OrderID != "o-1" || decoded.EventType != TypeOrderPlaced {
		t.Errorf("decoded = %+v", decoded)
	}
	// The producer's offset string survives untouched.
	if decoded.CreatedAt != "2026-08-29T12:00:30.5-07:00" {
		t.Errorf("createdAt = %q, offset not preserved", decoded.CreatedAt)
	}
}

func TestEncodeRejectsInvalid(t *testing.T) {
	ev := placedEvent()
	ev.OrderID = ""
	if _, err := Encode(ev); err == nil {
		t.Error("Encode() accepted invalid event")
	}
}

func TestDecodePoison(t *testing.T) {
	for _, payload := range []string{"", "{truncated", "[1,2,3]", `"just a string"`} {
		_, err := Decode([]byte(payload))
		if err == nil {
			// Valid JSON of the wrong shape decodes to a zero event;
			// consumers drop those on the orderId check instead.
			continue
		}
		var derr *DecodeError
		if !errors.As(err, &derr) {
			t.Errorf("Decode(%q) = %v, want *DecodeError", payload, err)
		}
	}
}
