// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package ids

import (
	"strings"
	"testing"
)

func TestNewOrderID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewOrderID()
		if !strings.HasPrefix(id, "o-") || len(id) != 10 {
			t.Fatalf("NewOrderID() = %q, want o- prefix and 8 hex chars", id)
		}
		if seen[id] {
			t.Fatalf("NewOrderID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestNewEventID(t *testing.T) {
	a, b := NewEventID(), NewEventID()
	if a == b {
		t.Errorf("NewEventID() repeated %q", a)
	}
	if len(a) != 36 {
		t.Errorf("NewEventID() = %q, want UUID format", a)
	}
}

func TestNewSKU(t *testing.T) {
	sku := NewSKU()
	if !strings.HasPrefix(sku, "sku-") || len(sku) != 8 {
		t.Errorf("NewSKU() = %q, want sku- prefix and 4 hex chars", sku)
	}
}

func TestLoadTestOrderID(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "load-000000"},
		{42, "load-000042"},
		{999999, "load-999999"},
	}
	for _, tt := range tests {
		if got := LoadTestOrderID(tt.index); got != tt.want {
			t.Errorf("LoadTestOrderID(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
}
