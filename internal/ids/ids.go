// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

// Package ids generates the identifier formats shared across the ordering
// services.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewOrderID generates a unique order identifier, e.g. "o-3f2a1b4c".
func NewOrderID() string {
	return "o-" + hex(8)
}

// NewEventID generates a globally unique event identifier (full UUID).
func NewEventID() string {
	return uuid.New().String()
}

// NewSKU generates a random menu item SKU, e.g. "sku-9f1a".
func NewSKU() string {
	return "sku-" + hex(4)
}

// LoadTestOrderID generates the deterministic order identifier for load-test
// order number index, e.g. "load-000042". Sequential identifiers make bulk
// runs reproducible and easy to grep in logs.
func LoadTestOrderID(index int) string {
	return fmt.Sprintf("load-%06d", index)
}

func hex(n int) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:n]
}
