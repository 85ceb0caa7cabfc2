// CMPE 273 Lab 2 - Campus Food Ordering, Part C: Streaming Pipeline
// https://github.com/nikhil-ghind/cmpe-273-lab2

package event

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Codec encodes and decodes pipeline events. It is pure and safe for
// concurrent use.
type Codec struct{}

// NewCodec creates a new codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Marshal converts an event to its JSON wire form. It fails only for events
// that violate Validate; well-formed internally produced events always
// encode.
func (c *Codec) Marshal(e *Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("validate event: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return data, nil
}

// Unmarshal converts JSON bytes back to an event. Malformed or truncated
// input never panics; it returns a *DecodeError so consumption loops can
// skip-and-acknowledge poison payloads instead of stalling a partition.
func (c *Codec) Unmarshal(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return &e, nil
}

// Encode is a convenience function that marshals an event to JSON.
func Encode(e *Event) ([]byte, error) {
	return NewCodec().Marshal(e)
}

// Decode is a convenience function that unmarshals JSON to an event.
func Decode(data []byte) (*Event, error) {
	return NewCodec().Unmarshal(data)
}

// DecodeError is the tagged failure returned for payloads that are not valid
// event JSON. Callers match it with errors.As to distinguish poison messages
// from infrastructure errors.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode event: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
