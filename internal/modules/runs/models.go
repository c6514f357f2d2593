// Package runs keeps a ledger of optimization and simulation requests.
package runs

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind identifies the operation a run recorded.
type Kind string

const (
	KindOptimization Kind = "optimization"
	KindSimulation   Kind = "simulation"
)

// Valid reports whether k is a known run kind.
func (k Kind) Valid() bool {
	return k == KindOptimization || k == KindSimulation
}

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Run is one ledger entry. Input and Output hold msgpack-encoded payloads.
type Run struct {
	ID         string
	Kind       Kind
	Solver     string
	Input      []byte
	Output     []byte
	DurationMs int64
	CreatedAt  time.Time
}

// DecodeInput decodes the request payload into v.
func (r *Run) DecodeInput(v interface{}) error {
	return decode(r.Input, v)
}

// DecodeOutput decodes the response payload into v.
func (r *Run) DecodeOutput(v interface{}) error {
	return decode(r.Output, v)
}

// Payloads are encoded with their json tags so the ledger and the HTTP API
// share field names.
func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode run payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode run payload: %w", err)
	}
	return nil
}
