package dag

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned when a node id is not present in the graph.
var ErrNodeNotFound = errors.New("node not found in graph")

// GenerateError wraps a backend failure during node generation with the model
// and operation involved. Backend failures are never retried at this layer;
// callers needing resilience wrap calls externally.
//
// Op is one of "plan", "steps", "output", "score", or "plan_compare".
type GenerateError struct {
	Model string
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *GenerateError) Error() string {
	return fmt.Sprintf("generate %s with %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *GenerateError) Unwrap() error {
	return e.Err
}
