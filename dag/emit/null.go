package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use cases:
//   - Library embedding where observability is handled elsewhere
//   - Tests that don't assert on events
//
// Example usage:
//
//	g, err := dag.NewGraph(cfg, gen, st, dag.WithEmitter(emit.NewNullEmitter()))
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
//
// Returns a NullEmitter that discards all events without any processing.
// This is safe for concurrent use and has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event
}
