package emit

// Event represents an observability event emitted during graph operations.
//
// Events provide insight into the lifecycle of a node:
//   - Registration and edge attachment
//   - Plan, step, and output generation
//   - Diff computation
//   - Persistence
//   - Evaluation scoring
type Event struct {
	// NodeID identifies the node this event concerns.
	// Empty string for graph-level events (load, save).
	NodeID string

	// Msg names the event, e.g. "generate_start", "diffs_computed".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "model": Model used for a generation call
	//   - "op": Generation operation (plan, steps, output, score)
	//   - "duration_ms": Call duration in milliseconds
	//   - "error": Error details
	//   - "steps": Number of parsed plan steps
	Meta map[string]interface{}
}
