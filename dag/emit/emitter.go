// Package emit provides observability events for DAG operations.
package emit

// Emitter receives and processes observability events from graph operations.
//
// Emitters enable pluggable observability backends:
//   - Logging: zap, stdout, files
//   - Distributed tracing: OpenTelemetry
//   - Discarding: NullEmitter for tests or silent operation
//
// Implementations should be:
//   - Non-blocking: Avoid slowing down generation pipelines
//   - Thread-safe: May be called concurrently during batch evaluation
//   - Resilient: Handle backend failures without crashing the caller
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not panic and should not return. Backend errors are
	// handled internally (logged or dropped).
	Emit(event Event)
}
