package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter implements Emitter by creating OpenTelemetry spans.
//
// Each event becomes a span with:
//   - Span name: event.Msg (e.g., "generate_start", "diffs_computed")
//   - Attributes: node_id and all event.Meta fields
//   - Status: Set to error if event.Meta["error"] exists
//
// Events represent points in time, so spans are ended immediately. If the
// event carries a "duration_ms" metadata field, the span's start time is
// backdated so span duration reflects the operation it describes.
//
// Usage:
//
//	tracer := otel.Tracer("iterai-go")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates a new OTelEmitter.
//
// The tracer typically comes from otel.Tracer("iterai-go") after the
// application has installed a TracerProvider.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates an OpenTelemetry span for the event.
func (o *OTelEmitter) Emit(event Event) {
	ctx := context.Background()

	opts := []trace.SpanStartOption{}
	if ms, ok := durationMS(event.Meta); ok {
		opts = append(opts, trace.WithTimestamp(time.Now().Add(-time.Duration(ms)*time.Millisecond)))
	}

	_, span := o.tracer.Start(ctx, event.Msg, opts...)
	defer span.End()

	if event.NodeID != "" {
		span.SetAttributes(attribute.String("node_id", event.NodeID))
	}

	for k, v := range event.Meta {
		span.SetAttributes(metaAttribute(k, v))
	}

	if errVal, ok := event.Meta["error"]; ok {
		span.SetStatus(codes.Error, fmt.Sprintf("%v", errVal))
	}
}

// durationMS extracts a millisecond duration from event metadata.
func durationMS(meta map[string]interface{}) (int64, bool) {
	v, ok := meta["duration_ms"]
	if !ok {
		return 0, false
	}
	switch d := v.(type) {
	case int64:
		return d, true
	case int:
		return int64(d), true
	case float64:
		return int64(d), true
	}
	return 0, false
}

// metaAttribute converts a metadata value to a typed span attribute.
func metaAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
