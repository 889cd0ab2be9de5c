package emit

import (
	"go.uber.org/zap"
)

// ZapEmitter implements Emitter by writing structured log entries through a
// zap logger.
//
// Each event becomes one log entry:
//   - Message: event.Msg
//   - Fields: node_id plus every key in event.Meta
//   - Level: error when event.Meta["error"] is present, info otherwise
//
// Usage:
//
//	logger, _ := zap.NewProduction()
//	defer logger.Sync()
//	emitter := emit.NewZapEmitter(logger)
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter creates a new ZapEmitter.
//
// A nil logger falls back to zap.NewNop so the emitter never panics.
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger}
}

// Emit writes the event as a structured log entry.
func (z *ZapEmitter) Emit(event Event) {
	fields := make([]zap.Field, 0, len(event.Meta)+1)
	if event.NodeID != "" {
		fields = append(fields, zap.String("node_id", event.NodeID))
	}

	isErr := false
	for k, v := range event.Meta {
		if k == "error" {
			isErr = true
		}
		fields = append(fields, zap.Any(k, v))
	}

	if isErr {
		z.logger.Error(event.Msg, fields...)
		return
	}
	z.logger.Info(event.Msg, fields...)
}
