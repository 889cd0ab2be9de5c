package dag

import (
	"github.com/iterai/iterai-go/dag/emit"
	"github.com/iterai/iterai-go/dag/model"
	"github.com/iterai/iterai-go/dag/model/anthropic"
	"github.com/iterai/iterai-go/dag/model/google"
	"github.com/iterai/iterai-go/dag/model/openai"
	"github.com/iterai/iterai-go/dag/store"
)

type settings struct {
	store   store.Store
	gen     model.Generator
	emitter emit.Emitter
	metrics *Metrics
}

// Option configures an Engine at construction time.
type Option func(*settings) error

// WithStore overrides the default filesystem store.
func WithStore(s store.Store) Option {
	return func(cfg *settings) error {
		cfg.store = s
		return nil
	}
}

// WithGenerator overrides the default provider Router as the generation
// backend. Useful for tests and custom backends.
func WithGenerator(gen model.Generator) Option {
	return func(cfg *settings) error {
		cfg.gen = gen
		return nil
	}
}

// WithEmitter installs an event emitter. The default discards all events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *settings) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics installs Prometheus instrumentation. The default collects
// nothing.
func WithMetrics(m *Metrics) Option {
	return func(cfg *settings) error {
		cfg.metrics = m
		return nil
	}
}

// defaultGenerator builds a Router over the configured model registry with
// the standard providers registered.
func defaultGenerator(cfg *Config) model.Generator {
	router := model.NewRouter(cfg.ModelRegistry())
	router.Register("openai", openai.New())
	router.Register("anthropic", anthropic.New())
	router.Register("google", google.New())
	return router
}
