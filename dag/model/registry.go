package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ModelConfig describes one registry entry: which provider serves a model
// name and with what endpoint, credentials, and sampling options.
type ModelConfig struct {
	Provider string  `yaml:"provider" json:"provider"`
	BaseURL  string  `yaml:"base_url" json:"base_url,omitempty"`
	APIKey   string  `yaml:"api_key" json:"api_key,omitempty"`
	Options  Options `yaml:"options" json:"options"`
}

// Registry maps model names to their provider configuration.
type Registry map[string]ModelConfig

// ErrUnknownModel is returned when a model name has no registry entry.
var ErrUnknownModel = errors.New("model not in registry")

// ErrUnknownProvider is returned when a registry entry names a provider
// that has not been registered with the Router.
var ErrUnknownProvider = errors.New("provider not registered")

// Router implements Generator by resolving model names against a Registry
// and dispatching to the named Provider.
//
// Example:
//
//	router := model.NewRouter(cfg.ModelRegistry())
//	router.Register("openai", openai.New())
//	router.Register("anthropic", anthropic.New())
//	router.Register("google", google.New())
//
//	text, err := router.Generate(ctx, "gpt-4o", "Say hi", "")
//
// Router is safe for concurrent use once providers are registered.
type Router struct {
	mu        sync.RWMutex
	registry  Registry
	providers map[string]Provider
}

// NewRouter creates a Router over the given registry. A nil registry is
// treated as empty; every Generate call will then fail with ErrUnknownModel.
func NewRouter(registry Registry) *Router {
	if registry == nil {
		registry = Registry{}
	}
	return &Router{
		registry:  registry,
		providers: make(map[string]Provider),
	}
}

// Register installs a Provider under the given name ("openai", "anthropic",
// "google"). Registering the same name twice replaces the previous provider.
func (r *Router) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Generate implements the Generator interface.
//
// The model name is resolved to a ModelConfig, the configured provider is
// looked up, and the call is dispatched with the resolved endpoint,
// credentials, and options. Provider failures are wrapped in *Error with the
// provider and model names attached.
func (r *Router) Generate(ctx context.Context, modelName, prompt, systemPrompt string) (string, error) {
	r.mu.RLock()
	cfg, ok := r.registry[modelName]
	var provider Provider
	if ok {
		provider = r.providers[cfg.Provider]
	}
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownModel, modelName)
	}
	if provider == nil {
		return "", fmt.Errorf("%w: %s (model %s)", ErrUnknownProvider, cfg.Provider, modelName)
	}

	text, err := provider.Generate(ctx, Request{
		Model:        modelName,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		BaseURL:      cfg.BaseURL,
		APIKey:       cfg.APIKey,
		Options:      cfg.Options,
	})
	if err != nil {
		return "", &Error{Provider: cfg.Provider, Model: modelName, Err: err}
	}
	return text, nil
}
