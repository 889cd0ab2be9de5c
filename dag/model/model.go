// Package model provides LLM generation backend adapters.
package model

import (
	"context"
	"fmt"
)

// Generator is the generation backend consumed by the DAG engine.
//
// A Generator resolves the model name to provider-specific options and
// produces a completion for the given prompt. The engine treats it as an
// opaque collaborator: backend failures propagate to the caller untranslated
// beyond the Error wrapper, and no retry is performed at this layer.
//
// Implementations must be safe for concurrent use; batch evaluation issues
// bounded concurrent Generate calls.
type Generator interface {
	// Generate produces completion text for prompt under systemPrompt using
	// the named model.
	//
	// Returns the raw completion text, or an error for authentication,
	// network, rate-limit, or provider failures. Context cancellation is
	// respected.
	Generate(ctx context.Context, model, prompt, systemPrompt string) (string, error)
}

// GeneratorFunc is a function adapter that implements the Generator interface.
// It allows using plain functions as generation backends, which is convenient
// in tests and small embeddings.
//
// Example:
//
//	gen := model.GeneratorFunc(func(ctx context.Context, model, prompt, system string) (string, error) {
//	    return "stub output", nil
//	})
type GeneratorFunc func(ctx context.Context, model, prompt, systemPrompt string) (string, error)

// Generate implements the Generator interface for GeneratorFunc.
func (f GeneratorFunc) Generate(ctx context.Context, model, prompt, systemPrompt string) (string, error) {
	return f(ctx, model, prompt, systemPrompt)
}

// Options holds per-model sampling options resolved from the model registry.
//
// Nil fields mean "use the provider default". Providers ignore options they
// do not support (e.g. OpenAI has no top-k parameter).
type Options struct {
	Temperature *float64 `yaml:"temperature" json:"temperature,omitempty"`
	TopP        *float64 `yaml:"top_p" json:"top_p,omitempty"`
	TopK        *int     `yaml:"top_k" json:"top_k,omitempty"`
	MaxTokens   *int     `yaml:"max_tokens" json:"max_tokens,omitempty"`
}

// Request carries everything a Provider needs for one completion call.
//
// The Router builds Requests by resolving the model name against the
// registry; provider implementations should not consult any other
// configuration source except environment-variable API key fallbacks.
type Request struct {
	// Model is the provider-side model identifier, e.g. "gpt-4o".
	Model string

	// Prompt is the user prompt.
	Prompt string

	// SystemPrompt is the system prompt; may be empty.
	SystemPrompt string

	// BaseURL overrides the provider's default API endpoint when non-empty.
	BaseURL string

	// APIKey authenticates the call. When empty, providers fall back to
	// their conventional environment variable.
	APIKey string

	// Options are the per-model sampling options.
	Options Options
}

// Provider is a single upstream LLM API (OpenAI, Anthropic, Google).
//
// Providers translate a Request into one vendor SDK call and return the
// completion text. They do not resolve model registries; that is the
// Router's job.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Error wraps a backend failure with enough context to diagnose the model
// and operation involved.
type Error struct {
	// Provider names the upstream, e.g. "openai".
	Provider string

	// Model is the model identifier the call used.
	Model string

	// Err is the underlying SDK or transport error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s model %s: %v", e.Provider, e.Model, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}
