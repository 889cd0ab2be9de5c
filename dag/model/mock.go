package model

import (
	"context"
	"sync"
)

// MockGenerator is a test implementation of Generator.
//
// Use MockGenerator in tests to drive node generation without making actual
// LLM API calls. It provides:
//   - Configurable responses returned in sequence
//   - Call history tracking
//   - Error injection
//   - Thread-safe operation
//
// Example usage:
//
//	mock := &MockGenerator{
//	    Responses: []string{
//	        "1. Greet",                                     // plan
//	        `{"steps": [{"order": 1, "text": "Greet"}]}`,   // steps
//	        "Hello!",                                       // output
//	    },
//	}
//	// Each Generate call returns the next response; the last repeats.
type MockGenerator struct {
	// Responses contains the sequence of completions to return.
	// If all responses are consumed, the last response repeats.
	Responses []string

	// Err, if set, will be returned by Generate() instead of a response.
	Err error

	// Calls tracks the history of all Generate() invocations.
	Calls []MockCall

	mu        sync.Mutex
	callIndex int
}

// MockCall records a single invocation of Generate().
type MockCall struct {
	Model        string
	Prompt       string
	SystemPrompt string
}

// Generate implements the Generator interface.
//
// Always records the call in Calls history regardless of success/failure.
func (m *MockGenerator) Generate(ctx context.Context, model, prompt, systemPrompt string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{
		Model:        model,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
	})

	if m.Err != nil {
		return "", m.Err
	}

	if len(m.Responses) == 0 {
		return "", nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}

	return m.Responses[idx], nil
}

// Reset clears the call history and resets the response index.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of times Generate() has been called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.Calls)
}
