// Package openai provides a model.Provider backed by OpenAI's API.
package openai

import (
	"context"
	"errors"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/iterai/iterai-go/dag/model"
)

// Provider implements model.Provider using the official OpenAI Go SDK.
//
// The endpoint, credentials, and sampling options come from the Request the
// Router builds per model; a fresh SDK client is constructed per call so the
// same Provider can serve multiple registry entries with different keys or
// base URLs.
//
// Provider is safe for concurrent use.
//
// Example usage:
//
//	router.Register("openai", openai.New())
type Provider struct{}

// New creates a new OpenAI provider.
func New() *Provider {
	return &Provider{}
}

// Generate implements the model.Provider interface.
//
// When the request carries no API key, OPENAI_API_KEY is used. The top-k
// option is ignored; OpenAI's chat API does not expose it.
func (p *Provider) Generate(ctx context.Context, req model.Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return "", errors.New("openai API key not provided and OPENAI_API_KEY not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if req.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(req.BaseURL))
	}
	client := openai.NewClient(opts...)

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: messages,
	}
	if req.Options.Temperature != nil {
		params.Temperature = openai.Float(*req.Options.Temperature)
	}
	if req.Options.TopP != nil {
		params.TopP = openai.Float(*req.Options.TopP)
	}
	if req.Options.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*req.Options.MaxTokens))
	}

	completion, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("no response choices from OpenAI API")
	}

	return completion.Choices[0].Message.Content, nil
}
