// Package anthropic provides a model.Provider backed by Anthropic's Claude API.
package anthropic

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/iterai/iterai-go/dag/model"
)

// defaultMaxTokens caps completion length when the registry entry does not
// set one; the Messages API requires an explicit max_tokens.
const defaultMaxTokens = 2048

// Provider implements model.Provider using the official anthropic-sdk-go.
//
// Anthropic takes the system prompt as a separate request parameter rather
// than a message role, so Generate maps Request.SystemPrompt to
// MessageNewParams.System.
//
// Provider is safe for concurrent use.
//
// Example usage:
//
//	router.Register("anthropic", anthropic.New())
type Provider struct{}

// New creates a new Anthropic provider.
func New() *Provider {
	return &Provider{}
}

// Generate implements the model.Provider interface.
//
// When the request carries no API key, ANTHROPIC_API_KEY is used.
func (p *Provider) Generate(ctx context.Context, req model.Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return "", errors.New("anthropic API key not provided and ANTHROPIC_API_KEY not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if req.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(req.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := int64(defaultMaxTokens)
	if req.Options.MaxTokens != nil {
		maxTokens = int64(*req.Options.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Options.Temperature)
	}
	if req.Options.TopP != nil {
		params.TopP = anthropic.Float(*req.Options.TopP)
	}
	if req.Options.TopK != nil {
		params.TopK = anthropic.Int(int64(*req.Options.TopK))
	}

	message, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return sb.String(), nil
}
