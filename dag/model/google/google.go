// Package google provides a model.Provider backed by Google's Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/iterai/iterai-go/dag/model"
)

// Provider implements model.Provider using the official generative-ai-go SDK.
//
// The system prompt maps to the model's SystemInstruction; sampling options
// map to the generative model's setters. Gemini clients hold gRPC
// connections, so a client is created and closed per call to keep the
// Provider stateless across registry entries with different credentials.
//
// Provider is safe for concurrent use.
//
// Example usage:
//
//	router.Register("google", google.New())
type Provider struct{}

// New creates a new Google Gemini provider.
func New() *Provider {
	return &Provider{}
}

// Generate implements the model.Provider interface.
//
// When the request carries no API key, GOOGLE_API_KEY is used.
func (p *Provider) Generate(ctx context.Context, req model.Request) (string, error) {
	apiKey := req.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return "", errors.New("google API key not provided and GOOGLE_API_KEY not set")
	}

	opts := []option.ClientOption{option.WithAPIKey(apiKey)}
	if req.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(req.BaseURL))
	}

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create Google client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	gm := client.GenerativeModel(req.Model)
	if req.SystemPrompt != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.Options.Temperature != nil {
		gm.SetTemperature(float32(*req.Options.Temperature))
	}
	if req.Options.TopP != nil {
		gm.SetTopP(float32(*req.Options.TopP))
	}
	if req.Options.TopK != nil {
		gm.SetTopK(int32(*req.Options.TopK))
	}
	if req.Options.MaxTokens != nil {
		gm.SetMaxOutputTokens(int32(*req.Options.MaxTokens))
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}

	return extractText(resp), nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
