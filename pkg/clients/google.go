package clients

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// ModelType is an enum for the available Google AI models.
type ModelType string

const (
	// DefaultModel is the default model to use if none is specified
	DefaultModel ModelType = "gemini-3-flash-preview"
	ProModel     ModelType = "gemini-3-pro-preview"
)

// GoogleProvider adapts a Gemini chat model to the completion-provider
// contract the result generator consumes.
type GoogleProvider struct {
	llm llms.Model
}

// NewGoogleProvider initializes the Gemini client. The API key comes from
// the environment (a .env file is honored if present).
func NewGoogleProvider(ctx context.Context, model, apiKey string) (*GoogleProvider, error) {
	_ = godotenv.Load()

	if model == "" {
		model = string(DefaultModel)
	}
	// See https://ai.google.dev/gemini-api/docs/models/gemini for possible models
	llm, err := googleai.New(ctx, googleai.WithAPIKey(apiKey), googleai.WithDefaultModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to init Gemini model: %w", err)
	}

	return &GoogleProvider{llm: llm}, nil
}

// Complete returns the full completion for the prompt.
func (p *GoogleProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	})
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// StreamComplete streams the completion fragment by fragment into fn.
func (p *GoogleProvider) StreamComplete(ctx context.Context, prompt string, fn func(chunk string) error) error {
	_, err := p.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		return fn(string(chunk))
	}))
	if err != nil {
		return fmt.Errorf("llm streaming failed: %w", err)
	}
	return nil
}
