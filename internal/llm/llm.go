// Package llm wraps the hosted models used when the backend chat endpoint is unavailable.
package llm

import (
	"context"
	"fmt"

	"cookify/internal/config"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// NewFromConfig returns the generator selected by chat.fallback, or nil for "none".
func NewFromConfig(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	switch cfg.Chat.Fallback {
	case config.FallbackGemini:
		return NewGeminiClient(ctx, cfg)
	case config.FallbackGroq:
		return NewGroqClient(cfg), nil
	case config.FallbackNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown chat fallback %q", cfg.Chat.Fallback)
	}
}
