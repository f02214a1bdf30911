// Package llm wraps the answer-generation model.
package llm

import (
	"context"
	"fmt"

	"github.com/civicqa/govrag/config"
)

// Provider generates grounded answer text. Generation failures are the only
// pipeline errors surfaced to callers, so implementations must return real
// errors rather than placeholder text.
type Provider interface {
	Generate(ctx context.Context, system, prompt string, temperature float64, maxTokens int) (string, error)
}

// New builds the configured generation provider.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return newOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
