package ai

import (
	"context"
)

// CompletionClient turns a prompt into text.
// Implement this interface to add new AI providers (Gemini, Ollama, Anthropic, etc.)
type CompletionClient interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// CompletionFunc adapts a plain function to CompletionClient.
type CompletionFunc func(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)

func (f CompletionFunc) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	return f(ctx, prompt, maxTokens, temperature)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini    ProviderType = "gemini"
	ProviderOllama    ProviderType = "ollama"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderAuto      ProviderType = "auto"
)
