package ai

import (
	"context"
	"fmt"

	"inboxpilot-backend/pkg/gemini"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama", "anthropic" or "auto"

	// Gemini config
	GeminiAPIKey string
	GeminiModel  string

	// Anthropic config
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string

	// Ollama is shared with the settings API so its URL can change at runtime.
	Ollama *OllamaService

	// RequestsPerMinute throttles completions; 0 disables it.
	RequestsPerMinute int
}

// NewCompletionClient creates a CompletionClient based on the config.
// This is the factory function - switch AI provider by changing config.Provider
func NewCompletionClient(ctx context.Context, cfg Config) (CompletionClient, error) {
	ollama := cfg.Ollama
	if ollama == nil {
		ollama = NewOllamaService("", "")
	}

	var client CompletionClient
	switch cfg.Provider {
	case ProviderGemini:
		svc, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		client = svc

	case ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		client = NewAnthropicService(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicURL)

	case ProviderOllama:
		client = ollama

	default:
		// Hosted provider first when a key is available, local Ollama as fallback
		switch {
		case cfg.GeminiAPIKey != "":
			svc, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
			if err != nil {
				return nil, err
			}
			client = NewFallbackService("gemini", svc, "ollama", ollama)
		case cfg.AnthropicAPIKey != "":
			svc := NewAnthropicService(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicURL)
			client = NewFallbackService("anthropic", svc, "ollama", ollama)
		default:
			client = ollama
		}
	}

	return NewRateLimited(client, cfg.RequestsPerMinute, 1), nil
}
