// Package llm wraps the chat-completion backends used to phrase utterances.
// The decision is always made before any model is called.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type Config struct {
	Provider         string
	Model            string
	Timeout          time.Duration
	OllamaBaseURL    string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	AnthropicBaseURL string
	AnthropicAPIKey  string
}

// NewProvider returns nil with no error for provider "none".
func NewProvider(cfg Config) (Provider, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "ollama":
		return NewOllamaProvider(client, cfg.OllamaBaseURL), nil
	case "openai":
		return NewOpenAIProvider(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey), nil
	case "claude":
		return NewClaudeProvider(client, cfg.AnthropicBaseURL, cfg.AnthropicAPIKey), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
