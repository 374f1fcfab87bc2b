package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type OllamaProvider struct {
	client  *http.Client
	baseURL string
}

func NewOllamaProvider(client *http.Client, baseURL string) *OllamaProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	payload := ollamaChatRequest{
		Model:    req.Model,
		Messages: make([]ollamaMessage, 0, 2),
	}
	if req.System != "" {
		payload.Messages = append(payload.Messages, ollamaMessage{Role: "system", Content: req.System})
	}
	payload.Messages = append(payload.Messages, ollamaMessage{Role: "user", Content: req.Prompt})
	if req.Temperature > 0 || req.TopP > 0 || req.MaxTokens > 0 {
		payload.Options = &ollamaOptions{Temperature: req.Temperature, TopP: req.TopP, NumPredict: req.MaxTokens}
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("ollama error: %s", parsed.Error)
	}
	return strings.TrimSpace(parsed.Message.Content), nil
}

// Ping checks that the server answers /api/tags.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama status %d", resp.StatusCode)
	}
	return nil
}
