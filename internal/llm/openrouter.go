package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenRouterURL is the OpenRouter API base.
const DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterConfig configures an OpenRouterClient.
type OpenRouterConfig struct {
	APIKey  string
	BaseURL string
	Referer string // sent as HTTP-Referer for app attribution
	Title   string // sent as X-Title
	Params
}

// OpenRouterClient is a direct HTTP client for the OpenRouter chat
// completions API (OpenAI-compatible).
type OpenRouterClient struct {
	cfg    OpenRouterConfig
	client *http.Client
}

// NewOpenRouterClient creates a new OpenRouter API client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenRouterURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &OpenRouterClient{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

// Complete sends a chat completion request and returns the first choice.
func (c *OpenRouterClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	p := c.cfg.Params.resolve(req)

	body := openRouterRequest{
		Model:       p.Model,
		Messages:    chatMessages(req),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}

	respBody, err := postJSON(ctx, c.client, c.Name(), c.cfg.BaseURL+"/chat/completions", map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       c.cfg.Title,
	}, body)
	if err != nil {
		return nil, err
	}

	var result openRouterResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// OpenRouter reports some upstream failures with a 200 status.
	if result.Error != nil {
		return nil, &ProviderError{
			Provider: c.Name(),
			Message:  result.Error.Message,
			Code:     result.Error.code(),
		}
	}

	out := &CompletionResponse{
		Model:    result.Model,
		Duration: time.Since(start),
		Usage: Usage{
			InputTokens:  result.Usage.PromptTokens,
			OutputTokens: result.Usage.CompletionTokens,
		},
	}
	if len(result.Choices) > 0 {
		out.Content = strings.TrimSpace(result.Choices[0].Message.Content)
		out.StopReason = result.Choices[0].FinishReason
	}
	return out, nil
}

// Name returns the provider name.
func (c *OpenRouterClient) Name() string {
	return "openrouter"
}

// API request/response structures

type openRouterRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *openRouterError `json:"error,omitempty"`
}

type openRouterError struct {
	Message string `json:"message"`
	Code    any    `json:"code"` // number or string depending on the upstream
}

func (e *openRouterError) code() int {
	if f, ok := e.Code.(float64); ok {
		return int(f)
	}
	return 0
}
