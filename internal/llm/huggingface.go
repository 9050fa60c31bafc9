package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultHuggingFaceURL is the hosted inference API base.
const DefaultHuggingFaceURL = "https://api-inference.huggingface.co"

// HuggingFaceConfig configures a HuggingFaceClient.
type HuggingFaceConfig struct {
	APIKey  string
	BaseURL string
	Params
}

// HuggingFaceClient calls a text-generation model on the HuggingFace
// inference API. The model sees a flat prompt, not chat turns.
type HuggingFaceClient struct {
	cfg    HuggingFaceConfig
	client *http.Client
}

// NewHuggingFaceClient creates a new HuggingFace inference client.
func NewHuggingFaceClient(cfg HuggingFaceConfig) *HuggingFaceClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultHuggingFaceURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gpt2"
	}

	return &HuggingFaceClient{
		cfg:    cfg,
		client: newHTTPClient(),
	}
}

// Complete sends the flattened prompt and returns the generated text.
func (h *HuggingFaceClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	p := h.cfg.Params.resolve(req)
	prompt := flattenPrompt(req)

	body := map[string]any{"inputs": prompt}
	params := map[string]any{"return_full_text": false}
	if p.MaxTokens > 0 {
		params["max_new_tokens"] = p.MaxTokens
	}
	if p.Temperature != nil {
		params["temperature"] = *p.Temperature
	}
	body["parameters"] = params

	endpoint := fmt.Sprintf("%s/models/%s", h.cfg.BaseURL, p.Model)

	respBody, err := postJSON(ctx, h.client, h.Name(), endpoint, map[string]string{
		"Authorization": "Bearer " + h.cfg.APIKey,
	}, body)
	if err != nil {
		return nil, err
	}

	var generated []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(respBody, &generated); err != nil {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, &ProviderError{Provider: h.Name(), Message: apiErr.Error}
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &CompletionResponse{Model: p.Model, Duration: time.Since(start)}
	if len(generated) > 0 {
		text := strings.TrimPrefix(generated[0].GeneratedText, prompt)
		out.Content = strings.TrimSpace(text)
	}
	return out, nil
}

// Name returns the provider name.
func (h *HuggingFaceClient) Name() string {
	return "huggingface"
}

// flattenPrompt renders system and turns as plain text for models without
// a chat template.
func flattenPrompt(req CompletionRequest) string {
	var prompt strings.Builder

	if req.System != "" {
		prompt.WriteString(req.System)
		prompt.WriteString("\n\n")
	}

	for i, msg := range req.Messages {
		if i > 0 {
			prompt.WriteString("\n")
		}
		if msg.Role != RoleUser {
			fmt.Fprintf(&prompt, "%s: ", msg.Role)
		}
		prompt.WriteString(msg.Content)
	}

	return prompt.String()
}
