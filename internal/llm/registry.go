package llm

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/logging"
)

// ProviderError is returned when an LLM provider fails.
type ProviderError struct {
	Provider string
	Message  string
	Code     int // HTTP status code (401, 429, 500, etc.)
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Registry manages LLM provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // model alias → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a model name to a provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the default provider used when no model/provider match is found.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// Resolve returns the Client for the given model reference.
// Resolution order: exact provider name → alias → fallback.
func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.clients[model]; ok {
		return c, nil
	}

	if provider, ok := r.aliases[model]; ok {
		if c, ok := r.clients[provider]; ok {
			return c, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no LLM provider for model %q", model)
}

// Default returns the fallback client.
func (r *Registry) Default() (Client, error) {
	return r.Resolve("")
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// NewClientFromConfig builds the HTTP client for the configured provider.
func NewClientFromConfig(cfg config.InferenceConfig) (Client, error) {
	params := Params{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openrouter":
		return NewOpenRouterClient(OpenRouterConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Referer: cfg.Referer,
			Title:   cfg.Title,
			Params:  params,
		}), nil
	case "huggingface":
		return NewHuggingFaceClient(HuggingFaceConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Params:  params,
		}), nil
	case "ollama":
		return NewOllamaAPIClient(cfg.Endpoint, params), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}

// NewRegistryFromConfig builds a Registry holding the configured provider
// as its fallback, with the configured model aliased to it.
func NewRegistryFromConfig(cfg config.InferenceConfig, log *logging.Logger) (*Registry, error) {
	client, err := NewClientFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	reg := NewRegistry(log)
	reg.Register(client.Name(), client)
	reg.SetFallback(client.Name())
	if cfg.Model != "" {
		reg.Alias(cfg.Model, client.Name())
	}
	return reg, nil
}

// ProbePrompt is the message sent to check that the provider answers.
const ProbePrompt = "Say hello!"

// Probe sends a tiny request to verify the key and model are usable.
func Probe(ctx context.Context, client Client) (*CompletionResponse, error) {
	resp, err := client.Complete(ctx, CompletionRequest{
		Messages: []Message{{Role: RoleUser, Content: ProbePrompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("probing %s: %w", client.Name(), err)
	}
	return resp, nil
}
