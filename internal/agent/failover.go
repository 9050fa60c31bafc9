package agent

import (
	"context"
	"errors"
	"strings"

	"github.com/soyeahso/annabot/internal/llm"
	"github.com/soyeahso/annabot/internal/logging"
)

// FailoverClient walks an ordered list of models, moving on when a model is
// rate limited or its provider is down. Free OpenRouter models hit 429s
// often, so a short list of alternatives keeps replies flowing.
type FailoverClient struct {
	registry *llm.Registry
	models   []string
	log      *logging.Logger
}

// NewFailoverClient tries primary, then each fallback once. Models unknown to
// the registry go to its fallback provider.
func NewFailoverClient(registry *llm.Registry, primary string, fallbacks []string, log *logging.Logger) *FailoverClient {
	seen := make(map[string]bool, len(fallbacks)+1)
	var models []string
	for _, m := range append([]string{primary}, fallbacks...) {
		if seen[m] {
			continue
		}
		seen[m] = true
		models = append(models, m)
	}
	return &FailoverClient{
		registry: registry,
		models:   models,
		log:      log.Sub("failover"),
	}
}

// Complete returns the first successful completion. It stops at the first
// error that another model would not fix, and returns the last error once
// the list is exhausted.
func (f *FailoverClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for i, model := range f.models {
		client, err := f.registry.Resolve(model)
		if err != nil {
			f.log.Debug().Str("model", model).Err(err).Msg("no provider for model")
			lastErr = err
			continue
		}

		req.Model = model
		resp, err := client.Complete(ctx, req)
		if err == nil {
			if i > 0 {
				f.log.Info().Str("model", model).Int("attempt", i+1).Msg("fallback model answered")
			}
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) {
			return nil, err
		}
		if i < len(f.models)-1 {
			f.log.Warn().Str("model", model).Err(err).Msg("model unavailable, trying next")
		}
	}
	return nil, lastErr
}

// isRetryable reports whether a different model might succeed: rate limits,
// provider outages, and the overload messages some providers return with a
// 200 status.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && (provErr.Code == 429 || provErr.Code >= 500) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"overloaded", "rate limit", "capacity", "timeout"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
