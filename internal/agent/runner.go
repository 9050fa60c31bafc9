package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/llm"
	"github.com/soyeahso/annabot/internal/logging"
)

// Replies used when inference does not produce usable text.
const (
	FailedReply = "Oops, my brain got fried 😵. Try again later!"
	EmptyReply  = "Uhh... I forgot what I was gonna say 😅"
)

// RunnerConfig configures the agent runner.
type RunnerConfig struct {
	Model       string
	Fallbacks   []string
	MaxTokens   int
	Temperature *float64
	Persona     string
}

// Turn is everything the model sees for one reply.
type Turn struct {
	ChatType domain.ChatType
	ChatID   string
	ChatName string
	History  []string
	Memories []string
	Text     string
}

// RunResult is the outcome of processing a message.
type RunResult struct {
	Response string        `json:"response"`
	Model    string        `json:"model,omitempty"`
	Usage    llm.Usage     `json:"usage"`
	Duration time.Duration `json:"duration"`
	// Fallback is set when Response is one of the canned replies.
	Fallback bool `json:"fallback,omitempty"`
}

// Runner turns a conversation turn into a reply.
type Runner struct {
	cfg    RunnerConfig
	client *FailoverClient
	log    *logging.Logger
}

// NewRunner creates an agent runner.
func NewRunner(cfg RunnerConfig, registry *llm.Registry, log *logging.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		client: NewFailoverClient(registry, cfg.Model, cfg.Fallbacks, log),
		log:    log.Sub("agent"),
	}
}

// Run builds the prompt for turn and calls the model. The error is
// non-nil only when inference failed.
func (r *Runner) Run(ctx context.Context, turn Turn) (*RunResult, error) {
	start := time.Now()

	system := BuildSystemPrompt(PromptConfig{
		Persona:  r.cfg.Persona,
		ChatType: turn.ChatType,
		ChatName: turn.ChatName,
		History:  turn.History,
		Memories: turn.Memories,
	})

	req := llm.CompletionRequest{
		System:      system,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: turn.Text}},
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("LLM completion: %w", err)
	}

	r.log.Info().
		Str("chat", turn.ChatID).
		Str("model", resp.Model).
		Int("historyLen", len(turn.History)).
		Int("inputTokens", resp.Usage.InputTokens).
		Int("outputTokens", resp.Usage.OutputTokens).
		Dur("duration", time.Since(start)).
		Msg("response generated")

	return &RunResult{
		Response: strings.TrimSpace(resp.Content),
		Model:    resp.Model,
		Usage:    resp.Usage,
		Duration: time.Since(start),
	}, nil
}

// Reply is Run with the canned replies substituted for failures and empty
// output, so there is always something to send.
func (r *Runner) Reply(ctx context.Context, turn Turn) *RunResult {
	start := time.Now()

	result, err := r.Run(ctx, turn)
	if err != nil {
		r.log.Error().Err(err).Str("chat", turn.ChatID).Msg("inference failed")
		return &RunResult{Response: FailedReply, Duration: time.Since(start), Fallback: true}
	}
	if result.Response == "" {
		r.log.Warn().Str("chat", turn.ChatID).Msg("empty completion")
		result.Response = EmptyReply
		result.Fallback = true
	}
	return result
}
