package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/domain"
	"github.com/soyeahso/annabot/internal/llm"
	"github.com/soyeahso/annabot/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func testRegistry(mock llm.Client) *llm.Registry {
	reg := llm.NewRegistry(silentLog())
	reg.Register("mock", mock)
	reg.SetFallback("mock")
	return reg
}

func testTurn() Turn {
	return Turn{
		ChatType: domain.ChatTypeDM,
		ChatID:   "alice@s.whatsapp.net",
		ChatName: "Alice",
		Text:     "Hi",
	}
}

// --- Runner tests ---

func TestRunnerComplete(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{
				Content: "  heyyy babeee 😊 ",
				Model:   "mock-model",
				Usage:   llm.Usage{InputTokens: 20, OutputTokens: 10},
			}, nil
		},
	}

	temp := 1.2
	runner := NewRunner(RunnerConfig{Model: "mock", MaxTokens: 200, Temperature: &temp}, testRegistry(mock), silentLog())

	result, err := runner.Run(context.Background(), testTurn())
	require.NoError(t, err)
	assert.Equal(t, "heyyy babeee 😊", result.Response)
	assert.Equal(t, 20, result.Usage.InputTokens)
	assert.False(t, result.Fallback)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, 200, req.MaxTokens)
	assert.Equal(t, &temp, req.Temperature)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Hi"}, req.Messages[0])
	assert.Contains(t, req.System, "Here is the recent chat history of this user named Alice:\nNo recent messages.")
	assert.Contains(t, req.System, "Important memories to consider:\nNo memories found.")
}

func TestRunnerLLMError(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, errors.New("provider down")
		},
	}
	runner := NewRunner(RunnerConfig{Model: "mock"}, testRegistry(mock), silentLog())

	_, err := runner.Run(context.Background(), testTurn())
	assert.Error(t, err)

	result := runner.Reply(context.Background(), testTurn())
	assert.Equal(t, FailedReply, result.Response)
	assert.True(t, result.Fallback)
}

func TestRunnerReplyEmptyCompletion(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "   "}, nil
		},
	}
	runner := NewRunner(RunnerConfig{Model: "mock"}, testRegistry(mock), silentLog())

	result := runner.Reply(context.Background(), testTurn())
	assert.Equal(t, EmptyReply, result.Response)
	assert.True(t, result.Fallback)
}

func TestRunnerReplySuccess(t *testing.T) {
	mock := &llm.MockClient{ProviderName: "mock"}
	runner := NewRunner(RunnerConfig{Model: "mock"}, testRegistry(mock), silentLog())

	result := runner.Reply(context.Background(), testTurn())
	assert.Equal(t, "mock response", result.Response)
	assert.False(t, result.Fallback)
}

func TestRunnerUsesPersona(t *testing.T) {
	mock := &llm.MockClient{ProviderName: "mock"}
	runner := NewRunner(RunnerConfig{Model: "mock", Persona: "You are Bob."}, testRegistry(mock), silentLog())

	_, err := runner.Run(context.Background(), testTurn())
	require.NoError(t, err)
	system := mock.Requests()[0].System
	assert.True(t, strings.HasPrefix(system, "You are Bob.\n"))
	assert.NotContains(t, system, "Anna")
}

// --- System prompt tests ---

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{
		ChatType: domain.ChatTypeGroup,
		ChatName: "Group",
		History:  []string{"Ann: hi", "Bob: hello"},
		Memories: []string{"Ann: exam tomorrow"},
	})

	assert.True(t, strings.HasPrefix(prompt, DefaultPersona+"\n"))
	assert.Contains(t, prompt, "Here is the recent chat history of this group named Group:\nAnn: hi\nBob: hello\n\n")
	assert.True(t, strings.HasSuffix(prompt, "Important memories to consider:\nAnn: exam tomorrow\n"))
}

func TestBuildSystemPromptPlaceholders(t *testing.T) {
	prompt := BuildSystemPrompt(PromptConfig{ChatType: domain.ChatTypeDM, ChatName: "User"})

	assert.Contains(t, prompt, "this user named User:\n"+NoHistory+"\n\n")
	assert.Contains(t, prompt, "Important memories to consider:\n"+NoMemories+"\n")
	assert.Contains(t, prompt, "your name is Anna")
}

func TestLoadPersona(t *testing.T) {
	text, err := LoadPersona(config.PersonaConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPersona, text)

	text, err = LoadPersona(config.PersonaConfig{Prompt: "inline"})
	require.NoError(t, err)
	assert.Equal(t, "inline", text)

	file := filepath.Join(t.TempDir(), "persona.md")
	require.NoError(t, os.WriteFile(file, []byte("from file\n"), 0o600))
	text, err = LoadPersona(config.PersonaConfig{Prompt: "inline", File: file})
	require.NoError(t, err)
	assert.Equal(t, "from file", text)

	_, err = LoadPersona(config.PersonaConfig{File: filepath.Join(t.TempDir(), "missing.md")})
	assert.Error(t, err)
}

// --- Failover tests ---

func TestFailoverSuccess(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "ok"}, nil
		},
	}

	reg := testRegistry(mock)
	fc := NewFailoverClient(reg, "mock", nil, silentLog())

	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestFailoverTriesFallbackModel(t *testing.T) {
	var models []string

	provider := &llm.MockClient{
		ProviderName: "openrouter",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			models = append(models, req.Model)
			if req.Model == "primary-model" {
				return nil, &llm.ProviderError{Provider: "openrouter", Message: "rate limited", Code: 429}
			}
			return &llm.CompletionResponse{Content: "fallback response"}, nil
		},
	}

	reg := llm.NewRegistry(silentLog())
	reg.Register("openrouter", provider)
	reg.SetFallback("openrouter")

	fc := NewFailoverClient(reg, "primary-model", []string{"backup-model"}, silentLog())

	resp, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fallback response", resp.Content)
	assert.Equal(t, []string{"primary-model", "backup-model"}, models)
}

func TestFailoverNonRetryableStops(t *testing.T) {
	callCount := 0

	primary := &llm.MockClient{
		ProviderName: "primary",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callCount++
			return nil, fmt.Errorf("non-retryable error")
		},
	}

	fallback := &llm.MockClient{
		ProviderName: "fallback",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			callCount++
			return &llm.CompletionResponse{Content: "should not reach"}, nil
		},
	}

	reg := llm.NewRegistry(silentLog())
	reg.Register("primary", primary)
	reg.Register("fallback", fallback)

	fc := NewFailoverClient(reg, "primary", []string{"fallback"}, silentLog())

	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	assert.Error(t, err)
	assert.Equal(t, 1, callCount, "should not try fallback on non-retryable error")
}

func TestFailoverExhausted(t *testing.T) {
	mock := &llm.MockClient{
		ProviderName: "mock",
		CompleteFunc: func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return nil, &llm.ProviderError{Provider: "mock", Message: "busy", Code: 503}
		},
	}

	fc := NewFailoverClient(testRegistry(mock), "a", []string{"b"}, silentLog())

	_, err := fc.Complete(context.Background(), llm.CompletionRequest{})
	var pe *llm.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 503, pe.Code)
	assert.Len(t, mock.Requests(), 2)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&llm.ProviderError{Code: 429}))
	assert.True(t, isRetryable(&llm.ProviderError{Code: 529}))
	assert.True(t, isRetryable(&llm.ProviderError{Code: 503}))
	assert.True(t, isRetryable(fmt.Errorf("server overloaded")))
	assert.True(t, isRetryable(fmt.Errorf("rate limit exceeded")))
	assert.False(t, isRetryable(fmt.Errorf("invalid input")))
	assert.False(t, isRetryable(nil))
}
