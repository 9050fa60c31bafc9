package cli

import (
	"fmt"

	"github.com/soyeahso/annabot/internal/agent"
	"github.com/soyeahso/annabot/internal/config"
	"github.com/soyeahso/annabot/internal/dedupe"
	"github.com/soyeahso/annabot/internal/llm"
	"github.com/soyeahso/annabot/internal/store"
)

// app holds the pieces shared by run and ask.
type app struct {
	db            *store.DB
	conversations store.ConversationStore
	registry      *llm.Registry
	runner        *agent.Runner
	dedupe        dedupe.Store
}

func buildApp(cfg config.Config) (*app, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	db, err := store.Open(paths.SQLiteStore(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a := &app{db: db}

	a.conversations, err = store.NewConversationStore(cfg.Store, db, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}

	a.registry, err = llm.NewRegistryFromConfig(cfg.Inference, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	persona, err := agent.LoadPersona(cfg.Persona)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.runner = agent.NewRunner(agent.RunnerConfig{
		Model:       cfg.Inference.Model,
		Fallbacks:   cfg.Inference.Fallbacks,
		MaxTokens:   cfg.Inference.MaxTokens,
		Temperature: cfg.Inference.Temperature,
		Persona:     persona,
	}, a.registry, log)

	a.dedupe, err = dedupe.NewFromConfig(cfg.Dedupe)
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info().
		Str("store", cfg.Store.Driver).
		Str("provider", cfg.Inference.Provider).
		Str("model", cfg.Inference.Model).
		Str("dedupe", cfg.Dedupe.Driver).
		Msg("components ready")
	return a, nil
}

func (a *app) Close() {
	if a.dedupe != nil {
		a.dedupe.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
