package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gail/internal/agent"
	"gail/internal/certificate"
	"gail/internal/config"
	"gail/internal/db"
	"gail/internal/history"
	"gail/internal/llm"
	"gail/internal/tools"
	"gail/internal/trace"
)

var errNoAPIKey = errors.New("no API key configured")

// runtime is everything a command needs to serve or run conversations.
type runtime struct {
	cfg          *config.Config
	db           *db.DB
	history      *history.Store
	certificates *certificate.Store
	// runner is nil when no provider could be built.
	runner        *agent.StreamRunner
	shutdownTrace func(context.Context) error
}

func openRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	rt := &runtime{
		cfg:          cfg,
		db:           database,
		history:      history.NewStore(database),
		certificates: certificate.NewStore(database),
	}

	if cfg.Trace.Enabled {
		shutdown, err := trace.Init(ctx, trace.Config{
			Endpoint:    cfg.Trace.Endpoint,
			URLPath:     cfg.Trace.URLPath,
			APIKey:      cfg.Trace.APIKey,
			Insecure:    cfg.Trace.Insecure,
			SampleRatio: cfg.Trace.SampleRatio,
		})
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			rt.shutdownTrace = shutdown
		}
	}

	provider, err := newProvider(cfg)
	if err != nil {
		slog.Warn("LLM provider not configured", "error", err)
		return rt, nil
	}

	registry := tools.Registry(rt.certificates, cfg.Services.Brave.APIKey)
	rt.runner = agent.NewStreamRunner(provider, registry,
		agent.WithSystemPrompt(cfg.SystemPrompt),
		agent.WithMaxTurns(cfg.MaxTurns),
		agent.WithStore(rt.history),
	)
	slog.Info("llm provider ready", "provider", provider.Name(), "model", provider.Model(), "tools", len(registry.All()))
	return rt, nil
}

func (rt *runtime) Close(ctx context.Context) {
	if rt.shutdownTrace != nil {
		if err := rt.shutdownTrace(ctx); err != nil {
			slog.Warn("trace shutdown", "error", err)
		}
	}
	rt.db.Close()
}

func newProvider(cfg *config.Config) (llm.Provider, error) {
	l, err := cfg.LLM()
	if err != nil {
		return nil, err
	}
	if l.APIKey == "" {
		return nil, fmt.Errorf("llm %q: %w", cfg.DefaultLLM, errNoAPIKey)
	}
	switch l.Provider {
	case "anthropic":
		return llm.NewAnthropic(l.BaseURL, l.APIKey, l.Model,
			llm.WithMaxTokens(l.MaxTokens),
			llm.WithThinkingBudget(thinkingBudget(l)),
		), nil
	case "openai":
		return llm.NewOpenAI(l.BaseURL, l.APIKey, l.Model), nil
	default:
		return nil, fmt.Errorf("llm %q: unknown provider %q", cfg.DefaultLLM, l.Provider)
	}
}

// thinkingBudget disables extended thinking. Anthropic requires the signed
// thinking blocks of a tool-using turn to be sent back on the next turn, and
// thinking is never replayed, so any run that calls a tool would fail.
func thinkingBudget(l *config.LLMConfig) int64 {
	if l.ThinkingBudget > 0 {
		slog.Warn("thinking_budget ignored: thinking is not replayed across tool turns", "thinking_budget", l.ThinkingBudget)
	}
	return 0
}
