package main

import (
	"errors"
	"testing"

	"gail/internal/config"
)

func TestThinkingBudgetDisabled(t *testing.T) {
	for _, budget := range []int64{0, 1024, 16000} {
		if got := thinkingBudget(&config.LLMConfig{ThinkingBudget: budget}); got != 0 {
			t.Fatalf("thinkingBudget(%d) = %d, want 0", budget, got)
		}
	}
}

func TestNewProvider(t *testing.T) {
	cfg := config.Default()
	cfg.LLMs["anthropic"].APIKey = ""
	if _, err := newProvider(cfg); !errors.Is(err, errNoAPIKey) {
		t.Fatalf("err = %v, want errNoAPIKey", err)
	}

	cfg.LLMs["anthropic"].APIKey = "sk-test"
	cfg.LLMs["anthropic"].ThinkingBudget = 4096
	p, err := newProvider(cfg)
	if err != nil {
		t.Fatalf("newProvider: %v", err)
	}
	if p.Name() != "anthropic" {
		t.Fatalf("provider = %s", p.Name())
	}

	cfg.LLMs["anthropic"].Provider = "cohere"
	if _, err := newProvider(cfg); err == nil {
		t.Fatalf("expected unknown provider error")
	}
}
