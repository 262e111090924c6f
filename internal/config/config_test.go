package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("BRAVE_API_KEY", "")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	l, err := cfg.LLM()
	if err != nil {
		t.Fatalf("LLM: %v", err)
	}
	if l.Provider != "anthropic" || l.APIKey != "sk-env" || l.MaxTokens != 8192 {
		t.Fatalf("llm = %+v", l)
	}
	if cfg.Gateway.Addr != ":8484" {
		t.Fatalf("addr = %q", cfg.Gateway.Addr)
	}
	if cfg.Services.Brave.APIKey != "" {
		t.Fatalf("brave key = %q", cfg.Services.Brave.APIKey)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai-env")
	t.Setenv("BRAVE_API_KEY", "brave-env")

	path := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(path, []byte(`
default_llm = "fast"
max_turns = 6

[llm.fast]
provider = "openai"
model = "gpt-4.1"

[llm.anthropic]
model = "claude-opus-4-1"
api_key = "sk-file"

[gateway]
addr = "127.0.0.1:9000"

[gateway.tokens]
tok-1 = "acme"

[db]
path = "/tmp/gail-test.db"
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	l, err := cfg.LLM()
	if err != nil {
		t.Fatalf("LLM: %v", err)
	}
	if l.Provider != "openai" || l.Model != "gpt-4.1" || l.APIKey != "sk-openai-env" {
		t.Fatalf("fast = %+v", l)
	}
	if a := cfg.LLMs["anthropic"]; a.Provider != "anthropic" || a.APIKey != "sk-file" {
		t.Fatalf("anthropic = %+v", a)
	}
	if cfg.MaxTurns != 6 || cfg.Gateway.Addr != "127.0.0.1:9000" || cfg.DB.Path != "/tmp/gail-test.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Gateway.Tokens["tok-1"] != "acme" {
		t.Fatalf("tokens = %v", cfg.Gateway.Tokens)
	}
	if cfg.Services.Brave.APIKey != "brave-env" {
		t.Fatalf("brave key = %q", cfg.Services.Brave.APIKey)
	}
}

func TestLoadFileInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_llm = \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDefaultLLMMissing(t *testing.T) {
	cfg := Default()
	cfg.DefaultLLM = "local"
	if _, err := cfg.LLM(); err == nil {
		t.Fatalf("expected error for unknown default LLM")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.LLMs["anthropic"].APIKey = "sk-saved"
	cfg.Gateway.Tokens["tok-2"] = "local"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.LLMs["anthropic"].APIKey != "sk-saved" || got.Gateway.Tokens["tok-2"] != "local" {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("GAIL_CONFIG", "/etc/gail.toml")
	if got := Path(); got != "/etc/gail.toml" {
		t.Fatalf("Path = %q", got)
	}
}
