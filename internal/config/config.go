package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	DefaultLLM   string                `toml:"default_llm"`
	LLMs         map[string]*LLMConfig `toml:"llm"`
	SystemPrompt string                `toml:"system_prompt,omitempty"`
	MaxTurns     int                   `toml:"max_turns,omitempty"`
	Gateway      GatewayConfig         `toml:"gateway"`
	DB           DBConfig              `toml:"db"`
	Services     ServicesConfig        `toml:"services"`
	Trace        TraceConfig           `toml:"trace"`
}

type LLMConfig struct {
	// Provider is "anthropic" or "openai". Empty uses the table name.
	Provider       string `toml:"provider,omitempty"`
	Model          string `toml:"model"`
	BaseURL        string `toml:"base_url,omitempty"`
	APIKey         string `toml:"api_key,omitempty"`
	MaxTokens      int64  `toml:"max_tokens,omitempty"`
	// ThinkingBudget is ignored: Anthropic rejects a tool-using turn whose
	// thinking blocks are not replayed, and gail never replays them.
	ThinkingBudget int64  `toml:"thinking_budget,omitempty"`
}

type GatewayConfig struct {
	Addr string `toml:"addr"`
	// Tokens maps bearer tokens to the principal they authenticate.
	Tokens map[string]string `toml:"tokens"`
	// KeepaliveSeconds is the idle interval between SSE comment frames.
	KeepaliveSeconds int `toml:"keepalive_seconds,omitempty"`
}

type DBConfig struct {
	Path string `toml:"path"`
}

type ServicesConfig struct {
	Brave BraveConfig `toml:"brave"`
}

type BraveConfig struct {
	APIKey string `toml:"api_key,omitempty"`
}

type TraceConfig struct {
	Enabled     bool    `toml:"enabled"`
	Endpoint    string  `toml:"endpoint,omitempty"`
	URLPath     string  `toml:"url_path,omitempty"`
	APIKey      string  `toml:"api_key,omitempty"`
	Insecure    bool    `toml:"insecure,omitempty"`
	SampleRatio float64 `toml:"sample_ratio,omitempty"`
}

var envKeys = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

func Default() *Config {
	return &Config{
		DefaultLLM: "anthropic",
		LLMs: map[string]*LLMConfig{
			"anthropic": {
				Provider:  "anthropic",
				Model:     "claude-sonnet-4-20250514",
				MaxTokens: 8192,
			},
		},
		Gateway: GatewayConfig{
			Addr:   ":8484",
			Tokens: map[string]string{},
		},
		DB: DBConfig{
			Path: defaultDBPath(),
		},
	}
}

func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads path over the defaults. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	for name, l := range cfg.LLMs {
		if l.Provider == "" {
			l.Provider = name
		}
		if l.APIKey == "" {
			if env, ok := envKeys[l.Provider]; ok {
				l.APIKey = os.Getenv(env)
			}
		}
	}
	if cfg.Services.Brave.APIKey == "" {
		cfg.Services.Brave.APIKey = os.Getenv("BRAVE_API_KEY")
	}

	return cfg, nil
}

// LLM returns the default LLM configuration.
func (c *Config) LLM() (*LLMConfig, error) {
	l, ok := c.LLMs[c.DefaultLLM]
	if !ok {
		return nil, fmt.Errorf("default LLM %q not found in config", c.DefaultLLM)
	}
	return l, nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

func Path() string {
	if p := os.Getenv("GAIL_CONFIG"); p != "" {
		return p
	}
	dir, _ := os.UserConfigDir()
	return filepath.Join(dir, "gail", "config.toml")
}

func defaultDBPath() string {
	dir, _ := os.UserHomeDir()
	return filepath.Join(dir, ".local", "share", "gail", "gail.db")
}
