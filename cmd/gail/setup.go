package main

import (
	"errors"
	"fmt"
	"os"

	"gail/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var setupOpts struct {
	force     bool
	provider  string
	model     string
	apiKey    string
	principal string
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a gail configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		if _, err := os.Stat(path); err == nil && !setupOpts.force {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		cfg := config.Default()
		if setupOpts.provider != "" {
			cfg.DefaultLLM = setupOpts.provider
			cfg.LLMs = map[string]*config.LLMConfig{
				setupOpts.provider: {Provider: setupOpts.provider, Model: setupOpts.model},
			}
		}
		l, err := cfg.LLM()
		if err != nil {
			return err
		}
		if setupOpts.model != "" {
			l.Model = setupOpts.model
		}
		if l.Model == "" {
			return errors.New("--model is required for this provider")
		}
		l.APIKey = setupOpts.apiKey

		token := uuid.NewString()
		cfg.Gateway.Tokens = map[string]string{token: setupOpts.principal}

		if err := config.Save(path, cfg); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "wrote %s\n", path)
		fmt.Fprintf(out, "gateway token for principal %q: %s\n", setupOpts.principal, token)
		return nil
	},
}

func init() {
	f := setupCmd.Flags()
	f.BoolVar(&setupOpts.force, "force", false, "overwrite an existing config file")
	f.StringVar(&setupOpts.provider, "provider", "", "LLM provider: anthropic or openai (default anthropic)")
	f.StringVar(&setupOpts.model, "model", "", "model name")
	f.StringVar(&setupOpts.apiKey, "api-key", "", "provider API key; the environment is used when empty")
	f.StringVar(&setupOpts.principal, "principal", "local", "principal for the generated gateway token")
}
