package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"gail/internal/agent"
	"gail/internal/config"
	"gail/internal/gateway"

	"github.com/spf13/cobra"
)

var gatewayAddr string

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the chat gateway server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if gatewayAddr != "" {
			cfg.Gateway.Addr = gatewayAddr
		}
		if len(cfg.Gateway.Tokens) == 0 {
			slog.Warn("no gateway tokens configured, every request will be rejected")
		}

		rt, err := openRuntime(ctx, cfg)
		if err != nil {
			return err
		}
		defer rt.Close(context.WithoutCancel(ctx))

		var runner agent.Runner
		if rt.runner != nil {
			runner = rt.runner
		}

		srv := gateway.NewServer(runner, cfg.Gateway.Tokens,
			gateway.WithConversations(rt.history),
			gateway.WithCertificates(rt.certificates),
			gateway.WithKeepalive(time.Duration(cfg.Gateway.KeepaliveSeconds)*time.Second),
		)
		slog.Info("starting gateway", "addr", cfg.Gateway.Addr, "tokens", len(cfg.Gateway.Tokens))
		return srv.ListenAndServe(ctx, cfg.Gateway.Addr)
	},
}

func init() {
	gatewayCmd.Flags().StringVarP(&gatewayAddr, "addr", "a", "", "override gateway listen address")
}
