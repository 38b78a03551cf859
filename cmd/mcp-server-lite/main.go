// Command mcp-server-lite serves the Health Keeper tools over MCP stdio.
// It needs no external databases: parse results are cached in memory and
// review decisions are kept in SQLite under the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/health-keeper-mcp-server/internal/config"
	"github.com/health-keeper-mcp-server/internal/mcp"
	"github.com/health-keeper-mcp-server/internal/setup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:          "mcp-server-lite",
		Short:        "Health Keeper MCP server (stdio, no external databases)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLiteConfig(envFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			server, err := mcp.NewLiteServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}
			defer server.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.Start(ctx); err != nil {
				return err
			}
			logrus.StandardLogger().WithField("data_dir", cfg.DataDir).Info("Health Keeper MCP Server (Lite) stopped")
			return nil
		},
	}
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the environment")

	rootCmd.AddCommand(setup.NewCommand(os.Stdin, os.Stdout))
	return rootCmd
}
