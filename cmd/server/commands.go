package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/health-keeper-mcp-server/internal/database"
	"github.com/health-keeper-mcp-server/internal/service"
)

func migrateCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the patient database schema",
	}

	withRunner := func(fn func(cmd *cobra.Command, runner *database.MigrationRunner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			configManager, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg := configManager.GetConfig()
			logger := newLogger(cfg.Logging)

			runner, err := database.NewMigrationRunner(cfg.Database.URL, cfg.Database.MigrationsPath, logger)
			if err != nil {
				return err
			}
			defer runner.Close()
			return fn(cmd, runner)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withRunner(func(cmd *cobra.Command, runner *database.MigrationRunner) error {
			return runner.Up(cmd.Context())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withRunner(func(cmd *cobra.Command, runner *database.MigrationRunner) error {
			return runner.Down(cmd.Context())
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: withRunner(func(cmd *cobra.Command, runner *database.MigrationRunner) error {
			status, err := runner.Status()
			if err != nil {
				return err
			}
			if !status.Applied {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", status.Version, status.Dirty)
			return nil
		}),
	})
	return cmd
}

func parseCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse a visit note and print the structured data as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}

			svc := service.NewClinicalService(quietLogger())
			result, err := svc.ParseNote(cmd.Context(), string(text))
			if err != nil {
				return err
			}
			for _, fragment := range result.Report.DroppedFragments {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not read prescription line %q\n", fragment)
			}
			return writeJSON(cmd.OutOrStdout(), result.Data)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "note file to parse, or - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func reconcileCmd() *cobra.Command {
	var input, now string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile medications from a JSON request and print the result",
		Long: `Reads {"current": [...], "records": [...], "history": [...], "now": "..."}
and prints the reconciliation with its summary and interaction report.
--now overrides the request; without either the current time is used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			var params service.ReconcileParams
			if err := json.Unmarshal(raw, &params); err != nil {
				return fmt.Errorf("invalid reconcile request: %w", err)
			}
			if now != "" {
				params.Now, err = time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now must be RFC 3339: %w", err)
				}
			}
			if params.Now.IsZero() {
				params.Now = time.Now()
			}

			svc := service.NewClinicalService(quietLogger())
			result, err := svc.Reconcile(cmd.Context(), &params)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "request file, or - for stdin")
	cmd.Flags().StringVar(&now, "now", "", "evaluation time in RFC 3339")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}
