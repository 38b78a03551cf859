// Command server runs the Health Keeper HTTP API and its maintenance
// commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/health-keeper-mcp-server/internal/api"
	"github.com/health-keeper-mcp-server/internal/cache"
	"github.com/health-keeper-mcp-server/internal/config"
	"github.com/health-keeper-mcp-server/internal/database"
	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/reconcile"
	"github.com/health-keeper-mcp-server/internal/repository"
	"github.com/health-keeper-mcp-server/internal/review"
	"github.com/health-keeper-mcp-server/internal/service"
	"github.com/health-keeper-mcp-server/pkg/textsource"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "server",
		Short:         "Health Keeper clinical text and medication reconciliation server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file")

	load := func() (*config.Manager, error) {
		if configFile != "" {
			return config.NewManager(configFile)
		}
		return config.NewManager()
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(reconcileCmd())
	return rootCmd
}

type configLoader func() (*config.Manager, error)

func serveCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			configManager, err := load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := configManager.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, configManager.GetConfig())
		},
	}
}

func runServer(ctx context.Context, cfg *domain.Config) error {
	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.App.Environment,
	}).Info("Starting Health Keeper server")

	parseCache := newParseCache(ctx, cfg.Cache, logger)
	defer parseCache.Close()

	svcOpts := []service.Option{
		service.WithCache(parseCache),
		service.WithEngine(reconcile.NewEngine(reconcile.WithLookback(cfg.Reconcile.LookbackWindow()))),
		service.WithRecordLimit(cfg.Reconcile.RecordLimit),
	}
	var apiOpts []api.Option

	if cfg.TextSource.BaseURL != "" {
		client, err := textsource.NewClient(textsource.ConfigFromSettings(cfg.TextSource), logger)
		if err != nil {
			return fmt.Errorf("failed to create text source client: %w", err)
		}
		svcOpts = append(svcOpts, service.WithTextExtractor(client))
	}

	if cfg.Database.URL != "" {
		db, err := database.NewConnection(ctx, database.ConfigFromSettings(cfg.Database), logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		reviews, err := review.NewPostgresStoreFromURL(cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to open review store: %w", err)
		}
		defer reviews.Close()

		svcOpts = append(svcOpts, service.WithPatientRepository(repository.NewPatientRepository(db.Pool, logger)))
		apiOpts = append(apiOpts, api.WithDatabaseHealth(db), api.WithReviewStore(reviews))
	} else {
		logger.Warn("No database configured; patient and review endpoints are disabled")
	}

	svc := service.NewClinicalService(logger, svcOpts...)
	server := api.NewServer(cfg, svc, logger, apiOpts...)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// newParseCache builds an in-process cache, fronting Redis when a URL is
// configured. An unreachable Redis degrades to memory only.
func newParseCache(ctx context.Context, cfg domain.CacheConfig, logger *logrus.Logger) cache.Cache {
	memory := cache.NewMemory(cfg.MemorySize, cfg.DefaultTTL)
	if cfg.RedisURL == "" {
		return memory
	}

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	remote, err := cache.NewRedis(connectCtx, cfg.RedisURL, cfg.DefaultTTL)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, using in-memory cache only")
		return memory
	}
	return cache.NewTiered(memory, remote, logger)
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
