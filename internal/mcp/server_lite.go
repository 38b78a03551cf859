// Package mcp provides the MCP server that exposes visit-note parsing,
// medication reconciliation and review tracking as tools over stdio.
// It requires no external databases: parse results are cached in memory and
// review decisions live in a local SQLite file.
package mcp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/health-keeper-mcp-server/internal/cache"
	litecfg "github.com/health-keeper-mcp-server/internal/config"
	"github.com/health-keeper-mcp-server/internal/reconcile"
	"github.com/health-keeper-mcp-server/internal/review"
	"github.com/health-keeper-mcp-server/internal/service"
	"github.com/health-keeper-mcp-server/pkg/textsource"
)

const (
	serverName    = "health-keeper-mcp-server-lite"
	serverVersion = "v0.1.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
type LiteServer struct {
	config      *litecfg.LiteConfig
	mcpServer   *mcp.Server
	service     *service.ClinicalService
	reviewStore review.Store
	cache       *cache.Memory
	logger      *logrus.Logger
	clock       func() time.Time
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithReviewStore sets a custom review store.
func WithReviewStore(store review.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.reviewStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithClock overrides the clock used when a tool call omits "now".
func WithClock(now func() time.Time) LiteServerOption {
	return func(s *LiteServer) error {
		if now == nil {
			return fmt.Errorf("clock must not be nil")
		}
		s.clock = now
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
		clock:  time.Now,
	}

	// stdout carries the protocol; logs must stay on stderr
	server.logger.SetOutput(os.Stderr)
	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.cache = cache.NewMemory(cfg.CacheMaxItems, cfg.CacheTTL)

	if server.reviewStore == nil {
		store, err := review.NewSQLiteStore(cfg.ReviewDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create review store: %w", err)
		}
		server.reviewStore = store
	}

	svcOpts := []service.Option{
		service.WithCache(server.cache),
		service.WithClock(server.clock),
		service.WithEngine(reconcile.NewEngine(reconcile.WithLookback(cfg.LookbackWindow()))),
	}
	if cfg.TextSourceURL != "" {
		client, err := textsource.NewClient(textsource.Config{
			BaseURL: cfg.TextSourceURL,
			APIKey:  cfg.TextSourceAPIKey,
		}, server.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create text source client: %w", err)
		}
		svcOpts = append(svcOpts, service.WithTextExtractor(client))
	}
	server.service = service.NewClinicalService(server.logger, svcOpts...)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()

	server.logger.WithFields(logrus.Fields{
		"data_dir":      cfg.DataDir,
		"lookback_days": cfg.LookbackDays,
		"text_source":   cfg.TextSourceURL != "",
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start runs the MCP session over stdio until ctx is cancelled or the client
// disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting Health Keeper MCP Server (Lite)...")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.reviewStore != nil {
		if err := s.reviewStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close review store")
			return err
		}
	}
	return nil
}

// ReviewStore returns the review store.
func (s *LiteServer) ReviewStore() review.Store {
	return s.reviewStore
}

// Cache returns the parse cache.
func (s *LiteServer) Cache() *cache.Memory {
	return s.cache
}
