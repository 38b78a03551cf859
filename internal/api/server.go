// Package api exposes the clinical service over HTTP with gin.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/middleware"
	"github.com/health-keeper-mcp-server/internal/review"
	"github.com/health-keeper-mcp-server/internal/service"
)

// HealthChecker reports the health of a backing dependency
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	config   *domain.Config
	service  *service.ClinicalService
	reviews  review.Store
	database HealthChecker
	logger   *logrus.Logger
	router   *gin.Engine
	server   *http.Server
	clock    func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithReviewStore enables the review endpoints
func WithReviewStore(store review.Store) Option {
	return func(s *Server) {
		s.reviews = store
	}
}

// WithDatabaseHealth includes database status in /health
func WithDatabaseHealth(db HealthChecker) Option {
	return func(s *Server) {
		s.database = db
	}
}

// WithClock overrides the clock used when a request omits its evaluation time
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.clock = now
	}
}

// NewServer creates a new HTTP server instance
func NewServer(config *domain.Config, svc *service.ClinicalService, logger *logrus.Logger, opts ...Option) *Server {
	if config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(config.CORS.AllowedOrigins))
	router.Use(middleware.AuditLogger(logger))
	router.Use(middleware.Metrics())

	s := &Server{
		config:  config,
		service: svc,
		logger:  logger,
		router:  router,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	cfg := s.config.Server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := middleware.NewRateLimiter(s.config.Server.RateLimit, s.config.Server.RateBurst)

	v1 := s.router.Group(s.config.App.APIPrefix)
	v1.Use(limiter.Middleware(), middleware.RequestTimeout(s.config.Server.RequestTimeout))
	{
		v1.POST("/parse", s.handleParse)
		v1.POST("/overview", s.handleOverview)
		v1.POST("/reconcile", s.handleReconcile)
		v1.POST("/interactions", s.handleInteractions)
		v1.POST("/documents/text", s.handleDocumentText)
		v1.GET("/patients/:id/reconcile", s.handlePatientReconcile)

		reviews := v1.Group("/reviews")
		reviews.POST("", s.handleSaveReview)
		reviews.GET("", s.handleListReviews)
		reviews.GET("/pending", s.handlePendingReviews)
		reviews.GET("/:id", s.handleGetReview)
		reviews.DELETE("/:id", s.handleDeleteReview)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"service":   s.config.App.Name,
		"version":   s.config.App.Version,
		"timestamp": time.Now().UTC(),
	}
	status := http.StatusOK

	if s.database != nil {
		if err := s.database.Health(c.Request.Context()); err != nil {
			s.logger.WithError(err).Warn("Database health check failed")
			body["status"] = "degraded"
			body["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}

	c.JSON(status, body)
}
