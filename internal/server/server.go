package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustJay7/court-case-aggregator/internal/api"
	"github.com/JustJay7/court-case-aggregator/internal/cache"
	"github.com/JustJay7/court-case-aggregator/internal/config"
	"github.com/JustJay7/court-case-aggregator/internal/database"
	"github.com/JustJay7/court-case-aggregator/internal/metrics"
	"github.com/JustJay7/court-case-aggregator/internal/pipeline"
	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP layer serves.
type Deps struct {
	Pipeline *pipeline.Service
	Cache    *cache.CaseCache
	Queries  *database.QueryLogs
	Metrics  *metrics.Metrics
	// Closers are released on shutdown, in order.
	Closers []io.Closer
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	logger *logger.Logger
	router *gin.Engine
}

func New(cfg *config.Config, deps Deps, logger *logger.Logger) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())
	router.Use(rateLimitMiddleware(newClientLimiter(cfg.APIRateLimit, cfg.APIRateWindow)))

	api.SetupRoutes(router, deps.Pipeline, deps.Cache, deps.Queries, deps.Metrics, logger)

	return &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
		router: router,
	}
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// CAPTCHA-gated lookups can take many round trips.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.Info("Server started", "address", srv.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
	}

	for _, c := range s.deps.Closers {
		if cerr := c.Close(); cerr != nil {
			s.logger.Error("Failed to release resource", "error", cerr)
		}
	}

	if err != nil {
		return err
	}
	s.logger.Info("Server exited gracefully")
	return nil
}
