// Package server exposes the recommendation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/programme-advisor/internal/advisor"
	"github.com/spigell/programme-advisor/internal/contract"
)

const (
	defaultListen         = ":8080"
	defaultMaxUploadBytes = 10 << 20
	maxJSONBytes          = 1 << 20
	shutdownTimeout       = 30 * time.Second
)

// Pipeline is the façade served over HTTP.
type Pipeline interface {
	RunExtraction(ctx context.Context, in advisor.Input) (contract.Profile, error)
	RunRecommendation(ctx context.Context, in advisor.RecommendationInput) (contract.RecommendationSet, error)
}

// Catalogue lists the current programme snapshot.
type Catalogue interface {
	Snapshot(ctx context.Context) (contract.Catalogue, error)
}

// Config holds server configuration.
type Config struct {
	Listen         string
	MaxUploadBytes int64
}

// Deps are the collaborators behind the routes. Sink and Gatherer are optional.
type Deps struct {
	Pipeline  Pipeline
	Catalogue Catalogue
	Sink      advisor.SubmissionSink
	Gatherer  prometheus.Gatherer
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	deps       Deps
	validator  *validator.Validate
	maxUpload  int64
	logger     *zap.Logger
}

// New creates a new server instance.
func New(cfg Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Listen == "" {
		cfg.Listen = defaultListen
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		deps:      deps,
		validator: validator.New(),
		maxUpload: cfg.MaxUploadBytes,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("POST /recommend", s.handleRecommend)
	mux.HandleFunc("GET /programmes", s.handleProgrammes)
	mux.HandleFunc("GET /health", s.handleHealth)
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.withLogging(s.withCORS(mux)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("listen", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
