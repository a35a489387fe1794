// Package server exposes the reading pipeline over HTTP: synchronous and
// streaming reading endpoints, health, metrics, and the administrative
// settings-reload hook.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arcanum-labs/arcanum/pkg/config"
	"github.com/arcanum-labs/arcanum/pkg/orchestrator"
	"github.com/arcanum-labs/arcanum/pkg/rag"
	"github.com/arcanum-labs/arcanum/pkg/reading"
	"github.com/arcanum-labs/arcanum/pkg/store"
	"github.com/arcanum-labs/arcanum/pkg/streaming"
)

// Server wires the pipeline behind the HTTP surface.
type Server struct {
	cfg       *config.ServerConfig
	orchSvc   *orchestrator.Service
	engine    *reading.Engine
	parallel  *reading.ParallelEngine
	streamer  *streaming.Streamer
	retriever *rag.Retriever
	persister *store.Persister
	cache     *orchestrator.ResponseCache

	httpServer *http.Server
}

// New assembles the server and its router.
func New(cfg *config.ServerConfig, orchSvc *orchestrator.Service, engine *reading.Engine, parallel *reading.ParallelEngine, streamer *streaming.Streamer, retriever *rag.Retriever, persister *store.Persister, cache *orchestrator.ResponseCache) *Server {
	s := &Server{
		cfg:       cfg,
		orchSvc:   orchSvc,
		engine:    engine,
		parallel:  parallel,
		streamer:  streamer,
		retriever: retriever,
		persister: persister,
		cache:     cache,
	}
	s.httpServer = &http.Server{
		Addr:    cfg.Address(),
		Handler: s.router(),
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/readings", s.handleCreateReading)
		r.Post("/readings/stream", s.handleStreamReading)
		r.Post("/admin/settings/reload", s.handleSettingsReload)
	})
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains connections and waits for in-flight background
// persistence.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.persister.Wait()
	return err
}
