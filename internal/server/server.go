// Package server exposes the query engine over HTTP. It owns the adapter
// side of the query contract: translating requests into engine calls and
// engine outcomes into response payloads.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sixdegrees/bacond/internal/engine"
)

// Config holds HTTP server configuration.
type Config struct {
	Addr string // e.g. ":8000"
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{Addr: ":8000"}
}

// Server is the query HTTP server.
type Server struct {
	config *Config
	engine *engine.Engine
	log    *slog.Logger
	server *http.Server
	ready  atomic.Bool
}

// New creates the query server around an engine.
func New(config *Config, eng *engine.Engine, log *slog.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		config: config,
		engine: eng,
		log:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/bacon_distance", s.handleBaconDistance)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)

	handler := corsMiddleware(s.loggingMiddleware(mux))

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.ready.Store(eng.Ready())

	return s
}

// Handler exposes the configured handler chain, mainly for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// SetReady flips readiness; the watcher keeps it in sync with dataset loads.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// Start begins serving queries and blocks until Stop is called.
func (s *Server) Start() error {
	s.log.Info("starting query server", "addr", s.config.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("query server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("stopping query server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for the browser frontend.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}
