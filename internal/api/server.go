// Package api provides the HTTP front end for the question answering service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/JPisOP007/jeevo/internal/log"
	"github.com/JPisOP007/jeevo/internal/rag"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server is the HTTP server for the answer API.
type Server struct {
	mux     *http.ServeMux
	logger  log.Logger
	rag     *rag.Service
	limiter *rate.Limiter
}

// ServerConfig contains configuration for creating an API server.
type ServerConfig struct {
	Logger         log.Logger   // Optional: nil disables request logging
	RAG            *rag.Service // Required: answer pipeline
	RateLimitRPS   int          // Requests per second allowed for the API routes
	RateLimitBurst int          // Burst capacity on top of the sustained rate
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.RAG == nil {
		return nil, errors.New("RAG service is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst < cfg.RateLimitRPS {
		cfg.RateLimitBurst = cfg.RateLimitRPS
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  cfg.Logger,
		rag:     cfg.RAG,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}

	// Health check has no middleware, probes must not burn rate budget.
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/query", s.handleQuery)
	s.mux.HandleFunc("POST /api/validate", s.handleValidate)

	return s, nil
}

// ServeHTTP implements http.Handler with the middleware stack.
// Order: Recovery catches panics from every layer below, RequestID tags the
// request before Logging records it, RateLimit guards the handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/healthz" {
		s.mux.ServeHTTP(w, r)
		return
	}

	var handler http.Handler = s.mux
	handler = RateLimit(s.limiter)(handler)
	handler = Logging(s.logger)(handler)
	handler = RequestID(handler)
	handler = Recovery(s.logger)(handler)
	handler.ServeHTTP(w, r)
}

// Run serves the API on addr until ctx is canceled, then shuts down
// gracefully, letting in-flight requests finish.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return <-errCh
}
