// Package server owns the HTTP surface of the gateway: the router, the fixed
// middleware chain, CORS negotiation, rate-limit and authorization
// middleware, and the single error-normalizing response writer.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/domain"
)

// Server wraps the chi router and the http.Server lifecycle.
type Server struct {
	Router *chi.Mux
	Port   int

	logger *slog.Logger
	srv    *http.Server
}

// New builds the router with the fixed middleware order every route runs
// under: request ID, logging, CORS (preflight short-circuits here), panic
// recovery, tracing, timeout. Route-specific authorization and rate limiting
// are applied per route group.
func New(port int, requestTimeout time.Duration, logger *slog.Logger, cors *CORS, recorder *audit.Recorder) *Server {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Middleware)
	r.Use(RecoveryMiddleware(logger, recorder))

	// Wrap with OpenTelemetry HTTP instrumentation
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "pulse-gateway")
	})

	r.Use(TimeoutMiddleware(requestTimeout))

	// Unmatched paths and methods still answer with the normalized JSON shape
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, domain.ErrNotFound("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, domain.ErrValidation("method not allowed").WithStatusCode(http.StatusMethodNotAllowed))
	})

	return &Server{
		Router: r,
		Port:   port,
		logger: logger,
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		},
	}
}

// Start blocks serving HTTP until Shutdown or failure.
func (s *Server) Start() error {
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
