// Package gateway composes the HTTP routes: authentication endpoints, the
// proxied admin surface, and the job status flow. Each route runs the same
// fixed chain of CORS, authorization, rate limiting, validation, forwarding,
// and error normalization.
package gateway

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/auth"
	"github.com/pulselabs/pulse-gateway/internal/jobs"
	"github.com/pulselabs/pulse-gateway/internal/proxy"
	"github.com/pulselabs/pulse-gateway/internal/ratelimit"
	"github.com/pulselabs/pulse-gateway/internal/server"
	"github.com/pulselabs/pulse-gateway/internal/session"
)

// Gateway holds the collaborators the route handlers depend on.
type Gateway struct {
	logger    *slog.Logger
	verifier  *auth.Verifier
	sessions  session.Store
	gate      *auth.Gate
	forwarder *proxy.Forwarder
	jobStore  jobs.Store
	recorder  *audit.Recorder
	limiter   ratelimit.Limiter
	policies  *ratelimit.Policies

	// stageDelay paces the download job runner between lifecycle stages.
	stageDelay time.Duration
}

// Options carries the wiring for New.
type Options struct {
	Logger    *slog.Logger
	Verifier  *auth.Verifier
	Sessions  session.Store
	Forwarder *proxy.Forwarder
	JobStore  jobs.Store
	Recorder  *audit.Recorder
	Limiter   ratelimit.Limiter
	Policies  *ratelimit.Policies

	// StageDelay overrides the pacing of the download job runner. Zero
	// means the default.
	StageDelay time.Duration
}

// New creates the gateway.
func New(opts Options) *Gateway {
	delay := opts.StageDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &Gateway{
		logger:     opts.Logger,
		verifier:   opts.Verifier,
		sessions:   opts.Sessions,
		gate:       auth.NewGate(opts.Sessions),
		forwarder:  opts.Forwarder,
		jobStore:   opts.JobStore,
		recorder:   opts.Recorder,
		limiter:    opts.Limiter,
		policies:   opts.Policies,
		stageDelay: delay,
	}
}

// Routes mounts every endpoint on r. Policy names are resolved here, so a
// route referencing an unknown policy fails at startup rather than per
// request.
func (g *Gateway) Routes(r chi.Router) error {
	defaultPolicy, err := g.policies.Get("default")
	if err != nil {
		return fmt.Errorf("mount routes: %w", err)
	}
	strictPolicy, err := g.policies.Get("strict")
	if err != nil {
		return fmt.Errorf("mount routes: %w", err)
	}

	r.Get("/health", g.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(server.RateLimit(g.limiter, defaultPolicy, g.recorder, g.logger))

			r.Post("/login", g.handleLogin)
			r.Post("/logout", g.handleLogout)
			r.Get("/me", g.handleMe)

			r.Get("/readiness", g.proxy)
			r.Get("/avatar_token", g.proxy)
		})

		// Authorization runs before rate limiting so admins are bucketed by
		// user, not by shared IP.
		r.Route("/jobs", func(r chi.Router) {
			r.Use(server.RequireAdmin(g.gate, g.recorder))
			r.Use(server.RateLimit(g.limiter, defaultPolicy, g.recorder, g.logger))
			r.Post("/models/download", g.handleModelDownload)
			r.Get("/{id}", g.handleJobStatus)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(server.RequireAdmin(g.gate, g.recorder))
			r.Use(server.RateLimit(g.limiter, strictPolicy, g.recorder, g.logger))

			r.Get("/overview", g.proxy)

			r.Route("/prompts", func(r chi.Router) {
				r.Get("/", g.proxy)
				r.Post("/", g.proxy)

				r.Route("/{id}", func(r chi.Router) {
					r.Use(requireParam("id"))
					r.Get("/", g.proxy)
					r.Put("/", g.proxy)
					r.Delete("/", g.proxy)

					r.Route("/versions", func(r chi.Router) {
						r.Get("/", g.proxy)
						r.Post("/", g.proxy)

						r.Route("/{version}", func(r chi.Router) {
							r.Use(requireParam("version"))
							r.Get("/", g.proxy)
							r.Post("/", g.proxy)
						})
					})
				})
			})
		})
	})

	return nil
}
