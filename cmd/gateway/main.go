package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/pulselabs/pulse-gateway/internal/audit"
	"github.com/pulselabs/pulse-gateway/internal/auth"
	"github.com/pulselabs/pulse-gateway/internal/config"
	"github.com/pulselabs/pulse-gateway/internal/gateway"
	"github.com/pulselabs/pulse-gateway/internal/jobs"
	"github.com/pulselabs/pulse-gateway/internal/proxy"
	"github.com/pulselabs/pulse-gateway/internal/ratelimit"
	"github.com/pulselabs/pulse-gateway/internal/server"
	"github.com/pulselabs/pulse-gateway/internal/session"
	"github.com/pulselabs/pulse-gateway/internal/telemetry"
)

const (
	janitorInterval = time.Minute
	jobRetention    = 15 * time.Minute
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.Init("pulse-gateway", logger)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	policies := make([]ratelimit.Policy, 0, len(cfg.RateLimit.Policies))
	for _, p := range cfg.RateLimit.Policies {
		policies = append(policies, ratelimit.Policy{
			Name:        p.Name,
			Window:      p.Window,
			MaxRequests: p.MaxRequests,
		})
	}

	janitorCtx, stopJanitors := context.WithCancel(context.Background())
	defer stopJanitors()

	var (
		limiter  ratelimit.Limiter
		jobStore jobs.Store
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		redisLimiter, err := ratelimit.NewRedisLimiter(client)
		if err != nil {
			logger.Error("failed to initialize redis rate limiter", "error", err)
			os.Exit(1)
		}
		limiter = redisLimiter

		redisJobs, err := jobs.NewRedisStore(client, jobRetention)
		if err != nil {
			logger.Error("failed to initialize redis job store", "error", err)
			os.Exit(1)
		}
		jobStore = redisJobs

		logger.Info("using redis state", "addr", cfg.Redis.Addr)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter()
		memLimiter.StartJanitor(janitorCtx, janitorInterval)
		limiter = memLimiter

		memJobs := jobs.NewMemoryStore(jobRetention)
		memJobs.StartJanitor(janitorCtx, janitorInterval)
		jobStore = memJobs

		logger.Info("using in-memory state; run one instance or configure redis")
	}

	auditStore, err := audit.NewSQLiteStore(cfg.Audit.DBPath)
	if err != nil {
		logger.Error("failed to open audit store", "path", cfg.Audit.DBPath, "error", err)
		os.Exit(1)
	}
	recorder := audit.NewRecorder(auditStore, logger, 256)

	gw := gateway.New(gateway.Options{
		Logger:    logger,
		Verifier:  auth.NewVerifier(cfg.Auth.AdminKeyHash),
		Sessions:  session.NewCookieStore(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		Forwarder: proxy.New(cfg.Upstream.BaseURL, cfg.Upstream.SharedSecret, cfg.Upstream.Timeout),
		JobStore:  jobStore,
		Recorder:  recorder,
		Limiter:   limiter,
		Policies:  ratelimit.NewPolicies(policies),
	})

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, logger,
		server.NewCORS(cfg.CORS.AllowedOrigins), recorder)
	if err := gw.Routes(srv.Router); err != nil {
		logger.Error("failed to mount routes", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		logger.Error("audit drain failed", "error", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("tracer shutdown failed", "error", err)
	}
}
