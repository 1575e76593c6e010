// Package main is the entrypoint for the MARA API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timothy-han/mara/internal/ai"
	"github.com/timothy-han/mara/internal/api"
	"github.com/timothy-han/mara/internal/api/handler"
	mw "github.com/timothy-han/mara/internal/api/middleware"
	"github.com/timothy-han/mara/internal/api/response"
	"github.com/timothy-han/mara/internal/auth"
	"github.com/timothy-han/mara/internal/cache"
	"github.com/timothy-han/mara/internal/config"
	"github.com/timothy-han/mara/internal/pipeline"
	"github.com/timothy-han/mara/internal/session"
	"github.com/timothy-han/mara/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "ai_provider", cfg.AI.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create AI provider
	model, err := ai.NewProvider(ctx, cfg.AI)
	if err != nil {
		return fmt.Errorf("create AI provider: %w", err)
	}
	slog.Info("AI provider initialized", "provider", model.Name())

	// 6. Create stores
	pgStore := store.NewPostgresStore(pool)
	sessions := session.NewRedisStore(redisCache, cfg.Pipeline.SessionTTL, cfg.Pipeline.ArtifactTTL)

	// 7. Wire the pipeline
	stages, err := pipeline.NewStages(model, cfg, logger)
	if err != nil {
		return fmt.Errorf("create pipeline stages: %w", err)
	}
	runner := pipeline.NewRunner(stages, sessions, cfg.Pipeline.Compaction, logger)
	runService := pipeline.NewService(runner, pgStore, redisCache, logger)

	// 8. Build router with dependencies
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	deps := api.Dependencies{
		Auth:           mw.NewAuth(issuer),
		RateLimit:      mw.NewRateLimit(redisCache),
		InternalSecret: mw.InternalSecret(cfg.Auth.InternalSecret),

		HealthHandler:     healthHandler(pgStore, redisCache),
		IssueTokenHandler: handler.NewIssueTokenHandler(issuer),

		ChatHandler:      handler.NewChatHandler(runner),
		FollowUpHandler:  handler.NewFollowUpHandler(runner),
		GetResultHandler: handler.NewGetResultHandler(sessions),

		TriggerRunHandler: handler.NewTriggerRunHandler(runService),
		GetRunHandler:     handler.NewGetRunHandler(runService),
		ListRunsHandler:   handler.NewListRunsHandler(runService),
	}

	router := api.NewRouter(deps)

	// 9. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// Chat streams hold the connection open for the whole pipeline run,
		// so there is no write deadline.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and cache connectivity.
func healthHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
