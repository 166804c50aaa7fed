package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/miniagent/agent-platform/internal/api"
	"github.com/miniagent/agent-platform/internal/config"
	"github.com/miniagent/agent-platform/internal/llm"
	"github.com/miniagent/agent-platform/internal/metrics"
	"github.com/miniagent/agent-platform/internal/ratelimit"
	"github.com/miniagent/agent-platform/internal/service"
	"github.com/miniagent/agent-platform/internal/store"
	"github.com/miniagent/agent-platform/internal/tenant"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	db, err := store.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		logger.Error("failed to ensure schema", "err", err)
		os.Exit(1)
	}

	// Counters live in Redis so every instance observes the same windows;
	// the in-process limiter is only for single-instance runs.
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisLimiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to initialize rate limiter", "err", err)
			os.Exit(1)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	} else {
		logger.Warn("REDIS_URL not set, using in-process rate limiter")
		limiter = ratelimit.NewMemoryLimiter()
	}

	registry := tenant.NewRegistry(cfg.Tenants)
	m := metrics.New()
	svc := service.New(db, db, limiter, llm.Mock{}, logger, m)
	router := api.NewHandler(svc, registry, logger, m).Router()

	logger.Info("server starting", "port", cfg.ServerPort, "tenants", len(cfg.Tenants))
	if err := http.ListenAndServe(":"+cfg.ServerPort, router); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
