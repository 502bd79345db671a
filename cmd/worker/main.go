package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stagedoor-hq/stagedoor/internal/app"
	"github.com/stagedoor-hq/stagedoor/internal/authz"
	"github.com/stagedoor-hq/stagedoor/internal/platform/cache"
	"github.com/stagedoor-hq/stagedoor/internal/platform/db"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
	"github.com/stagedoor-hq/stagedoor/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authzStore := authz.NewPostgresStore(pool)
	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL, logger)
	resolver := authz.NewResolver(authz.NewCatalog(authzStore), authzCache, logger, nil)

	warmupJob := jobs.NewAuthzWarmupJob(resolver, authzStore, logger, nil)
	cleanupJob := jobs.NewAuditCleanupJob(shared.NewAuditLogger(pool), cfg.AuditRetention, logger, nil)

	warmupTask, err := jobs.NewAuthzWarmupTask(jobs.AuthzWarmupPayload{ActiveWithinHours: 24, Limit: 500})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewAuditCleanupTask(jobs.AuditCleanupPayload{})
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthzWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskAuditCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 2 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
