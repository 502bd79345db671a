package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stagedoor-hq/stagedoor/internal/app"
	"github.com/stagedoor-hq/stagedoor/internal/auth"
	"github.com/stagedoor-hq/stagedoor/internal/authz"
	"github.com/stagedoor-hq/stagedoor/internal/observability"
	"github.com/stagedoor-hq/stagedoor/internal/platform/cache"
	"github.com/stagedoor-hq/stagedoor/internal/platform/db"
	"github.com/stagedoor-hq/stagedoor/internal/roles"
	"github.com/stagedoor-hq/stagedoor/internal/shared"
	"github.com/stagedoor-hq/stagedoor/internal/tags"
	"github.com/stagedoor-hq/stagedoor/internal/users"
	"github.com/stagedoor-hq/stagedoor/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	authzStore := authz.NewPostgresStore(pool)
	authzCache := authz.NewCache(redisClient, cfg.AuthzCacheTTL, logger)
	resolver := authz.NewResolver(authz.NewCatalog(authzStore), authzCache, logger, metrics)
	owners := authz.DefaultOwnershipRegistry(authzStore)
	scopes := authz.NewScopeAuthorizer(resolver, owners, logger)
	authzMiddleware := authz.Middleware{Resolver: resolver, Scopes: scopes, Logger: logger}

	authRepo := auth.NewRepository(pool)
	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authService := auth.NewService(authRepo, tokenStore, logger)
	authHandler := auth.NewHandler(logger, authService)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo, resolver, auditLogger, logger)
	rolesHandler := roles.NewHandler(logger, rolesService)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, resolver, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService)

	tagsRepo := tags.NewRepository(pool)
	tagsGuard := tags.NewGuard(resolver, logger)
	tagsService := tags.NewService(tagsRepo, tagsGuard, resolver, auditLogger, logger)
	tagsHandler := tags.NewHandler(logger, tagsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AuthService:     authService,
		AuthHandler:     authHandler,
		AuthzMiddleware: authzMiddleware,
		RolesHandler:    rolesHandler,
		UsersHandler:    usersHandler,
		TagsHandler:     tagsHandler,
		JobsHandler:     jobsHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
