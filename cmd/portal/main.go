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

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/accounts"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/app"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/auth"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/observability"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/cache"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/db"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/roles"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
	"github.com/Brainless-Loco/bike-portfolio-admin/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	enqueuer := jobs.NewEnqueuer(asynqClient, logger)

	accountRepo := accounts.NewRepository(dbpool)
	roleRepo := roles.NewRepository(dbpool)

	compiler := rbac.NewCompiler(accountRepo, roleRepo, sessionManager, logger)
	grantManager := rbac.NewGrantManager(accountRepo, auditLogger, enqueuer, logger)

	metrics := observability.NewMetrics()
	guard := rbac.Middleware{Logger: logger, Recorder: metrics}

	accountService := accounts.NewService(accountRepo, auditLogger, enqueuer, logger)
	roleService := roles.NewService(roleRepo, accountRepo, auditLogger, enqueuer, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, compiler, sessionManager, csrfManager)

	accountsHandler := accounts.NewHandler(logger, accountService, grantManager, roleService, guard)
	rolesHandler := roles.NewHandler(logger, roleService, guard)
	authzHandler := rbac.NewAuthzHandler(metrics)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		AuthHandler:     authHandler,
		AccountsHandler: accountsHandler,
		RolesHandler:    rolesHandler,
		AuthzHandler:    authzHandler,
		Guard:           guard,
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
