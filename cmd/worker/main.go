package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Brainless-Loco/bike-portfolio-admin/internal/accounts"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/app"
	jobmetrics "github.com/Brainless-Loco/bike-portfolio-admin/internal/jobs"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/cache"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/platform/db"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/rbac"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/roles"
	"github.com/Brainless-Loco/bike-portfolio-admin/internal/shared"
	"github.com/Brainless-Loco/bike-portfolio-admin/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	accountRepo := accounts.NewRepository(pool)
	roleRepo := roles.NewRepository(pool)
	compiler := rbac.NewCompiler(accountRepo, roleRepo, sessionManager, logger)
	metrics := jobmetrics.NewMetrics(nil)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionRefresh, Handler: jobs.NewSessionRefreshHandler(compiler, metrics, logger)},
			{Type: jobs.TaskSessionSweep, Handler: jobs.NewSessionSweepHandler(pool, metrics, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 3 * * *", Task: jobs.NewSessionSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
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
