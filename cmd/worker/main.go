package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/domus-pm/domus/internal/access"
	"github.com/domus-pm/domus/internal/app"
	"github.com/domus-pm/domus/internal/directory"
	jobmetrics "github.com/domus-pm/domus/internal/jobs"
	"github.com/domus-pm/domus/internal/platform/db"
	"github.com/domus-pm/domus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	_ = godotenv.Load()

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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	store := access.NewPGStore(pool)
	engine := access.NewEngine(store, logger, access.NewMetrics(nil))
	cache := access.NewCache(engine, redisClient, cfg.AccessCacheTTL, logger)

	directoryRepo := directory.NewRepository(pool)
	refreshJob := jobs.NewRefreshJob(cache, directoryRepo, logger, jobmetrics.NewMetrics(nil))

	warmTask, err := jobs.NewAccessWarmTask("24 hours", 1000)
	if err != nil {
		logger.Error("build warm task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAccessRefresh, Handler: refreshJob.HandleRefresh},
			{Type: jobs.TaskAccessWarm, Handler: refreshJob.HandleWarm},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
