package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/domus-pm/domus/internal/access"
	"github.com/domus-pm/domus/internal/app"
	"github.com/domus-pm/domus/internal/directory"
	"github.com/domus-pm/domus/internal/documents"
	"github.com/domus-pm/domus/internal/observability"
	"github.com/domus-pm/domus/internal/platform/db"
	"github.com/domus-pm/domus/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	store := access.NewPGStore(pool)
	engine := access.NewEngine(store, logger, access.NewMetrics(metrics.Registerer()))
	cache := access.NewCache(engine, redisClient, cfg.AccessCacheTTL, logger)
	guard := access.Guard{Engine: engine, Resolver: cache, Logger: logger}

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	directoryRepo := directory.NewRepository(pool)
	directoryService := directory.NewService(directoryRepo, cache, jobsClient, logger)
	directoryHandler := directory.NewHandler(logger, directoryService, engine, cache, guard)

	objectStore, err := documents.NewS3Store(ctx, documents.S3Config{
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		PresignExpiry:   cfg.S3PresignExpiry,
	}, logger)
	if err != nil {
		logger.Error("init s3 store", slog.Any("error", err))
		os.Exit(1)
	}
	documentsRepo := documents.NewRepository(pool)
	documentsService := documents.NewService(documentsRepo, objectStore, logger)
	documentsHandler := documents.NewHandler(logger, documentsService, guard)

	accessHandler := access.NewHandler(logger, engine, cache, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		AccessHandler:    accessHandler,
		DirectoryHandler: directoryHandler,
		DocumentsHandler: documentsHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", slog.Any("error", err))
	}
}
