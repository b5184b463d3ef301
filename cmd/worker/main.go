package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/parkyard/parkyard/internal/app"
	"github.com/parkyard/parkyard/internal/cashsession"
	jobmetrics "github.com/parkyard/parkyard/internal/jobs"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/observability"
	"github.com/parkyard/parkyard/internal/platform/cache"
	"github.com/parkyard/parkyard/internal/platform/db"
	"github.com/parkyard/parkyard/internal/shared"
	"github.com/parkyard/parkyard/jobs"
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

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	sessionService := cashsession.NewService(cashsession.Deps{
		Repo:   cashsession.NewRepository(pool),
		Tx:     db.NewTransactor(pool),
		Logger: logger,
	})
	ledgerService := ledger.NewService(
		ledger.NewRepository(pool),
		sessionService,
		db.NewTransactor(pool),
		ledger.NewCache(redisClient, cfg.LedgerCacheTTL),
		metrics,
		logger,
	)

	staleScan := jobs.NewStaleSessionScanJob(sessionService, cfg.StaleSessionAfter, logger, jobMetrics)
	cleanup := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), cfg.IdempotencyRetention, logger, jobMetrics)
	warmup := jobs.NewLedgerWarmupJob(ledgerService, logger, jobMetrics)

	cron, err := jobs.DefaultCron()
	if err != nil {
		logger.Error("build cron schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStaleSessionScan, Handler: staleScan.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanup.Handle},
			{Type: jobs.TaskLedgerWarmup, Handler: warmup.Handle},
		},
		Cron: cron,
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
