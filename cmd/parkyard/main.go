package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/parkyard/parkyard/cmd/parkyard/cli"
	"github.com/parkyard/parkyard/internal/app"
	"github.com/parkyard/parkyard/internal/auth"
	"github.com/parkyard/parkyard/internal/billing"
	"github.com/parkyard/parkyard/internal/cashsession"
	"github.com/parkyard/parkyard/internal/gateway"
	"github.com/parkyard/parkyard/internal/ledger"
	"github.com/parkyard/parkyard/internal/observability"
	"github.com/parkyard/parkyard/internal/platform/cache"
	"github.com/parkyard/parkyard/internal/platform/db"
	"github.com/parkyard/parkyard/internal/products"
	"github.com/parkyard/parkyard/internal/shared"
	"github.com/parkyard/parkyard/internal/vehicles"
	"github.com/parkyard/parkyard/jobs"
	"github.com/parkyard/parkyard/migrations"
	"github.com/parkyard/parkyard/report"
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

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "jobs":
			code := runJobs(ctx, cfg, os.Args[2:])
			stop()
			os.Exit(code)
		case "session":
			code := runSession(ctx, cfg, logger, os.Args[2:])
			stop()
			os.Exit(code)
		}
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		ran, err := db.Migrate(ctx, db.NewTransactor(dbpool), dbpool, migrations.Files)
		if err != nil {
			logger.Error("migrate", slog.Any("error", err))
			dbpool.Close()
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Int("count", len(ran)), slog.Any("versions", ran))
		return
	}

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
	tx := db.NewTransactor(dbpool)
	tokens := shared.NewTokenStore(redisClient, "parkyard_token", cfg.TokenSecret, cfg.TokenTTL)
	locker := shared.NewLocker(redisClient, 30*time.Second)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	authService := auth.NewService(auth.NewRepository(dbpool), tokens, logger)
	authHandler := auth.NewHandler(logger, authService)

	billingService := billing.NewService(billing.NewRepository(dbpool), tx, logger)

	sessionService := cashsession.NewService(cashsession.Deps{
		Repo:    cashsession.NewRepository(dbpool),
		Tx:      tx,
		Locker:  locker,
		Audit:   auditLogger,
		Metrics: metrics,
		Logger:  logger,
	})

	ledgerCache := ledger.NewCache(redisClient, cfg.LedgerCacheTTL)
	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), sessionService, tx, ledgerCache, metrics, logger)

	vehicleService := vehicles.NewService(vehicles.Deps{
		Repo:        vehicles.NewRepository(dbpool),
		Methods:     billingService,
		Sessions:    sessionService,
		Ledger:      ledgerService,
		Idempotency: idempotencyStore,
		Tx:          tx,
		Metrics:     metrics,
		Logger:      logger,
	})
	sessionService.Attach(vehicleService, ledgerService)

	productService := products.NewService(products.Deps{
		Repo:         products.NewRepository(dbpool),
		Sessions:     sessionService,
		Ledger:       ledgerService,
		Reservations: products.NewReservationCache(cfg.ReservationCapacity, cfg.ReservationTTL),
		Tx:           tx,
		Logger:       logger,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	sessionService.OnClose(func(ctx context.Context, s cashsession.Session) {
		if _, err := jobsClient.EnqueueLedgerWarmup(ctx, s.ID); err != nil {
			logger.Warn("enqueue ledger warmup", slog.Int64("session_id", s.ID), slog.Any("error", err))
		}
	})

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	reportBuilder := report.NewBuilder(sessionService, ledgerService)
	reportHandler := report.NewHandler(reportBuilder, report.NewClient(cfg.GotenbergURL), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		Resolver:           authService,
		AuthHandler:        authHandler,
		BillingHandler:     billing.NewHandler(logger, billingService),
		VehiclesHandler:    vehicles.NewHandler(logger, vehicleService),
		CashSessionHandler: cashsession.NewHandler(logger, sessionService),
		LedgerHandler:      ledger.NewHandler(logger, ledgerService),
		ProductsHandler:    products.NewHandler(logger, productService),
		ReportHandler:      reportHandler,
		JobHandler:         jobs.NewHandler(inspector, logger),
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

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()
	return cli.RunJobs(ctx, jobsCLI, args, os.Stdout, os.Stderr)
}

func runSession(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if cfg.APIToken == "" {
		fmt.Fprintln(os.Stderr, "session: API_TOKEN must be set (POST /auth/login)")
		return 1
	}
	client := gateway.NewClient(cfg.APIBaseURL, gateway.WithToken(cfg.APIToken), gateway.WithLogger(logger))
	return cli.RunSession(ctx, gateway.NewRegister(client, logger), args, os.Stdout, os.Stderr)
}
