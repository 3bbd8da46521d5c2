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

	"github.com/odyssey-erp/odyssey-receiving/internal/app"
	"github.com/odyssey-erp/odyssey-receiving/internal/catalog"
	"github.com/odyssey-erp/odyssey-receiving/internal/ledger"
	"github.com/odyssey-erp/odyssey-receiving/internal/observability"
	"github.com/odyssey-erp/odyssey-receiving/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-receiving/internal/platform/db"
	"github.com/odyssey-erp/odyssey-receiving/internal/procurement"
	"github.com/odyssey-erp/odyssey-receiving/internal/receiving"
	"github.com/odyssey-erp/odyssey-receiving/internal/shared"
	"github.com/odyssey-erp/odyssey-receiving/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var (
		items      catalog.Store
		entries    ledger.Store
		orders     procurement.Store
		remainder  *procurement.RemainderCache
		jobHandler *jobs.Handler
	)
	checks := map[string]app.Pinger{}
	opts := receiving.Options{
		Metrics: receiving.NewMetrics(metrics.Registerer()),
		Logger:  logger,
	}

	if app.InTestMode() {
		logger.Info("test mode detected, using in-memory stores")
		items = catalog.NewMemoryStore()
		entries = ledger.NewMemoryStore()
		orders = procurement.NewMemoryStore()
	} else {
		pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
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

		items = catalog.NewRepository(pool)
		entries = ledger.NewRepository(pool)
		orders = procurement.NewRepository(pool)
		remainder = procurement.NewRemainderCache(redisClient, cfg.RemainderCacheTTL)
		opts.Idempotency = shared.NewIdempotencyStore(pool)
		if cfg.LockEnabled {
			opts.Locks = cache.NewLocker(redisClient, cfg.LockTTL)
		}

		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient := jobs.NewClient(redisOpts)
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		opts.Reconcile = jobClient

		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)

		checks["postgres"] = pool
		checks["redis"] = redisPinger{client: redisClient}
	}

	procurementService := procurement.NewService(orders, remainder, logger)
	receivingService := receiving.NewService(items, entries, procurementService, receiving.Config{CASAttempts: cfg.CASAttempts}, opts)
	receivingHandler := receiving.NewHandler(logger, receivingService, procurementService, entries, items)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ReceivingHandler: receivingHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
		Checks:           checks,
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
