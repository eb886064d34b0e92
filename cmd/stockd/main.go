package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
	analysisexport "github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis/export"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/app"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/cyclecount"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/forecast"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/observability"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/picking"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/cache"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/putaway"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/transfer"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/warehouse"
	"github.com/waltergkaturuza/RetailCloud-sub000/jobs"
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
		// Cached report reads degrade to direct queries without Redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	validate := validator.New()
	metrics := observability.NewMetrics()

	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	engine := valuation.NewEngine()
	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo, engine, auditLogger, idempotencyStore, nil, ledger.ServiceConfig{
		AllowNegativeStock: cfg.AllowNegativeStock,
	})
	ledgerHandler := ledger.NewHandler(logger, ledgerService, validate).WithMetrics(metrics)

	allocationRepo := allocation.NewRepository(pool)
	allocator := allocation.NewAllocator(allocationRepo, allocation.Config{FastMovingZone: cfg.FastMovingZone})

	pickingRepo := picking.NewRepository(pool)
	pickingService := picking.NewService(pickingRepo, ledgerService, allocator, auditLogger)
	pickingHandler := picking.NewHandler(logger, pickingService, validate)

	putAwayRepo := putaway.NewRepository(pool)
	putAwayService := putaway.NewService(putAwayRepo, ledgerService, allocator, auditLogger)
	putAwayHandler := putaway.NewHandler(logger, putAwayService, validate)

	cycleCountRepo := cyclecount.NewRepository(pool)
	cycleCountService := cyclecount.NewService(cycleCountRepo, ledgerService, auditLogger)
	cycleCountHandler := cyclecount.NewHandler(logger, cycleCountService, validate)

	transferRepo := transfer.NewRepository(pool)
	transferService := transfer.NewService(transferRepo, ledgerService, allocator, auditLogger)
	transferHandler := transfer.NewHandler(logger, transferService, validate)

	forecastService := forecast.NewService(ledgerService, forecast.Config{})
	forecastHandler := forecast.NewHandler(logger, forecastService)

	analysisRepo := analysis.NewRepository(pool)
	analysisCache := analysis.NewCache(redisClient, cfg.AnalysisCacheTTL)
	analysisService := analysis.NewService(analysisRepo, analysisCache, logger)
	analysisHandler := analysis.NewHandler(logger, analysisService)
	exportHandler := analysisexport.NewHandler(analysisService)

	warehouseRepo := warehouse.NewRepository(pool)
	warehouseService := warehouse.NewService(warehouseRepo)
	warehouseHandler := warehouse.NewHandler(logger, warehouseService, validate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		LedgerHandler:     ledgerHandler,
		PickingHandler:    pickingHandler,
		PutAwayHandler:    putAwayHandler,
		CycleCountHandler: cycleCountHandler,
		TransferHandler:   transferHandler,
		ForecastHandler:   forecastHandler,
		AnalysisHandler:   analysisHandler,
		ExportHandler:     exportHandler,
		WarehouseHandler:  warehouseHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
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
