package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/app"
	jobmetrics "github.com/waltergkaturuza/RetailCloud-sub000/internal/jobs"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/observability"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
	"github.com/waltergkaturuza/RetailCloud-sub000/jobs"
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	analysisRepo := analysis.NewRepository(pool)
	analysisCache := analysis.NewCache(redisClient, cfg.AnalysisCacheTTL)
	analysisService := analysis.NewService(analysisRepo, analysisCache, logger)

	analysisJob := jobs.NewAnalysisJob(analysisService, pool, logger, jobMetrics, metrics)
	warmupJob := jobs.NewReportWarmupJob(analysisService, pool, logger, jobMetrics)
	integrityJob := jobs.NewLedgerIntegrityJob(pool, logger, jobMetrics)

	// Nightly batch: full analysis for every branch, then cache warmup once
	// the snapshots are written, then the ledger reconciliation.
	analysisTask, err := jobs.NewAnalysisFullTask(jobs.AnalysisRunPayload{ThresholdDays: cfg.SlowMovingDays})
	if err != nil {
		logger.Error("build analysis task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewReportWarmupTask(jobs.ReportWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	integrityTask, err := jobs.NewLedgerIntegrityTask(jobs.LedgerIntegrityPayload{})
	if err != nil {
		logger.Error("build integrity task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAnalysisABC, Handler: analysisJob.HandleABC},
			{Type: jobs.TaskAnalysisDeadStock, Handler: analysisJob.HandleDeadStock},
			{Type: jobs.TaskAnalysisAging, Handler: analysisJob.HandleAging},
			{Type: jobs.TaskAnalysisFull, Handler: analysisJob.HandleFull},
			{Type: jobs.TaskReportWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskLedgerIntegrity, Handler: integrityJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: analysisTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "45 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 3 * * *", Task: integrityTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
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
