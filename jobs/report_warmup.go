package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
	jobmetrics "github.com/waltergkaturuza/RetailCloud-sub000/internal/jobs"
)

// ReportWarmupJob pre-populates the cached analysis reports for branches that
// currently hold stock, so the first dashboard hit after a nightly run does
// not pay the database round trip.
type ReportWarmupJob struct {
	Analysis *analysis.Service
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewReportWarmupJob wires dependencies for the warmup handler.
func NewReportWarmupJob(analysisSvc *analysis.Service, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportWarmupJob {
	return &ReportWarmupJob{
		Analysis: analysisSvc,
		Pool:     pool,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes report warmup tasks.
func (j *ReportWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Analysis == nil {
		return errors.New("report warmup: handler not configured")
	}
	var payload ReportWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportWarmup)
	var resultErr error
	defer func() {
		_ = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting report warmup")

	branches, err := j.fetchBranches(ctx, payload.BranchID)
	if err != nil {
		resultErr = err
		logger.Error("load warmup branches", slog.Any("error", err))
		return resultErr
	}
	if len(branches) == 0 {
		logger.Info("no stocked branches discovered for warmup")
		return resultErr
	}

	now := j.now()
	warmed := 0
	for _, branchID := range branches {
		if err := j.warmBranch(ctx, branchID, now); err != nil {
			resultErr = err
			logger.Error("warm branch", slog.Int64("branch_id", branchID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed report warmup", slog.Int("branches", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *ReportWarmupJob) warmBranch(ctx context.Context, branchID int64, now time.Time) error {
	// Bound each branch with a timeout so a slow query cannot stall the queue.
	branchCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if _, err := j.Analysis.GetABCReport(branchCtx, branchID, now); err != nil {
		return err
	}
	if _, err := j.Analysis.GetDeadStockReport(branchCtx, branchID, now); err != nil {
		return err
	}
	if _, err := j.Analysis.GetAgingReport(branchCtx, branchID, now); err != nil {
		return err
	}
	return nil
}

func (j *ReportWarmupJob) fetchBranches(ctx context.Context, branchID int64) ([]int64, error) {
	if branchID > 0 {
		return []int64{branchID}, nil
	}
	return stockedBranches(ctx, j.Pool)
}

func (j *ReportWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportWarmup))
}

func (j *ReportWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ReportWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
