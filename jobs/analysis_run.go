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
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/observability"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AnalysisRunner is the slice of the analysis service the jobs need.
type AnalysisRunner interface {
	RunABCAnalysis(ctx context.Context, branchID int64, asOf time.Time) (analysis.RunResult, error)
	RunDeadStockAnalysis(ctx context.Context, branchID int64, asOf time.Time, thresholdDays int) (analysis.RunResult, error)
	RunAgingAnalysis(ctx context.Context, branchID int64, asOf time.Time) (analysis.RunResult, error)
	RunAll(ctx context.Context, branchID int64, asOf time.Time) (abc, dead, aging analysis.RunResult, err error)
}

// AnalysisJob executes scheduled stock analysis runs. A payload with branch
// zero fans out across every branch that currently holds stock; the pool is
// only needed for that discovery.
type AnalysisJob struct {
	Analysis      AnalysisRunner
	Pool          *pgxpool.Pool
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
	Observability *observability.Metrics
	clock         func() time.Time
}

// NewAnalysisJob wires dependencies for the analysis handlers.
func NewAnalysisJob(runner AnalysisRunner, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics, obs *observability.Metrics) *AnalysisJob {
	return &AnalysisJob{
		Analysis:      runner,
		Pool:          pool,
		Logger:        logger,
		Metrics:       metrics,
		Observability: obs,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// HandleABC processes TaskAnalysisABC tasks.
func (j *AnalysisJob) HandleABC(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskAnalysisABC, "abc", func(ctx context.Context, branchID int64, asOf time.Time, _ int) (analysis.RunResult, error) {
		return j.Analysis.RunABCAnalysis(ctx, branchID, asOf)
	})
}

// HandleDeadStock processes TaskAnalysisDeadStock tasks.
func (j *AnalysisJob) HandleDeadStock(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskAnalysisDeadStock, "dead_stock", func(ctx context.Context, branchID int64, asOf time.Time, thresholdDays int) (analysis.RunResult, error) {
		return j.Analysis.RunDeadStockAnalysis(ctx, branchID, asOf, thresholdDays)
	})
}

// HandleAging processes TaskAnalysisAging tasks.
func (j *AnalysisJob) HandleAging(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskAnalysisAging, "aging", func(ctx context.Context, branchID int64, asOf time.Time, _ int) (analysis.RunResult, error) {
		return j.Analysis.RunAgingAnalysis(ctx, branchID, asOf)
	})
}

// HandleFull processes TaskAnalysisFull tasks, fanning out all three analyses.
func (j *AnalysisJob) HandleFull(ctx context.Context, t *asynq.Task) error {
	return j.run(ctx, t, TaskAnalysisFull, "full", func(ctx context.Context, branchID int64, asOf time.Time, _ int) (analysis.RunResult, error) {
		abc, dead, aging, err := j.Analysis.RunAll(ctx, branchID, asOf)
		combined := analysis.RunResult{
			AnalysisDate: abc.AnalysisDate,
			Succeeded:    abc.Succeeded + dead.Succeeded + aging.Succeeded,
			Failed:       abc.Failed + dead.Failed + aging.Failed,
		}
		return combined, err
	})
}

type runFunc func(ctx context.Context, branchID int64, asOf time.Time, thresholdDays int) (analysis.RunResult, error)

func (j *AnalysisJob) run(ctx context.Context, t *asynq.Task, taskType, kind string, fn runFunc) error {
	if j == nil || j.Analysis == nil {
		return errors.New("analysis job: handler not configured")
	}
	var payload AnalysisRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	logger := j.logger(taskType).With(slog.Int64("branch_id", payload.BranchID))

	asOf, err := payload.AsOfTime(j.now())
	if err != nil {
		logger.Error("parse as_of", slog.String("as_of", payload.AsOf), slog.Any("error", err))
		return asynq.SkipRetry
	}
	thresholdDays := payload.ThresholdDays
	if thresholdDays <= 0 {
		thresholdDays = analysis.DefaultSlowMovingDays
	}

	branches := []int64{payload.BranchID}
	if payload.BranchID == 0 {
		branches, err = stockedBranches(ctx, j.Pool)
		if err != nil {
			logger.Error("discover branches", slog.Any("error", err))
			return err
		}
	}

	tracker := j.metrics().Track(taskType)
	var result analysis.RunResult
	var runErr error
	for _, branchID := range branches {
		branchResult, err := fn(ctx, branchID, asOf, thresholdDays)
		result.AnalysisDate = branchResult.AnalysisDate
		result.Succeeded += branchResult.Succeeded
		result.Failed += branchResult.Failed
		j.metrics().AddSkipped(taskType, branchID, branchResult.Failed)
		if err != nil {
			runErr = err
			logger.Error("analysis run failed", slog.Int64("failed_branch_id", branchID), slog.Any("error", err))
			break
		}
	}
	runErr = tracker.End(runErr)

	outcome := "success"
	if runErr != nil {
		outcome = "failure"
	}
	j.Observability.ObserveAnalysisRun(kind, outcome)

	if runErr != nil {
		return runErr
	}
	logger.Info("analysis run finished",
		slog.Int("branches", len(branches)),
		slog.Time("analysis_date", result.AnalysisDate),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed))
	return nil
}

func (j *AnalysisJob) logger(taskType string) *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", taskType))
	}
	return slog.Default().With(slog.String("job", taskType))
}

func (j *AnalysisJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AnalysisJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
