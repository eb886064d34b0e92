package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/analysis"
)

type fakeRunner struct {
	abcBranch     int64
	abcAsOf       time.Time
	deadThreshold int
	fullCalls     int
	err           error
}

func (f *fakeRunner) RunABCAnalysis(_ context.Context, branchID int64, asOf time.Time) (analysis.RunResult, error) {
	f.abcBranch = branchID
	f.abcAsOf = asOf
	return analysis.RunResult{AnalysisDate: asOf, Succeeded: 3, Failed: 1}, f.err
}

func (f *fakeRunner) RunDeadStockAnalysis(_ context.Context, _ int64, asOf time.Time, thresholdDays int) (analysis.RunResult, error) {
	f.deadThreshold = thresholdDays
	return analysis.RunResult{AnalysisDate: asOf, Succeeded: 2}, f.err
}

func (f *fakeRunner) RunAgingAnalysis(_ context.Context, _ int64, asOf time.Time) (analysis.RunResult, error) {
	return analysis.RunResult{AnalysisDate: asOf, Succeeded: 1}, f.err
}

func (f *fakeRunner) RunAll(_ context.Context, _ int64, asOf time.Time) (analysis.RunResult, analysis.RunResult, analysis.RunResult, error) {
	f.fullCalls++
	r := analysis.RunResult{AnalysisDate: asOf, Succeeded: 2, Failed: 1}
	return r, r, r, f.err
}

func newTestAnalysisJob(runner *fakeRunner) *AnalysisJob {
	job := NewAnalysisJob(runner, nil, nil, nil, nil)
	job.clock = func() time.Time {
		return time.Date(2026, 6, 15, 3, 0, 0, 0, time.UTC)
	}
	return job
}

func mustTask(t *testing.T, taskType string, payload any) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(taskType, data)
}

func TestHandleABCParsesPayloadDate(t *testing.T) {
	runner := &fakeRunner{}
	job := newTestAnalysisJob(runner)

	task := mustTask(t, TaskAnalysisABC, AnalysisRunPayload{BranchID: 7, AsOf: "2026-06-01"})
	require.NoError(t, job.HandleABC(context.Background(), task))
	require.Equal(t, int64(7), runner.abcBranch)
	require.Equal(t, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), runner.abcAsOf)
}

func TestHandleABCDefaultsToClock(t *testing.T) {
	runner := &fakeRunner{}
	job := newTestAnalysisJob(runner)

	task := mustTask(t, TaskAnalysisABC, AnalysisRunPayload{BranchID: 7})
	require.NoError(t, job.HandleABC(context.Background(), task))
	require.Equal(t, time.Date(2026, 6, 15, 3, 0, 0, 0, time.UTC), runner.abcAsOf)
}

func TestHandleABCSkipsRetryOnBadPayload(t *testing.T) {
	job := newTestAnalysisJob(&fakeRunner{})

	task := asynq.NewTask(TaskAnalysisABC, []byte("{"))
	err := job.HandleABC(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)

	task = mustTask(t, TaskAnalysisABC, AnalysisRunPayload{BranchID: 7, AsOf: "June 1st"})
	err = job.HandleABC(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleDeadStockDefaultsThreshold(t *testing.T) {
	runner := &fakeRunner{}
	job := newTestAnalysisJob(runner)

	task := mustTask(t, TaskAnalysisDeadStock, AnalysisRunPayload{BranchID: 7})
	require.NoError(t, job.HandleDeadStock(context.Background(), task))
	require.Equal(t, analysis.DefaultSlowMovingDays, runner.deadThreshold)

	task = mustTask(t, TaskAnalysisDeadStock, AnalysisRunPayload{BranchID: 7, ThresholdDays: 45})
	require.NoError(t, job.HandleDeadStock(context.Background(), task))
	require.Equal(t, 45, runner.deadThreshold)
}

func TestHandleFullPropagatesFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("connection reset")}
	job := newTestAnalysisJob(runner)

	task := mustTask(t, TaskAnalysisFull, AnalysisRunPayload{BranchID: 7})
	err := job.HandleFull(context.Background(), task)
	require.Error(t, err)
	require.Equal(t, 1, runner.fullCalls)
}
