package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAnalysisABC runs the ABC/XYZ classification for one branch.
	TaskAnalysisABC = "analysis:abc"
	// TaskAnalysisDeadStock runs the dead stock scan for one branch.
	TaskAnalysisDeadStock = "analysis:dead_stock"
	// TaskAnalysisAging rebuilds the aging buckets for one branch.
	TaskAnalysisAging = "analysis:aging"
	// TaskAnalysisFull runs all three analyses for one branch.
	TaskAnalysisFull = "analysis:full"
	// TaskReportWarmup pre-populates the cached analysis reports.
	TaskReportWarmup = "analysis:warmup"
	// TaskLedgerIntegrity reconciles on-hand quantities against the ledger.
	TaskLedgerIntegrity = "ledger:integrity"
)

// AnalysisRunPayload scopes an analysis run. An empty AsOf means "now";
// ThresholdDays of zero falls back to the configured slow-moving default.
type AnalysisRunPayload struct {
	BranchID      int64  `json:"branch_id"`
	AsOf          string `json:"as_of,omitempty"`
	ThresholdDays int    `json:"threshold_days,omitempty"`
}

// AsOfTime parses the payload date, falling back to the supplied default.
func (p AnalysisRunPayload) AsOfTime(fallback time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return fallback, nil
	}
	return time.Parse(time.DateOnly, p.AsOf)
}

// ReportWarmupPayload scopes a cache warmup run. A zero BranchID warms every
// branch that currently holds stock.
type ReportWarmupPayload struct {
	BranchID int64 `json:"branch_id,omitempty"`
}

// NewAnalysisABCTask constructs an ABC analysis task.
func NewAnalysisABCTask(payload AnalysisRunPayload) (*asynq.Task, error) {
	return newJSONTask(TaskAnalysisABC, payload)
}

// NewAnalysisDeadStockTask constructs a dead stock analysis task.
func NewAnalysisDeadStockTask(payload AnalysisRunPayload) (*asynq.Task, error) {
	return newJSONTask(TaskAnalysisDeadStock, payload)
}

// NewAnalysisAgingTask constructs an aging analysis task.
func NewAnalysisAgingTask(payload AnalysisRunPayload) (*asynq.Task, error) {
	return newJSONTask(TaskAnalysisAging, payload)
}

// NewAnalysisFullTask constructs a combined analysis task.
func NewAnalysisFullTask(payload AnalysisRunPayload) (*asynq.Task, error) {
	return newJSONTask(TaskAnalysisFull, payload)
}

// NewReportWarmupTask constructs a report warmup task.
func NewReportWarmupTask(payload ReportWarmupPayload) (*asynq.Task, error) {
	return newJSONTask(TaskReportWarmup, payload)
}

// LedgerIntegrityPayload scopes an integrity check. A zero BranchID checks
// every branch.
type LedgerIntegrityPayload struct {
	BranchID int64 `json:"branch_id,omitempty"`
}

// NewLedgerIntegrityTask constructs a ledger integrity task.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	return newJSONTask(TaskLedgerIntegrity, payload)
}

func newJSONTask(taskType string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}
