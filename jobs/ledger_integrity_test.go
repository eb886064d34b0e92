package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/waltergkaturuza/RetailCloud-sub000/internal/jobs"
)

func jobCounterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestLedgerIntegrityFailureIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewLedgerIntegrityJob(nil, nil, jobmetrics.NewMetrics(reg))

	task := mustTask(t, TaskLedgerIntegrity, LedgerIntegrityPayload{BranchID: 3})
	err := job.Handle(context.Background(), task)
	require.Error(t, err)

	require.Equal(t, 1.0, jobCounterValue(t, reg, "stockledger_jobs_failures_total"))
	require.Equal(t, 1.0, jobCounterValue(t, reg, "stockledger_jobs_total"))
}

func TestLedgerIntegritySkipsRetryOnBadPayload(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewLedgerIntegrityJob(nil, nil, jobmetrics.NewMetrics(reg))

	task := mustTask(t, TaskLedgerIntegrity, "not an object")
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Equal(t, 0.0, jobCounterValue(t, reg, "stockledger_jobs_total"))
}
