package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/waltergkaturuza/RetailCloud-sub000/internal/jobs"
)

// LedgerIntegrityJob verifies that each stock location's on-hand quantity
// matches the quantity_after of its most recent movement. A drift between the
// two means a write bypassed the ledger and needs manual follow-up.
type LedgerIntegrityJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerIntegrityJob initialises the integrity check handler.
func NewLedgerIntegrityJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerIntegrityJob {
	return &LedgerIntegrityJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type ledgerDrift struct {
	StockLocationID int64
	BranchID        int64
	ProductID       int64
	OnHand          decimal.Decimal
	LedgerQuantity  decimal.Decimal
}

// Handle executes the integrity check.
func (j *LedgerIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("ledger integrity: handler not configured")
	}
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	tracker := j.metrics().Track(TaskLedgerIntegrity)
	var resultErr error
	defer func() {
		_ = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("branch_id", payload.BranchID))
	logger.Info("starting ledger integrity check")

	drifts, checked, err := j.scan(ctx, payload.BranchID)
	if err != nil {
		resultErr = err
		logger.Error("integrity scan failed", slog.Any("error", err))
		return resultErr
	}

	for _, d := range drifts {
		logger.Warn("ledger drift detected",
			slog.Int64("stock_location_id", d.StockLocationID),
			slog.Int64("branch_id", d.BranchID),
			slog.Int64("product_id", d.ProductID),
			slog.String("on_hand", d.OnHand.String()),
			slog.String("ledger_quantity", d.LedgerQuantity.String()))
	}
	j.metrics().AddSkipped(TaskLedgerIntegrity, payload.BranchID, len(drifts))

	logger.Info("completed ledger integrity check",
		slog.Int("locations", checked),
		slog.Int("drifts", len(drifts)),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *LedgerIntegrityJob) scan(ctx context.Context, branchID int64) ([]ledgerDrift, int, error) {
	if j.Pool == nil {
		return nil, 0, errors.New("ledger integrity: pool not configured")
	}
	query := `
		SELECT sl.id, sl.branch_id, sl.product_id, sl.quantity, m.quantity_after
		FROM stock_locations sl
		JOIN LATERAL (
			SELECT quantity_after
			FROM stock_movements
			WHERE stock_location_id = sl.id
			ORDER BY occurred_at DESC, id DESC
			LIMIT 1
		) m ON true`
	args := []any{}
	if branchID > 0 {
		query += ` WHERE sl.branch_id = $1`
		args = append(args, branchID)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	drifts := make([]ledgerDrift, 0)
	checked := 0
	for rows.Next() {
		var d ledgerDrift
		if err := rows.Scan(&d.StockLocationID, &d.BranchID, &d.ProductID, &d.OnHand, &d.LedgerQuantity); err != nil {
			return nil, 0, err
		}
		checked++
		if !d.OnHand.Equal(d.LedgerQuantity) {
			drifts = append(drifts, d)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return drifts, checked, nil
}

func (j *LedgerIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerIntegrity))
	}
	return slog.Default().With(slog.String("job", TaskLedgerIntegrity))
}

func (j *LedgerIntegrityJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *LedgerIntegrityJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
