package putaway

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// ErrPutAwayNotFound indicates a missing put-away.
var ErrPutAwayNotFound = errors.New("put-away not found")

// ErrPutAwayItemNotFound indicates a missing put-away item.
var ErrPutAwayItemNotFound = errors.New("put-away item not found")

// Repository persists put-aways in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertPutAway(ctx context.Context, pa PutAway) (int64, error)
	InsertItem(ctx context.Context, item PutAwayItem) (int64, error)
	GetItemForUpdate(ctx context.Context, itemID int64) (PutAwayItem, error)
	UpdateItem(ctx context.Context, item PutAwayItem) error
	GetPutAwayForUpdate(ctx context.Context, id int64) (PutAway, error)
	UpdateStatus(ctx context.Context, id int64, status ListStatus, completedAt time.Time) error
	CountOpenItems(ctx context.Context, id int64) (int, error)
	Ledger() ledger.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx runs the callback inside a repeatable-read transaction. Serialization
// failures retry the whole callback a bounded number of times before they
// surface as shared.ErrConcurrencyConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetPutAway loads a put-away with its items.
func (r *Repository) GetPutAway(ctx context.Context, id int64) (PutAway, []PutAwayItem, error) {
	var pa PutAway
	var status, strategy string
	var completedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, branch_id, reference_type, COALESCE(reference_id::text, ''), strategy, status, created_at, completed_at
FROM put_aways WHERE id=$1`, id).
		Scan(&pa.ID, &pa.WarehouseID, &pa.BranchID, &pa.ReferenceType, &pa.ReferenceID, &strategy, &status, &pa.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PutAway{}, nil, ErrPutAwayNotFound
		}
		return PutAway{}, nil, err
	}
	pa.Status = ListStatus(status)
	pa.Strategy = allocation.PutAwayStrategy(strategy)
	if completedAt != nil {
		pa.CompletedAt = *completedAt
	}

	rows, err := r.pool.Query(ctx, `SELECT id, put_away_id, product_id, variant_id, batch_number, expiry_date, quantity, unit_cost, valuation_method, suggested_location_id, actual_location_id, status
FROM put_away_items WHERE put_away_id=$1 ORDER BY id`, id)
	if err != nil {
		return PutAway{}, nil, err
	}
	defer rows.Close()
	var items []PutAwayItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return PutAway{}, nil, err
		}
		items = append(items, item)
	}
	return pa, items, rows.Err()
}

func scanItem(row pgx.Row) (PutAwayItem, error) {
	var item PutAwayItem
	var status, method string
	var expiry *time.Time
	var actual *int64
	err := row.Scan(&item.ID, &item.PutAwayID, &item.ProductID, &item.VariantID, &item.BatchNumber,
		&expiry, &item.Quantity, &item.UnitCost, &method, &item.SuggestedLocationID, &actual, &status)
	if err != nil {
		return PutAwayItem{}, err
	}
	if expiry != nil {
		item.ExpiryDate = *expiry
	}
	if actual != nil {
		item.ActualLocationID = *actual
	}
	item.Status = ItemStatus(status)
	item.Method = valuation.Method(method)
	return item, nil
}

func (r *txRepository) InsertPutAway(ctx context.Context, pa PutAway) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO put_aways (warehouse_id, branch_id, reference_type, reference_id, strategy, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		pa.WarehouseID, pa.BranchID, pa.ReferenceType, nullStr(pa.ReferenceID), string(pa.Strategy), string(pa.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item PutAwayItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO put_away_items (put_away_id, product_id, variant_id, batch_number, expiry_date, quantity, unit_cost, valuation_method, suggested_location_id, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		item.PutAwayID, item.ProductID, item.VariantID, item.BatchNumber, nullTime(item.ExpiryDate),
		item.Quantity, item.UnitCost, string(item.Method), item.SuggestedLocationID, string(item.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (PutAwayItem, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT id, put_away_id, product_id, variant_id, batch_number, expiry_date, quantity, unit_cost, valuation_method, suggested_location_id, actual_location_id, status
FROM put_away_items WHERE id=$1 FOR UPDATE`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PutAwayItem{}, ErrPutAwayItemNotFound
		}
		return PutAwayItem{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItem(ctx context.Context, item PutAwayItem) error {
	_, err := r.tx.Exec(ctx, `UPDATE put_away_items SET actual_location_id=$2, status=$3 WHERE id=$1`,
		item.ID, nullInt(item.ActualLocationID), string(item.Status))
	return err
}

func (r *txRepository) GetPutAwayForUpdate(ctx context.Context, id int64) (PutAway, error) {
	var pa PutAway
	var status, strategy string
	err := r.tx.QueryRow(ctx, `SELECT id, warehouse_id, branch_id, reference_type, COALESCE(reference_id::text, ''), strategy, status, created_at
FROM put_aways WHERE id=$1 FOR UPDATE`, id).
		Scan(&pa.ID, &pa.WarehouseID, &pa.BranchID, &pa.ReferenceType, &pa.ReferenceID, &strategy, &status, &pa.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PutAway{}, ErrPutAwayNotFound
		}
		return PutAway{}, err
	}
	pa.Status = ListStatus(status)
	pa.Strategy = allocation.PutAwayStrategy(strategy)
	return pa, nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status ListStatus, completedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE put_aways SET status=$2, completed_at=$3 WHERE id=$1`,
		id, string(status), nullTime(completedAt))
	return err
}

func (r *txRepository) CountOpenItems(ctx context.Context, id int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM put_away_items WHERE put_away_id=$1 AND status IN ('pending','putting')`, id).Scan(&count)
	return count, err
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
