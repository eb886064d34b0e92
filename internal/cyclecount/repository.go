package cyclecount

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
)

// ErrCountNotFound indicates a missing cycle count.
var ErrCountNotFound = errors.New("cycle count not found")

// ErrCountItemNotFound indicates a missing count item.
var ErrCountItemNotFound = errors.New("cycle count item not found")

// Repository persists cycle counts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	// SnapshotLocations locks and returns the stock locations in scope so
	// the system quantity baseline cannot move under the count.
	SnapshotLocations(ctx context.Context, warehouseID int64, zone string, productIDs []int64) ([]ledger.StockLocation, error)
	InsertCount(ctx context.Context, count CycleCount) (int64, error)
	InsertItem(ctx context.Context, item CountItem) (int64, error)
	GetItemForUpdate(ctx context.Context, itemID int64) (CountItem, error)
	UpdateItem(ctx context.Context, item CountItem) error
	GetCountForUpdate(ctx context.Context, countID int64) (CycleCount, error)
	UpdateCountStatus(ctx context.Context, countID int64, status CountStatus, completedAt time.Time) error
	CountOpenItems(ctx context.Context, countID int64) (int, error)
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

// GetCount loads a count with its items.
func (r *Repository) GetCount(ctx context.Context, countID int64) (CycleCount, []CountItem, error) {
	var count CycleCount
	var status string
	var completedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, branch_id, COALESCE(zone, ''), status, count_date, created_at, completed_at
FROM cycle_counts WHERE id=$1`, countID).
		Scan(&count.ID, &count.WarehouseID, &count.BranchID, &count.Zone, &status, &count.CountDate, &count.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CycleCount{}, nil, ErrCountNotFound
		}
		return CycleCount{}, nil, err
	}
	count.Status = CountStatus(status)
	if completedAt != nil {
		count.CompletedAt = *completedAt
	}

	rows, err := r.pool.Query(ctx, `SELECT id, cycle_count_id, stock_location_id, product_id, variant_id, COALESCE(batch_number, ''), system_quantity, counted_quantity, variance, status, counted_at, adjusted_at
FROM cycle_count_items WHERE cycle_count_id=$1 ORDER BY id`, countID)
	if err != nil {
		return CycleCount{}, nil, err
	}
	defer rows.Close()
	var items []CountItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return CycleCount{}, nil, err
		}
		items = append(items, item)
	}
	return count, items, rows.Err()
}

func scanItem(row pgx.Row) (CountItem, error) {
	var item CountItem
	var status string
	var countedAt, adjustedAt *time.Time
	err := row.Scan(&item.ID, &item.CycleCountID, &item.StockLocationID, &item.ProductID, &item.VariantID,
		&item.BatchNumber, &item.SystemQuantity, &item.CountedQuantity, &item.Variance, &status, &countedAt, &adjustedAt)
	if err != nil {
		return CountItem{}, err
	}
	item.Status = ItemStatus(status)
	if countedAt != nil {
		item.CountedAt = *countedAt
	}
	if adjustedAt != nil {
		item.AdjustedAt = *adjustedAt
	}
	return item, nil
}

func (r *txRepository) SnapshotLocations(ctx context.Context, warehouseID int64, zone string, productIDs []int64) ([]ledger.StockLocation, error) {
	query := `SELECT sl.id, sl.warehouse_id, sl.branch_id, sl.warehouse_location_id, sl.product_id, sl.variant_id, COALESCE(sl.batch_number, ''), sl.quantity, sl.reserved_quantity
FROM stock_locations sl
JOIN warehouse_locations wl ON wl.id = sl.warehouse_location_id
WHERE sl.warehouse_id = $1
  AND ($2 = '' OR wl.zone = $2)
  AND (cardinality($3::bigint[]) = 0 OR sl.product_id = ANY($3::bigint[]))
ORDER BY sl.id
FOR UPDATE OF sl`
	if productIDs == nil {
		productIDs = []int64{}
	}
	rows, err := r.tx.Query(ctx, query, warehouseID, zone, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locs []ledger.StockLocation
	for rows.Next() {
		var loc ledger.StockLocation
		if err := rows.Scan(&loc.ID, &loc.WarehouseID, &loc.BranchID, &loc.WarehouseLocationID,
			&loc.ProductID, &loc.VariantID, &loc.BatchNumber, &loc.Quantity, &loc.ReservedQuantity); err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

func (r *txRepository) InsertCount(ctx context.Context, count CycleCount) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cycle_counts (warehouse_id, branch_id, zone, status, count_date, created_at)
VALUES ($1,$2,$3,$4,$5,NOW()) RETURNING id`,
		count.WarehouseID, count.BranchID, nullStr(count.Zone), string(count.Status), count.CountDate).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item CountItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cycle_count_items (cycle_count_id, stock_location_id, product_id, variant_id, batch_number, system_quantity, counted_quantity, variance, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		item.CycleCountID, item.StockLocationID, item.ProductID, item.VariantID, nullStr(item.BatchNumber),
		item.SystemQuantity, item.CountedQuantity, item.Variance, string(item.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (CountItem, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT id, cycle_count_id, stock_location_id, product_id, variant_id, COALESCE(batch_number, ''), system_quantity, counted_quantity, variance, status, counted_at, adjusted_at
FROM cycle_count_items WHERE id=$1 FOR UPDATE`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CountItem{}, ErrCountItemNotFound
		}
		return CountItem{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItem(ctx context.Context, item CountItem) error {
	_, err := r.tx.Exec(ctx, `UPDATE cycle_count_items SET counted_quantity=$2, variance=$3, status=$4, counted_at=$5, adjusted_at=$6 WHERE id=$1`,
		item.ID, item.CountedQuantity, item.Variance, string(item.Status), nullTime(item.CountedAt), nullTime(item.AdjustedAt))
	return err
}

func (r *txRepository) GetCountForUpdate(ctx context.Context, countID int64) (CycleCount, error) {
	var count CycleCount
	var status string
	err := r.tx.QueryRow(ctx, `SELECT id, warehouse_id, branch_id, COALESCE(zone, ''), status, count_date, created_at
FROM cycle_counts WHERE id=$1 FOR UPDATE`, countID).
		Scan(&count.ID, &count.WarehouseID, &count.BranchID, &count.Zone, &status, &count.CountDate, &count.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CycleCount{}, ErrCountNotFound
		}
		return CycleCount{}, err
	}
	count.Status = CountStatus(status)
	return count, nil
}

func (r *txRepository) UpdateCountStatus(ctx context.Context, countID int64, status CountStatus, completedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE cycle_counts SET status=$2, completed_at=$3 WHERE id=$1`,
		countID, string(status), nullTime(completedAt))
	return err
}

func (r *txRepository) CountOpenItems(ctx context.Context, countID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM cycle_count_items WHERE cycle_count_id=$1 AND status <> 'adjusted'`, countID).Scan(&count)
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

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
