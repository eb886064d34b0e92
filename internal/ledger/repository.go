package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the ledger service
// and by workflows sharing the same transaction. Valuation() binds the
// valuation engine's persistence to the same transaction so quantity and
// cost effects commit or roll back together.
type TxRepository interface {
	GetStockLocationForUpdate(ctx context.Context, id int64) (StockLocation, error)
	FindStockLocationForUpdate(ctx context.Context, warehouseLocationID, productID, variantID int64, batch string) (StockLocation, error)
	ListProductStockForUpdate(ctx context.Context, productID, variantID, branchID int64) ([]StockLocation, error)
	InsertStockLocation(ctx context.Context, loc StockLocation) (int64, error)
	UpdateStockLocation(ctx context.Context, loc StockLocation) error
	InsertMovement(ctx context.Context, m StockMovement) (int64, error)
	Valuation() valuation.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction with the ledger's transactional
// operations. Workflow repositories use this to share their transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx runs the callback inside a repeatable-read transaction. Serialization
// failures retry the whole callback a bounded number of times before they
// surface as shared.ErrConcurrencyConflict.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.RunTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const stockLocationColumns = `id, warehouse_id, branch_id, warehouse_location_id, product_id, variant_id,
batch_number, expiry_date, quantity, reserved_quantity, put_away_date, last_picked_at, last_counted_at`

func scanStockLocation(row pgx.Row) (StockLocation, error) {
	var loc StockLocation
	var expiry, picked, counted *time.Time
	err := row.Scan(&loc.ID, &loc.WarehouseID, &loc.BranchID, &loc.WarehouseLocationID, &loc.ProductID,
		&loc.VariantID, &loc.BatchNumber, &expiry, &loc.Quantity, &loc.ReservedQuantity,
		&loc.PutAwayDate, &picked, &counted)
	if err != nil {
		return StockLocation{}, err
	}
	if expiry != nil {
		loc.ExpiryDate = *expiry
	}
	if picked != nil {
		loc.LastPickedAt = *picked
	}
	if counted != nil {
		loc.LastCountedAt = *counted
	}
	return loc, nil
}

func (r *txRepository) GetStockLocationForUpdate(ctx context.Context, id int64) (StockLocation, error) {
	loc, err := scanStockLocation(r.tx.QueryRow(ctx,
		`SELECT `+stockLocationColumns+` FROM stock_locations WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLocation{}, ErrStockLocationNotFound
		}
		return StockLocation{}, err
	}
	return loc, nil
}

func (r *txRepository) FindStockLocationForUpdate(ctx context.Context, warehouseLocationID, productID, variantID int64, batch string) (StockLocation, error) {
	loc, err := scanStockLocation(r.tx.QueryRow(ctx,
		`SELECT `+stockLocationColumns+` FROM stock_locations
WHERE warehouse_location_id=$1 AND product_id=$2 AND variant_id=$3 AND batch_number=$4
FOR UPDATE`, warehouseLocationID, productID, variantID, batch))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLocation{}, ErrStockLocationNotFound
		}
		return StockLocation{}, err
	}
	return loc, nil
}

func (r *txRepository) ListProductStockForUpdate(ctx context.Context, productID, variantID, branchID int64) ([]StockLocation, error) {
	rows, err := r.tx.Query(ctx,
		`SELECT `+stockLocationColumns+` FROM stock_locations
WHERE product_id=$1 AND variant_id=$2 AND branch_id=$3
ORDER BY put_away_date ASC, id ASC
FOR UPDATE`, productID, variantID, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locs []StockLocation
	for rows.Next() {
		loc, err := scanStockLocation(rows)
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

func (r *txRepository) InsertStockLocation(ctx context.Context, loc StockLocation) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_locations
(warehouse_id, branch_id, warehouse_location_id, product_id, variant_id, batch_number, expiry_date, quantity, reserved_quantity, put_away_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
		loc.WarehouseID, loc.BranchID, loc.WarehouseLocationID, loc.ProductID, loc.VariantID,
		loc.BatchNumber, nullTime(loc.ExpiryDate), loc.Quantity, loc.ReservedQuantity, loc.PutAwayDate).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateStockLocation(ctx context.Context, loc StockLocation) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_locations
SET quantity=$2, reserved_quantity=$3, put_away_date=$4, last_picked_at=$5, last_counted_at=$6, expiry_date=$7
WHERE id=$1`,
		loc.ID, loc.Quantity, loc.ReservedQuantity, loc.PutAwayDate,
		nullTime(loc.LastPickedAt), nullTime(loc.LastCountedAt), nullTime(loc.ExpiryDate))
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m StockMovement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements
(product_id, variant_id, branch_id, warehouse_id, stock_location_id, movement_type, quantity, quantity_before, quantity_after, unit_cost, reference_type, reference_id, note, actor_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15) RETURNING id`,
		m.ProductID, m.VariantID, m.BranchID, m.WarehouseID, nullInt(m.StockLocationID), string(m.Type),
		m.Quantity, m.QuantityBefore, m.QuantityAfter, m.UnitCost,
		m.ReferenceType, nullStr(m.ReferenceID), m.Note, nullInt(m.ActorID), m.OccurredAt).Scan(&id)
	return id, err
}

func (r *txRepository) Valuation() valuation.TxRepository {
	return valuation.NewTxRepository(r.tx)
}

// SumAvailable aggregates quantity minus reservations over all locations of
// the product within a branch.
func (r *Repository) SumAvailable(ctx context.Context, productID, variantID, branchID int64) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity - reserved_quantity), 0)
FROM stock_locations
WHERE product_id=$1 AND variant_id=$2 AND branch_id=$3`, productID, variantID, branchID).Scan(&available)
	return available, err
}

// ListMovements returns movement history matching the filter, oldest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	types := make([]string, 0, len(filter.Types))
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, variant_id, branch_id, warehouse_id, COALESCE(stock_location_id, 0),
movement_type, quantity, quantity_before, quantity_after, unit_cost, reference_type, COALESCE(reference_id::text, ''), note, COALESCE(actor_id, 0), occurred_at
FROM stock_movements
WHERE product_id=$1 AND variant_id=$2 AND branch_id=$3
  AND (cardinality($4::text[]) = 0 OR movement_type = ANY($4::text[]))
  AND occurred_at BETWEEN COALESCE($5, '-infinity') AND COALESCE($6, 'infinity')
ORDER BY occurred_at ASC, id ASC
LIMIT $7`, filter.ProductID, filter.VariantID, filter.BranchID, types, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		var mtype string
		if err := rows.Scan(&m.ID, &m.ProductID, &m.VariantID, &m.BranchID, &m.WarehouseID, &m.StockLocationID,
			&mtype, &m.Quantity, &m.QuantityBefore, &m.QuantityAfter, &m.UnitCost,
			&m.ReferenceType, &m.ReferenceID, &m.Note, &m.ActorID, &m.OccurredAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(mtype)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
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
