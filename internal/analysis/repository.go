package analysis

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
)

// UsageRow is one (product, month) consumption aggregate.
type UsageRow struct {
	ProductID int64
	VariantID int64
	Month     time.Time
	Quantity  decimal.Decimal
	Value     decimal.Decimal
}

// StockRow pairs a stock location with its current valuation cost.
type StockRow struct {
	Location ledger.StockLocation
	UnitCost decimal.Decimal
}

// DateRow associates a stock location with a movement timestamp.
type DateRow struct {
	StockLocationID int64
	At              time.Time
}

// Repository reads movement history and writes analysis snapshots. All reads
// run outside any transaction so batch runs never contend with live mutation
// locks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// MonthlyUsage aggregates consumption movements by product and month.
func (r *Repository) MonthlyUsage(ctx context.Context, branchID int64, from, to time.Time) ([]UsageRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, variant_id, date_trunc('month', occurred_at) AS month,
		       SUM(quantity) AS qty, SUM(quantity * unit_cost) AS value
		FROM stock_movements
		WHERE branch_id = $1
		  AND movement_type IN ('sale', 'out')
		  AND occurred_at >= $2 AND occurred_at < $3
		GROUP BY product_id, variant_id, month
		ORDER BY product_id, variant_id, month`,
		branchID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UsageRow
	for rows.Next() {
		var row UsageRow
		if err := rows.Scan(&row.ProductID, &row.VariantID, &row.Month, &row.Quantity, &row.Value); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListStock returns every stocked location in the branch with its current
// weighted cost. Zero-quantity rows are skipped.
func (r *Repository) ListStock(ctx context.Context, branchID int64) ([]StockRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT sl.id, sl.warehouse_id, sl.branch_id, sl.warehouse_location_id,
		       sl.product_id, sl.variant_id, sl.batch_number,
		       COALESCE(sl.expiry_date, 'epoch'), sl.quantity, sl.reserved_quantity,
		       COALESCE(sl.put_away_date, 'epoch'),
		       COALESCE(v.current_cost, 0)
		FROM stock_locations sl
		LEFT JOIN inventory_valuations v
		  ON v.product_id = sl.product_id
		 AND v.variant_id = sl.variant_id
		 AND v.branch_id = sl.branch_id
		WHERE sl.branch_id = $1 AND sl.quantity > 0
		ORDER BY sl.id`,
		branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockRow
	for rows.Next() {
		var row StockRow
		loc := &row.Location
		if err := rows.Scan(&loc.ID, &loc.WarehouseID, &loc.BranchID, &loc.WarehouseLocationID,
			&loc.ProductID, &loc.VariantID, &loc.BatchNumber,
			&loc.ExpiryDate, &loc.Quantity, &loc.ReservedQuantity,
			&loc.PutAwayDate, &row.UnitCost); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// LastSales returns the most recent sale timestamp per stock location.
func (r *Repository) LastSales(ctx context.Context, branchID int64) ([]DateRow, error) {
	return r.movementDates(ctx, `
		SELECT stock_location_id, MAX(occurred_at)
		FROM stock_movements
		WHERE branch_id = $1 AND movement_type = 'sale' AND stock_location_id IS NOT NULL
		GROUP BY stock_location_id`, branchID)
}

// OldestReceipts returns the earliest inbound timestamp per stock location,
// used when the location has no recorded put-away date.
func (r *Repository) OldestReceipts(ctx context.Context, branchID int64) ([]DateRow, error) {
	return r.movementDates(ctx, `
		SELECT stock_location_id, MIN(occurred_at)
		FROM stock_movements
		WHERE branch_id = $1 AND movement_type IN ('in', 'transfer_in') AND stock_location_id IS NOT NULL
		GROUP BY stock_location_id`, branchID)
}

func (r *Repository) movementDates(ctx context.Context, query string, branchID int64) ([]DateRow, error) {
	rows, err := r.pool.Query(ctx, query, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DateRow
	for rows.Next() {
		var row DateRow
		if err := rows.Scan(&row.StockLocationID, &row.At); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// UpsertABC writes one classification row, replacing any previous row for the
// same date and product.
func (r *Repository) UpsertABC(ctx context.Context, rec ABCRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO abc_analysis
			(analysis_date, branch_id, product_id, variant_id, usage_quantity, usage_value,
			 value_share, cumulative_pct, abc_class, xyz_class, combined_class, recommendation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (analysis_date, branch_id, product_id, variant_id) DO UPDATE SET
			usage_quantity = EXCLUDED.usage_quantity,
			usage_value = EXCLUDED.usage_value,
			value_share = EXCLUDED.value_share,
			cumulative_pct = EXCLUDED.cumulative_pct,
			abc_class = EXCLUDED.abc_class,
			xyz_class = EXCLUDED.xyz_class,
			combined_class = EXCLUDED.combined_class,
			recommendation = EXCLUDED.recommendation`,
		rec.AnalysisDate, rec.BranchID, rec.ProductID, rec.VariantID, rec.UsageQuantity,
		rec.UsageValue, rec.ValueShare, rec.CumulativePct, string(rec.ABCClass),
		string(rec.XYZClass), rec.CombinedClass, rec.Recommendation)
	return err
}

// UpsertDeadStock writes one staleness row for the same date and location.
func (r *Repository) UpsertDeadStock(ctx context.Context, rec DeadStockRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO dead_stock_analysis
			(analysis_date, branch_id, warehouse_id, product_id, variant_id, stock_location_id,
			 quantity, value, last_sold_at, days_since_last_sale, status, recommendation)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (analysis_date, stock_location_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			value = EXCLUDED.value,
			last_sold_at = EXCLUDED.last_sold_at,
			days_since_last_sale = EXCLUDED.days_since_last_sale,
			status = EXCLUDED.status,
			recommendation = EXCLUDED.recommendation`,
		rec.AnalysisDate, rec.BranchID, rec.WarehouseID, rec.ProductID, rec.VariantID,
		rec.StockLocationID, rec.Quantity, rec.Value, nullTime(rec.LastSoldAt),
		rec.DaysSinceLastSale, string(rec.Status), rec.Recommendation)
	return err
}

// UpsertAging writes one aging bucket row for the same date and warehouse.
func (r *Repository) UpsertAging(ctx context.Context, rec AgingRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO stock_aging
			(analysis_date, branch_id, warehouse_id, bucket, quantity, value, item_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (analysis_date, branch_id, warehouse_id, bucket) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			value = EXCLUDED.value,
			item_count = EXCLUDED.item_count`,
		rec.AnalysisDate, rec.BranchID, rec.WarehouseID, rec.Bucket,
		rec.Quantity, rec.Value, rec.ItemCount)
	return err
}

// ListABC returns the classification snapshot for a date.
func (r *Repository) ListABC(ctx context.Context, branchID int64, date time.Time) ([]ABCRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, analysis_date, branch_id, product_id, variant_id, usage_quantity,
		       usage_value, value_share, cumulative_pct, abc_class, xyz_class,
		       combined_class, recommendation
		FROM abc_analysis
		WHERE branch_id = $1 AND analysis_date = $2
		ORDER BY usage_value DESC, product_id`,
		branchID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ABCRecord
	for rows.Next() {
		var rec ABCRecord
		if err := rows.Scan(&rec.ID, &rec.AnalysisDate, &rec.BranchID, &rec.ProductID,
			&rec.VariantID, &rec.UsageQuantity, &rec.UsageValue, &rec.ValueShare,
			&rec.CumulativePct, &rec.ABCClass, &rec.XYZClass, &rec.CombinedClass,
			&rec.Recommendation); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListDeadStock returns the staleness snapshot for a date.
func (r *Repository) ListDeadStock(ctx context.Context, branchID int64, date time.Time) ([]DeadStockRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, analysis_date, branch_id, warehouse_id, product_id, variant_id,
		       stock_location_id, quantity, value, COALESCE(last_sold_at, 'epoch'),
		       days_since_last_sale, status, recommendation
		FROM dead_stock_analysis
		WHERE branch_id = $1 AND analysis_date = $2
		ORDER BY days_since_last_sale DESC, stock_location_id`,
		branchID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeadStockRecord
	for rows.Next() {
		var rec DeadStockRecord
		if err := rows.Scan(&rec.ID, &rec.AnalysisDate, &rec.BranchID, &rec.WarehouseID,
			&rec.ProductID, &rec.VariantID, &rec.StockLocationID, &rec.Quantity,
			&rec.Value, &rec.LastSoldAt, &rec.DaysSinceLastSale, &rec.Status,
			&rec.Recommendation); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListAging returns the aging snapshot for a date.
func (r *Repository) ListAging(ctx context.Context, branchID int64, date time.Time) ([]AgingRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, analysis_date, branch_id, warehouse_id, bucket, quantity, value, item_count
		FROM stock_aging
		WHERE branch_id = $1 AND analysis_date = $2
		ORDER BY warehouse_id, bucket`,
		branchID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AgingRecord
	for rows.Next() {
		var rec AgingRecord
		if err := rows.Scan(&rec.ID, &rec.AnalysisDate, &rec.BranchID, &rec.WarehouseID,
			&rec.Bucket, &rec.Quantity, &rec.Value, &rec.ItemCount); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
