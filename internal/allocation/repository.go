package allocation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the read-only candidate searches against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPutAwayCandidates returns every active location of the warehouse with
// its aggregate stock and whether it already holds the product.
func (r *Repository) ListPutAwayCandidates(ctx context.Context, warehouseID, productID int64) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `SELECT wl.id, wl.location_code, wl.zone, wl.location_type, COALESCE(wl.max_capacity, 0),
COALESCE(SUM(sl.quantity), 0) AS current_qty,
COALESCE(BOOL_OR(sl.product_id = $2), FALSE) AS holds_product,
MIN(sl.put_away_date) AS oldest_put_away,
MIN(sl.expiry_date) AS nearest_expiry
FROM warehouse_locations wl
LEFT JOIN stock_locations sl ON sl.warehouse_location_id = wl.id
WHERE wl.warehouse_id = $1 AND wl.is_active
GROUP BY wl.id, wl.location_code, wl.zone, wl.location_type, wl.max_capacity
ORDER BY wl.id`, warehouseID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		var oldest, nearest *time.Time
		if err := rows.Scan(&c.LocationID, &c.LocationCode, &c.Zone, &c.LocationType, &c.MaxCapacity,
			&c.CurrentQuantity, &c.HoldsProduct, &oldest, &nearest); err != nil {
			return nil, err
		}
		if oldest != nil {
			c.OldestPutAway = *oldest
		}
		if nearest != nil {
			c.NearestExpiry = *nearest
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListPickCandidates returns stock locations of the product with available
// quantity, optionally narrowed to one batch.
func (r *Repository) ListPickCandidates(ctx context.Context, warehouseID, productID, variantID int64, batch string) ([]PickCandidate, error) {
	rows, err := r.pool.Query(ctx, `SELECT sl.id, sl.warehouse_location_id, sl.batch_number,
sl.quantity - sl.reserved_quantity AS available, sl.put_away_date, sl.expiry_date
FROM stock_locations sl
JOIN warehouse_locations wl ON wl.id = sl.warehouse_location_id AND wl.is_active
WHERE sl.warehouse_id = $1 AND sl.product_id = $2 AND sl.variant_id = $3
  AND ($4 = '' OR sl.batch_number = $4)
  AND sl.quantity - sl.reserved_quantity > 0
ORDER BY sl.id`, warehouseID, productID, variantID, batch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []PickCandidate
	for rows.Next() {
		var c PickCandidate
		var expiry *time.Time
		if err := rows.Scan(&c.StockLocationID, &c.LocationID, &c.BatchNumber, &c.Available, &c.PutAwayDate, &expiry); err != nil {
			return nil, err
		}
		if expiry != nil {
			c.ExpiryDate = *expiry
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}
