package warehouse

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// Repository persists warehouses and their locations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListWarehouses applies filters and pagination, returning the page and the
// unpaginated total.
func (r *Repository) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error) {
	query := `SELECT id, branch_id, code, name, address, is_active, created_at, updated_at
		FROM warehouses WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM warehouses WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.BranchID > 0 {
		argCount++
		clause := ` AND branch_id = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.BranchID)
	}
	if filters.Search != "" {
		argCount++
		p := `$` + strconv.Itoa(argCount)
		clause := ` AND (name ILIKE ` + p + ` OR code ILIKE ` + p + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var warehouses []Warehouse
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.BranchID, &w.Code, &w.Name, &w.Address,
			&w.IsActive, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, 0, err
		}
		warehouses = append(warehouses, w)
	}
	return warehouses, total, rows.Err()
}

// GetWarehouse fetches one warehouse.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	var w Warehouse
	err := r.pool.QueryRow(ctx, `SELECT id, branch_id, code, name, address, is_active, created_at, updated_at
		FROM warehouses WHERE id = $1`, id).
		Scan(&w.ID, &w.BranchID, &w.Code, &w.Name, &w.Address, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, err
}

// CreateWarehouse inserts a warehouse.
func (r *Repository) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouses (branch_id, code, name, address, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		w.BranchID, w.Code, w.Name, w.Address, w.IsActive, now).Scan(&w.ID)
	if err != nil {
		return Warehouse{}, err
	}
	w.CreatedAt = now
	w.UpdatedAt = now
	return w, nil
}

// UpdateWarehouse updates mutable warehouse fields.
func (r *Repository) UpdateWarehouse(ctx context.Context, id int64, w Warehouse) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouses
		SET code = $2, name = $3, address = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1`,
		id, w.Code, w.Name, w.Address, w.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListLocations lists slots of one warehouse.
func (r *Repository) ListLocations(ctx context.Context, filters ListFilters) ([]Location, int, error) {
	query := `SELECT id, warehouse_id, location_code, zone, location_type,
		COALESCE(max_capacity, 0), is_active, created_at, updated_at
		FROM warehouse_locations WHERE warehouse_id = $1`
	countQuery := `SELECT COUNT(*) FROM warehouse_locations WHERE warehouse_id = $1`
	args := []interface{}{filters.WarehouseID}
	argCount := 1

	if filters.Zone != "" {
		argCount++
		clause := ` AND zone = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, filters.Zone)
	}
	if filters.Search != "" {
		argCount++
		clause := ` AND location_code ILIKE $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		clause := ` AND is_active = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY location_code`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filters.Page - 1) * filters.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.WarehouseID, &loc.LocationCode, &loc.Zone,
			&loc.LocationType, &loc.MaxCapacity, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt); err != nil {
			return nil, 0, err
		}
		locations = append(locations, loc)
	}
	return locations, total, rows.Err()
}

// GetLocation fetches one slot.
func (r *Repository) GetLocation(ctx context.Context, id int64) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, location_code, zone, location_type,
		COALESCE(max_capacity, 0), is_active, created_at, updated_at
		FROM warehouse_locations WHERE id = $1`, id).
		Scan(&loc.ID, &loc.WarehouseID, &loc.LocationCode, &loc.Zone, &loc.LocationType,
			&loc.MaxCapacity, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, shared.ErrNotFound
	}
	return loc, err
}

// CreateLocation inserts a slot.
func (r *Repository) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO warehouse_locations
		(warehouse_id, location_code, zone, location_type, max_capacity, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7, $7) RETURNING id`,
		loc.WarehouseID, loc.LocationCode, loc.Zone, loc.LocationType,
		loc.MaxCapacity, loc.IsActive, now).Scan(&loc.ID)
	if err != nil {
		return Location{}, err
	}
	loc.CreatedAt = now
	loc.UpdatedAt = now
	return loc, nil
}

// UpdateLocation updates mutable slot fields. Deactivating a slot hides it
// from the allocator without touching stock already on it.
func (r *Repository) UpdateLocation(ctx context.Context, id int64, loc Location) error {
	tag, err := r.pool.Exec(ctx, `UPDATE warehouse_locations
		SET location_code = $2, zone = $3, location_type = $4,
		    max_capacity = NULLIF($5, 0), is_active = $6, updated_at = NOW()
		WHERE id = $1`,
		id, loc.LocationCode, loc.Zone, loc.LocationType, loc.MaxCapacity, loc.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
