package picking

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
)

// Repository persists pick lists in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ErrPickListNotFound indicates a missing pick list.
var ErrPickListNotFound = errors.New("pick list not found")

// ErrPickItemNotFound indicates a missing pick list item.
var ErrPickItemNotFound = errors.New("pick list item not found")

// TxRepository exposes transactional operations used by the service.
// Ledger() binds the stock ledger to the same transaction so an item
// transition and its quantity effect commit together.
type TxRepository interface {
	InsertPickList(ctx context.Context, list PickList) (int64, error)
	InsertItem(ctx context.Context, item PickListItem) (int64, error)
	GetItemForUpdate(ctx context.Context, itemID int64) (PickListItem, error)
	UpdateItem(ctx context.Context, item PickListItem) error
	GetListForUpdate(ctx context.Context, listID int64) (PickList, error)
	UpdateListStatus(ctx context.Context, listID int64, status ListStatus, completedAt time.Time) error
	CountOpenItems(ctx context.Context, listID int64) (int, error)
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

// GetPickList loads a pick list with its items.
func (r *Repository) GetPickList(ctx context.Context, listID int64) (PickList, []PickListItem, error) {
	var list PickList
	var status, strategy, movementType string
	var completedAt *time.Time
	err := r.pool.QueryRow(ctx, `SELECT id, warehouse_id, branch_id, reference_type, COALESCE(reference_id::text, ''), strategy, movement_type, status, created_at, completed_at
FROM pick_lists WHERE id=$1`, listID).
		Scan(&list.ID, &list.WarehouseID, &list.BranchID, &list.ReferenceType, &list.ReferenceID, &strategy, &movementType, &status, &list.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PickList{}, nil, ErrPickListNotFound
		}
		return PickList{}, nil, err
	}
	list.Status = ListStatus(status)
	list.Strategy = allocation.PickStrategy(strategy)
	list.MovementType = ledger.MovementType(movementType)
	if completedAt != nil {
		list.CompletedAt = *completedAt
	}

	rows, err := r.pool.Query(ctx, `SELECT id, pick_list_id, product_id, variant_id, stock_location_id, batch_number, quantity_required, quantity_picked, status
FROM pick_list_items WHERE pick_list_id=$1 ORDER BY id`, listID)
	if err != nil {
		return PickList{}, nil, err
	}
	defer rows.Close()
	var items []PickListItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return PickList{}, nil, err
		}
		items = append(items, item)
	}
	return list, items, rows.Err()
}

func scanItem(row pgx.Row) (PickListItem, error) {
	var item PickListItem
	var status string
	err := row.Scan(&item.ID, &item.PickListID, &item.ProductID, &item.VariantID, &item.StockLocationID,
		&item.BatchNumber, &item.QuantityRequired, &item.QuantityPicked, &status)
	if err != nil {
		return PickListItem{}, err
	}
	item.Status = ItemStatus(status)
	return item, nil
}

func (r *txRepository) InsertPickList(ctx context.Context, list PickList) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO pick_lists (warehouse_id, branch_id, reference_type, reference_id, strategy, movement_type, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		list.WarehouseID, list.BranchID, list.ReferenceType, nullStr(list.ReferenceID),
		string(list.Strategy), string(list.MovementType), string(list.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item PickListItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO pick_list_items (pick_list_id, product_id, variant_id, stock_location_id, batch_number, quantity_required, quantity_picked, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.PickListID, item.ProductID, item.VariantID, item.StockLocationID, item.BatchNumber,
		item.QuantityRequired, item.QuantityPicked, string(item.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (PickListItem, error) {
	item, err := scanItem(r.tx.QueryRow(ctx, `SELECT id, pick_list_id, product_id, variant_id, stock_location_id, batch_number, quantity_required, quantity_picked, status
FROM pick_list_items WHERE id=$1 FOR UPDATE`, itemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PickListItem{}, ErrPickItemNotFound
		}
		return PickListItem{}, err
	}
	return item, nil
}

func (r *txRepository) UpdateItem(ctx context.Context, item PickListItem) error {
	_, err := r.tx.Exec(ctx, `UPDATE pick_list_items SET quantity_picked=$2, status=$3 WHERE id=$1`,
		item.ID, item.QuantityPicked, string(item.Status))
	return err
}

func (r *txRepository) GetListForUpdate(ctx context.Context, listID int64) (PickList, error) {
	var list PickList
	var status, strategy, movementType string
	err := r.tx.QueryRow(ctx, `SELECT id, warehouse_id, branch_id, reference_type, COALESCE(reference_id::text, ''), strategy, movement_type, status, created_at
FROM pick_lists WHERE id=$1 FOR UPDATE`, listID).
		Scan(&list.ID, &list.WarehouseID, &list.BranchID, &list.ReferenceType, &list.ReferenceID, &strategy, &movementType, &status, &list.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PickList{}, ErrPickListNotFound
		}
		return PickList{}, err
	}
	list.Status = ListStatus(status)
	list.Strategy = allocation.PickStrategy(strategy)
	list.MovementType = ledger.MovementType(movementType)
	return list, nil
}

func (r *txRepository) UpdateListStatus(ctx context.Context, listID int64, status ListStatus, completedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE pick_lists SET status=$2, completed_at=$3 WHERE id=$1`,
		listID, string(status), nullTime(completedAt))
	return err
}

func (r *txRepository) CountOpenItems(ctx context.Context, listID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM pick_list_items WHERE pick_list_id=$1 AND status IN ('pending','picking')`, listID).Scan(&count)
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
