package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/platform/db"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// ErrTransferNotFound indicates a missing transfer.
var ErrTransferNotFound = errors.New("transfer not found")

// Repository persists warehouse transfers in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	InsertTransfer(ctx context.Context, tr Transfer) (int64, error)
	InsertItem(ctx context.Context, item TransferItem) (int64, error)
	GetTransferForUpdate(ctx context.Context, transferID int64) (Transfer, error)
	ListItemsForUpdate(ctx context.Context, transferID int64) ([]TransferItem, error)
	UpdateItem(ctx context.Context, item TransferItem) error
	UpdateTransfer(ctx context.Context, tr Transfer) error
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

// GetTransfer loads a transfer with its items.
func (r *Repository) GetTransfer(ctx context.Context, transferID int64) (Transfer, []TransferItem, error) {
	tr, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT id, from_warehouse_id, from_branch_id, to_warehouse_id, to_branch_id, COALESCE(reference, ''), COALESCE(note, ''), status, created_at, shipped_at, completed_at
FROM warehouse_transfers WHERE id=$1`, transferID))
	if err != nil {
		return Transfer{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, transfer_id, product_id, variant_id, COALESCE(batch_number, ''), requested_quantity, shipped_quantity, received_quantity, shipped_unit_cost, valuation_method
FROM warehouse_transfer_items WHERE transfer_id=$1 ORDER BY id`, transferID)
	if err != nil {
		return Transfer{}, nil, err
	}
	defer rows.Close()
	var items []TransferItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return Transfer{}, nil, err
		}
		items = append(items, item)
	}
	return tr, items, rows.Err()
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var tr Transfer
	var status string
	var shippedAt, completedAt *time.Time
	err := row.Scan(&tr.ID, &tr.FromWarehouseID, &tr.FromBranchID, &tr.ToWarehouseID, &tr.ToBranchID,
		&tr.Reference, &tr.Note, &status, &tr.CreatedAt, &shippedAt, &completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transfer{}, ErrTransferNotFound
		}
		return Transfer{}, err
	}
	tr.Status = Status(status)
	if shippedAt != nil {
		tr.ShippedAt = *shippedAt
	}
	if completedAt != nil {
		tr.CompletedAt = *completedAt
	}
	return tr, nil
}

func scanItem(row pgx.Row) (TransferItem, error) {
	var item TransferItem
	var method string
	err := row.Scan(&item.ID, &item.TransferID, &item.ProductID, &item.VariantID, &item.BatchNumber,
		&item.RequestedQuantity, &item.ShippedQuantity, &item.ReceivedQuantity, &item.ShippedUnitCost, &method)
	if err != nil {
		return TransferItem{}, err
	}
	item.Method = valuation.Method(method)
	return item, nil
}

func (r *txRepository) InsertTransfer(ctx context.Context, tr Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouse_transfers (from_warehouse_id, from_branch_id, to_warehouse_id, to_branch_id, reference, note, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		tr.FromWarehouseID, tr.FromBranchID, tr.ToWarehouseID, tr.ToBranchID,
		nullStr(tr.Reference), nullStr(tr.Note), string(tr.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item TransferItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouse_transfer_items (transfer_id, product_id, variant_id, batch_number, requested_quantity, shipped_quantity, received_quantity, shipped_unit_cost, valuation_method)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		item.TransferID, item.ProductID, item.VariantID, nullStr(item.BatchNumber),
		item.RequestedQuantity, item.ShippedQuantity, item.ReceivedQuantity, item.ShippedUnitCost, string(item.Method)).Scan(&id)
	return id, err
}

func (r *txRepository) GetTransferForUpdate(ctx context.Context, transferID int64) (Transfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx, `SELECT id, from_warehouse_id, from_branch_id, to_warehouse_id, to_branch_id, COALESCE(reference, ''), COALESCE(note, ''), status, created_at, shipped_at, completed_at
FROM warehouse_transfers WHERE id=$1 FOR UPDATE`, transferID))
}

func (r *txRepository) ListItemsForUpdate(ctx context.Context, transferID int64) ([]TransferItem, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, transfer_id, product_id, variant_id, COALESCE(batch_number, ''), requested_quantity, shipped_quantity, received_quantity, shipped_unit_cost, valuation_method
FROM warehouse_transfer_items WHERE transfer_id=$1 ORDER BY id FOR UPDATE`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransferItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *txRepository) UpdateItem(ctx context.Context, item TransferItem) error {
	_, err := r.tx.Exec(ctx, `UPDATE warehouse_transfer_items SET shipped_quantity=$2, received_quantity=$3, shipped_unit_cost=$4 WHERE id=$1`,
		item.ID, item.ShippedQuantity, item.ReceivedQuantity, item.ShippedUnitCost)
	return err
}

func (r *txRepository) UpdateTransfer(ctx context.Context, tr Transfer) error {
	_, err := r.tx.Exec(ctx, `UPDATE warehouse_transfers SET status=$2, shipped_at=$3, completed_at=$4 WHERE id=$1`,
		tr.ID, string(tr.Status), nullTime(tr.ShippedAt), nullTime(tr.CompletedAt))
	return err
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
