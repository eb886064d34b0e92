package valuation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// txRepository persists valuation state inside an open pgx transaction. The
// ledger owns the transaction; valuation rows share its FOR UPDATE scope.
type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds valuation persistence to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetForUpdate(ctx context.Context, key Key) (Valuation, error) {
	var v Valuation
	var method string
	err := r.tx.QueryRow(ctx, `SELECT method, total_quantity, total_value, current_cost, updated_at
FROM inventory_valuations
WHERE product_id=$1 AND variant_id=$2 AND branch_id=$3
FOR UPDATE`, key.ProductID, key.VariantID, key.BranchID).
		Scan(&method, &v.TotalQuantity, &v.TotalValue, &v.CurrentCost, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Valuation{}, ErrValuationNotFound
		}
		return Valuation{}, err
	}
	v.Key = key
	v.Method = Method(method)
	return v, nil
}

func (r *txRepository) Insert(ctx context.Context, v Valuation) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO inventory_valuations (product_id, variant_id, branch_id, method, total_quantity, total_value, current_cost, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		v.Key.ProductID, v.Key.VariantID, v.Key.BranchID, string(v.Method), v.TotalQuantity, v.TotalValue, v.CurrentCost)
	return err
}

func (r *txRepository) Update(ctx context.Context, v Valuation) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_valuations
SET total_quantity=$4, total_value=$5, current_cost=$6, updated_at=NOW()
WHERE product_id=$1 AND variant_id=$2 AND branch_id=$3`,
		v.Key.ProductID, v.Key.VariantID, v.Key.BranchID, v.TotalQuantity, v.TotalValue, v.CurrentCost)
	return err
}

func (r *txRepository) ListOpenLayers(ctx context.Context, key Key) ([]CostLayer, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, receipt_date, quantity, remaining_quantity, unit_cost
FROM cost_layers
WHERE product_id=$1 AND variant_id=$2 AND branch_id=$3 AND remaining_quantity > 0
ORDER BY receipt_date ASC, id ASC`, key.ProductID, key.VariantID, key.BranchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layers []CostLayer
	for rows.Next() {
		var l CostLayer
		if err := rows.Scan(&l.ID, &l.ReceiptDate, &l.Quantity, &l.RemainingQuantity, &l.UnitCost); err != nil {
			return nil, err
		}
		layers = append(layers, l)
	}
	return layers, rows.Err()
}

func (r *txRepository) InsertLayer(ctx context.Context, key Key, layer CostLayer) (int64, error) {
	receipt := layer.ReceiptDate
	if receipt.IsZero() {
		receipt = time.Now().UTC()
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO cost_layers (product_id, variant_id, branch_id, receipt_date, quantity, remaining_quantity, unit_cost)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		key.ProductID, key.VariantID, key.BranchID, receipt, layer.Quantity, layer.RemainingQuantity, layer.UnitCost).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateLayerRemaining(ctx context.Context, layerID int64, remaining decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE cost_layers SET remaining_quantity=$2 WHERE id=$1`, layerID, remaining)
	return err
}
