package valuation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TxRepository exposes valuation persistence bound to an open transaction.
// The transaction must hold the row lock for the valuation key; see ledger.
type TxRepository interface {
	GetForUpdate(ctx context.Context, key Key) (Valuation, error)
	Insert(ctx context.Context, v Valuation) error
	Update(ctx context.Context, v Valuation) error
	ListOpenLayers(ctx context.Context, key Key) ([]CostLayer, error)
	InsertLayer(ctx context.Context, key Key, layer CostLayer) (int64, error)
	UpdateLayerRemaining(ctx context.Context, layerID int64, remaining decimal.Decimal) error
}

// Engine performs cost-layer bookkeeping under FIFO, LIFO and weighted average.
// It is stateless; every call runs against the caller's transaction.
type Engine struct{}

// NewEngine builds Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Receive applies a stock receipt to the valuation key. The record is created
// on first receipt with the given method; subsequent receipts must use the
// same method.
func (e *Engine) Receive(ctx context.Context, repo TxRepository, key Key, method Method, qty, unitCost decimal.Decimal, receiptDate time.Time) (Valuation, error) {
	if !method.Valid() {
		return Valuation{}, fmt.Errorf("valuation: unknown method %q", method)
	}
	if qty.Sign() <= 0 {
		return Valuation{}, ErrInvalidQuantity
	}
	if unitCost.Sign() < 0 {
		return Valuation{}, ErrInvalidUnitCost
	}
	if receiptDate.IsZero() {
		receiptDate = time.Now().UTC()
	}

	v, err := repo.GetForUpdate(ctx, key)
	created := false
	if err != nil {
		if !errors.Is(err, ErrValuationNotFound) {
			return Valuation{}, err
		}
		v = Valuation{Key: key, Method: method}
		created = true
	}
	if v.Method != method {
		return Valuation{}, ErrInvalidMethod
	}

	value := qty.Mul(unitCost)
	newQty := v.TotalQuantity.Add(qty)
	newValue := v.TotalValue.Add(value)

	v.TotalQuantity = newQty
	v.TotalValue = newValue
	if newQty.Sign() > 0 {
		v.CurrentCost = newValue.DivRound(newQty, costScale)
	} else {
		v.CurrentCost = decimal.Zero
	}

	if method.UsesLayers() {
		layer := CostLayer{
			ReceiptDate:       receiptDate,
			Quantity:          qty,
			RemainingQuantity: qty,
			UnitCost:          unitCost,
		}
		if _, err := repo.InsertLayer(ctx, key, layer); err != nil {
			return Valuation{}, err
		}
	}

	if created {
		if err := repo.Insert(ctx, v); err != nil {
			return Valuation{}, err
		}
	} else {
		if err := repo.Update(ctx, v); err != nil {
			return Valuation{}, err
		}
	}
	return v, nil
}

// Consume removes qty from the valuation key and returns the cost removed.
// FIFO and LIFO drain layers in receipt order; weighted average prices the
// whole consumption at the blended current cost.
func (e *Engine) Consume(ctx context.Context, repo TxRepository, key Key, qty decimal.Decimal) (ConsumeResult, Valuation, error) {
	if qty.Sign() <= 0 {
		return ConsumeResult{}, Valuation{}, ErrInvalidQuantity
	}

	v, err := repo.GetForUpdate(ctx, key)
	if err != nil {
		if errors.Is(err, ErrValuationNotFound) {
			return ConsumeResult{}, Valuation{}, ErrInsufficientStock
		}
		return ConsumeResult{}, Valuation{}, err
	}

	if v.Method == MethodWeightedAverage {
		result, err := consumeAverage(&v, qty)
		if err != nil {
			return ConsumeResult{}, Valuation{}, err
		}
		if err := repo.Update(ctx, v); err != nil {
			return ConsumeResult{}, Valuation{}, err
		}
		return result, v, nil
	}

	layers, err := repo.ListOpenLayers(ctx, key)
	if err != nil {
		return ConsumeResult{}, Valuation{}, err
	}
	result, err := consumeLayers(&v, layers, qty)
	if err != nil {
		return ConsumeResult{}, Valuation{}, err
	}
	for _, draw := range result.Draws {
		remaining := remainingAfterDraw(layers, draw)
		if err := repo.UpdateLayerRemaining(ctx, draw.LayerID, remaining); err != nil {
			return ConsumeResult{}, Valuation{}, err
		}
	}
	if err := repo.Update(ctx, v); err != nil {
		return ConsumeResult{}, Valuation{}, err
	}
	return result, v, nil
}

// consumeAverage prices the consumption at the blended cost and floors the
// aggregates at zero so book value never goes negative.
func consumeAverage(v *Valuation, qty decimal.Decimal) (ConsumeResult, error) {
	if qty.GreaterThan(v.TotalQuantity) {
		return ConsumeResult{}, ErrInsufficientStock
	}
	unit := v.CurrentCost
	cost := qty.Mul(unit)
	v.TotalQuantity = v.TotalQuantity.Sub(qty)
	v.TotalValue = v.TotalValue.Sub(cost)
	if v.TotalQuantity.Sign() <= 0 {
		v.TotalQuantity = decimal.Zero
		v.TotalValue = decimal.Zero
		v.CurrentCost = decimal.Zero
	}
	return ConsumeResult{Cost: cost, UnitCost: unit, Draws: nil}, nil
}

// consumeLayers drains layers oldest-first (FIFO) or newest-first (LIFO),
// mutating RemainingQuantity in place and recording each draw.
func consumeLayers(v *Valuation, layers []CostLayer, qty decimal.Decimal) (ConsumeResult, error) {
	orderLayers(v.Method, layers)

	available := decimal.Zero
	for _, l := range layers {
		available = available.Add(l.RemainingQuantity)
	}
	if qty.GreaterThan(available) {
		return ConsumeResult{}, ErrInsufficientStock
	}

	remaining := qty
	cost := decimal.Zero
	draws := make([]LayerDraw, 0, 2)
	for i := range layers {
		if remaining.Sign() <= 0 {
			break
		}
		layer := &layers[i]
		if layer.RemainingQuantity.Sign() <= 0 {
			continue
		}
		take := decimal.Min(remaining, layer.RemainingQuantity)
		layer.RemainingQuantity = layer.RemainingQuantity.Sub(take)
		cost = cost.Add(take.Mul(layer.UnitCost))
		draws = append(draws, LayerDraw{LayerID: layer.ID, Quantity: take, UnitCost: layer.UnitCost})
		remaining = remaining.Sub(take)
	}

	v.TotalQuantity = v.TotalQuantity.Sub(qty)
	v.TotalValue = v.TotalValue.Sub(cost)
	if v.TotalQuantity.Sign() > 0 {
		v.CurrentCost = v.TotalValue.DivRound(v.TotalQuantity, costScale)
	} else {
		v.TotalQuantity = decimal.Zero
		v.TotalValue = decimal.Zero
		v.CurrentCost = decimal.Zero
	}

	unitCost := decimal.Zero
	if qty.Sign() > 0 {
		unitCost = cost.DivRound(qty, costScale)
	}
	return ConsumeResult{Cost: cost, UnitCost: unitCost, Draws: draws}, nil
}

// orderLayers sorts by receipt date with the layer id as a deterministic
// tie-break, ascending for FIFO and descending for LIFO.
func orderLayers(method Method, layers []CostLayer) {
	sort.SliceStable(layers, func(i, j int) bool {
		a, b := layers[i], layers[j]
		if method == MethodLIFO {
			if !a.ReceiptDate.Equal(b.ReceiptDate) {
				return a.ReceiptDate.After(b.ReceiptDate)
			}
			return a.ID > b.ID
		}
		if !a.ReceiptDate.Equal(b.ReceiptDate) {
			return a.ReceiptDate.Before(b.ReceiptDate)
		}
		return a.ID < b.ID
	})
}

func remainingAfterDraw(layers []CostLayer, draw LayerDraw) decimal.Decimal {
	for i := range layers {
		if layers[i].ID == draw.LayerID {
			return layers[i].RemainingQuantity
		}
	}
	return decimal.Zero
}
