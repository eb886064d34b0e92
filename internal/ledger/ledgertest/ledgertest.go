// Package ledgertest provides an in-memory stock ledger repository for
// workflow tests. It mirrors the ordering and error behaviour of the SQL
// repository without a database.
package ledgertest

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// MemoryRepo holds ledger and valuation state in maps.
type MemoryRepo struct {
	Locations  map[int64]ledger.StockLocation
	Movements  []ledger.StockMovement
	Valuations map[valuation.Key]valuation.Valuation
	Layers     map[valuation.Key][]valuation.CostLayer

	nextLocID  int64
	nextMoveID int64
	nextLayer  int64
}

// NewMemoryRepo returns an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		Locations:  make(map[int64]ledger.StockLocation),
		Valuations: make(map[valuation.Key]valuation.Valuation),
		Layers:     make(map[valuation.Key][]valuation.CostLayer),
	}
}

// Tx returns a ledger.TxRepository view over the repo.
func (r *MemoryRepo) Tx() ledger.TxRepository {
	return &memoryTx{repo: r}
}

// WithTx satisfies ledger.RepositoryPort. There is no rollback; failed
// callbacks leave partial state, which the workflow tests never rely on.
func (r *MemoryRepo) WithTx(_ context.Context, fn func(context.Context, ledger.TxRepository) error) error {
	return fn(context.Background(), &memoryTx{repo: r})
}

// SumAvailable satisfies ledger.RepositoryPort.
func (r *MemoryRepo) SumAvailable(_ context.Context, productID, variantID, branchID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, loc := range r.Locations {
		if loc.ProductID == productID && loc.VariantID == variantID && loc.BranchID == branchID {
			sum = sum.Add(loc.Available())
		}
	}
	return sum, nil
}

// ListMovements satisfies ledger.RepositoryPort.
func (r *MemoryRepo) ListMovements(_ context.Context, filter ledger.MovementFilter) ([]ledger.StockMovement, error) {
	var out []ledger.StockMovement
	for _, m := range r.Movements {
		if filter.ProductID != 0 && m.ProductID != filter.ProductID {
			continue
		}
		if filter.BranchID != 0 && m.BranchID != filter.BranchID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// Seed inserts a stock location with its valuation so a test can start
// from stocked shelves. The valuation uses the weighted average method.
func (r *MemoryRepo) Seed(loc ledger.StockLocation, unitCost decimal.Decimal) ledger.StockLocation {
	r.nextLocID++
	loc.ID = r.nextLocID
	r.Locations[loc.ID] = loc
	key := loc.ValuationKey()
	rec, ok := r.Valuations[key]
	if !ok {
		rec = valuation.Valuation{Key: key, Method: valuation.MethodWeightedAverage}
	}
	rec.TotalQuantity = rec.TotalQuantity.Add(loc.Quantity)
	rec.CurrentCost = unitCost
	rec.TotalValue = rec.TotalQuantity.Mul(unitCost)
	r.Valuations[key] = rec
	return loc
}

type memoryTx struct {
	repo *MemoryRepo
}

func (tx *memoryTx) GetStockLocationForUpdate(_ context.Context, id int64) (ledger.StockLocation, error) {
	if loc, ok := tx.repo.Locations[id]; ok {
		return loc, nil
	}
	return ledger.StockLocation{}, ledger.ErrStockLocationNotFound
}

func (tx *memoryTx) FindStockLocationForUpdate(_ context.Context, warehouseLocationID, productID, variantID int64, batch string) (ledger.StockLocation, error) {
	for _, loc := range tx.repo.Locations {
		if loc.WarehouseLocationID == warehouseLocationID && loc.ProductID == productID && loc.VariantID == variantID && loc.BatchNumber == batch {
			return loc, nil
		}
	}
	return ledger.StockLocation{}, ledger.ErrStockLocationNotFound
}

func (tx *memoryTx) ListProductStockForUpdate(_ context.Context, productID, variantID, branchID int64) ([]ledger.StockLocation, error) {
	var locs []ledger.StockLocation
	for _, loc := range tx.repo.Locations {
		if loc.ProductID == productID && loc.VariantID == variantID && loc.BranchID == branchID {
			locs = append(locs, loc)
		}
	}
	sort.Slice(locs, func(i, j int) bool {
		if !locs[i].PutAwayDate.Equal(locs[j].PutAwayDate) {
			return locs[i].PutAwayDate.Before(locs[j].PutAwayDate)
		}
		return locs[i].ID < locs[j].ID
	})
	return locs, nil
}

func (tx *memoryTx) InsertStockLocation(_ context.Context, loc ledger.StockLocation) (int64, error) {
	tx.repo.nextLocID++
	loc.ID = tx.repo.nextLocID
	tx.repo.Locations[loc.ID] = loc
	return loc.ID, nil
}

func (tx *memoryTx) UpdateStockLocation(_ context.Context, loc ledger.StockLocation) error {
	if _, ok := tx.repo.Locations[loc.ID]; !ok {
		return ledger.ErrStockLocationNotFound
	}
	tx.repo.Locations[loc.ID] = loc
	return nil
}

func (tx *memoryTx) InsertMovement(_ context.Context, m ledger.StockMovement) (int64, error) {
	tx.repo.nextMoveID++
	m.ID = tx.repo.nextMoveID
	tx.repo.Movements = append(tx.repo.Movements, m)
	return m.ID, nil
}

func (tx *memoryTx) Valuation() valuation.TxRepository {
	return &memoryValuationTx{repo: tx.repo}
}

type memoryValuationTx struct {
	repo *MemoryRepo
}

func (v *memoryValuationTx) GetForUpdate(_ context.Context, key valuation.Key) (valuation.Valuation, error) {
	if rec, ok := v.repo.Valuations[key]; ok {
		return rec, nil
	}
	return valuation.Valuation{}, valuation.ErrValuationNotFound
}

func (v *memoryValuationTx) Insert(_ context.Context, rec valuation.Valuation) error {
	v.repo.Valuations[rec.Key] = rec
	return nil
}

func (v *memoryValuationTx) Update(_ context.Context, rec valuation.Valuation) error {
	v.repo.Valuations[rec.Key] = rec
	return nil
}

func (v *memoryValuationTx) ListOpenLayers(_ context.Context, key valuation.Key) ([]valuation.CostLayer, error) {
	var out []valuation.CostLayer
	for _, layer := range v.repo.Layers[key] {
		if layer.RemainingQuantity.Sign() > 0 {
			out = append(out, layer)
		}
	}
	return out, nil
}

func (v *memoryValuationTx) InsertLayer(_ context.Context, key valuation.Key, layer valuation.CostLayer) (int64, error) {
	v.repo.nextLayer++
	layer.ID = v.repo.nextLayer
	v.repo.Layers[key] = append(v.repo.Layers[key], layer)
	return layer.ID, nil
}

func (v *memoryValuationTx) UpdateLayerRemaining(_ context.Context, layerID int64, remaining decimal.Decimal) error {
	for key, layers := range v.repo.Layers {
		for i := range layers {
			if layers[i].ID == layerID {
				v.repo.Layers[key][i].RemainingQuantity = remaining
				return nil
			}
		}
	}
	return valuation.ErrValuationNotFound
}
