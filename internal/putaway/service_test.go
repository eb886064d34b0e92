package putaway

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger/ledgertest"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

type memoryPutAwayRepo struct {
	stock    *ledgertest.MemoryRepo
	putAways map[int64]PutAway
	items    map[int64]PutAwayItem
	nextPA   int64
	nextItem int64
}

func newMemoryPutAwayRepo(stock *ledgertest.MemoryRepo) *memoryPutAwayRepo {
	return &memoryPutAwayRepo{stock: stock, putAways: make(map[int64]PutAway), items: make(map[int64]PutAwayItem)}
}

func (r *memoryPutAwayRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(context.Background(), &memoryPutAwayTx{repo: r})
}

func (r *memoryPutAwayRepo) GetPutAway(_ context.Context, id int64) (PutAway, []PutAwayItem, error) {
	pa, ok := r.putAways[id]
	if !ok {
		return PutAway{}, nil, ErrPutAwayNotFound
	}
	var items []PutAwayItem
	for _, item := range r.items {
		if item.PutAwayID == id {
			items = append(items, item)
		}
	}
	return pa, items, nil
}

type memoryPutAwayTx struct {
	repo *memoryPutAwayRepo
}

func (tx *memoryPutAwayTx) InsertPutAway(_ context.Context, pa PutAway) (int64, error) {
	tx.repo.nextPA++
	pa.ID = tx.repo.nextPA
	pa.CreatedAt = time.Now()
	tx.repo.putAways[pa.ID] = pa
	return pa.ID, nil
}

func (tx *memoryPutAwayTx) InsertItem(_ context.Context, item PutAwayItem) (int64, error) {
	tx.repo.nextItem++
	item.ID = tx.repo.nextItem
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryPutAwayTx) GetItemForUpdate(_ context.Context, itemID int64) (PutAwayItem, error) {
	if item, ok := tx.repo.items[itemID]; ok {
		return item, nil
	}
	return PutAwayItem{}, ErrPutAwayItemNotFound
}

func (tx *memoryPutAwayTx) UpdateItem(_ context.Context, item PutAwayItem) error {
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryPutAwayTx) GetPutAwayForUpdate(_ context.Context, id int64) (PutAway, error) {
	if pa, ok := tx.repo.putAways[id]; ok {
		return pa, nil
	}
	return PutAway{}, ErrPutAwayNotFound
}

func (tx *memoryPutAwayTx) UpdateStatus(_ context.Context, id int64, status ListStatus, completedAt time.Time) error {
	pa := tx.repo.putAways[id]
	pa.Status = status
	pa.CompletedAt = completedAt
	tx.repo.putAways[id] = pa
	return nil
}

func (tx *memoryPutAwayTx) CountOpenItems(_ context.Context, id int64) (int, error) {
	count := 0
	for _, item := range tx.repo.items {
		if item.PutAwayID == id && item.Status != ItemCompleted {
			count++
		}
	}
	return count, nil
}

func (tx *memoryPutAwayTx) Ledger() ledger.TxRepository {
	return tx.repo.stock.Tx()
}

type stubAllocator struct {
	candidates map[int64]allocation.Candidate
	err        error
}

func (a *stubAllocator) SuggestPutAwayLocation(_ context.Context, _, productID int64, _ decimal.Decimal, _ allocation.PutAwayStrategy) (allocation.Candidate, error) {
	if a.err != nil {
		return allocation.Candidate{}, a.err
	}
	return a.candidates[productID], nil
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestService(stock *ledgertest.MemoryRepo, alloc AllocatorPort) (*Service, *memoryPutAwayRepo) {
	repo := newMemoryPutAwayRepo(stock)
	ledgerSvc := ledger.NewService(stock, valuation.NewEngine(), nil, nil, nil, ledger.ServiceConfig{})
	return NewService(repo, ledgerSvc, alloc, nil), repo
}

func TestCreatePutAwaySuggestsWithoutBookingStock(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	alloc := &stubAllocator{candidates: map[int64]allocation.Candidate{
		100: {LocationID: 11, LocationCode: "A-01-01"},
	}}
	svc, _ := newTestService(stock, alloc)

	pa, items, err := svc.CreatePutAway(context.Background(), CreateInput{
		WarehouseID:   1,
		BranchID:      1,
		ReferenceType: "grn",
		ReferenceID:   "GRN-7",
		Lines: []LineInput{{
			ProductID: 100,
			Quantity:  d("10"),
			UnitCost:  d("4"),
			Method:    valuation.MethodFIFO,
		}},
	})
	require.NoError(t, err)
	require.Equal(t, ListPending, pa.Status)
	require.Len(t, items, 1)
	require.Equal(t, int64(11), items[0].SuggestedLocationID)
	// Nothing enters the ledger until the item is shelved.
	require.Empty(t, stock.Locations)
}

func TestCreatePutAwayNoLocationFailsWhole(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	alloc := &stubAllocator{err: shared.ErrNoLocationAvailable}
	svc, repo := newTestService(stock, alloc)

	_, _, err := svc.CreatePutAway(context.Background(), CreateInput{
		WarehouseID: 1,
		BranchID:    1,
		Lines:       []LineInput{{ProductID: 100, Quantity: d("10"), UnitCost: d("4")}},
	})
	require.ErrorIs(t, err, shared.ErrNoLocationAvailable)
	require.Empty(t, repo.putAways)
}

func TestCompleteItemBooksStockAtSuggestedLocation(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	alloc := &stubAllocator{candidates: map[int64]allocation.Candidate{
		100: {LocationID: 11},
	}}
	svc, _ := newTestService(stock, alloc)

	pa, items, err := svc.CreatePutAway(context.Background(), CreateInput{
		WarehouseID: 1,
		BranchID:    1,
		ReferenceID: "GRN-7",
		Lines: []LineInput{{
			ProductID: 100,
			Quantity:  d("10"),
			UnitCost:  d("4"),
			Method:    valuation.MethodFIFO,
		}},
	})
	require.NoError(t, err)

	item, movement, err := svc.CompleteItem(context.Background(), CompleteInput{ItemID: items[0].ID})
	require.NoError(t, err)
	require.Equal(t, ItemCompleted, item.Status)
	require.Equal(t, int64(11), item.ActualLocationID)
	require.Equal(t, ledger.MovementIn, movement.Type)
	require.True(t, movement.Quantity.Equal(d("10")))

	require.Len(t, stock.Locations, 1)
	for _, loc := range stock.Locations {
		require.Equal(t, int64(11), loc.WarehouseLocationID)
		require.True(t, loc.Quantity.Equal(d("10")))
	}

	got, _, err := svc.GetPutAway(context.Background(), pa.ID)
	require.NoError(t, err)
	require.Equal(t, ListCompleted, got.Status)
}

func TestCompleteItemOverrideLocation(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	alloc := &stubAllocator{candidates: map[int64]allocation.Candidate{
		100: {LocationID: 11},
	}}
	svc, _ := newTestService(stock, alloc)

	_, items, err := svc.CreatePutAway(context.Background(), CreateInput{
		WarehouseID: 1,
		BranchID:    1,
		Lines:       []LineInput{{ProductID: 100, Quantity: d("10"), UnitCost: d("4")}},
	})
	require.NoError(t, err)

	item, _, err := svc.CompleteItem(context.Background(), CompleteInput{ItemID: items[0].ID, ActualLocationID: 22})
	require.NoError(t, err)
	require.Equal(t, int64(22), item.ActualLocationID)

	// Repeating with the same shelf is a no-op, a different shelf conflicts.
	_, _, err = svc.CompleteItem(context.Background(), CompleteInput{ItemID: item.ID, ActualLocationID: 22})
	require.NoError(t, err)
	require.Len(t, stock.Movements, 1)

	_, _, err = svc.CompleteItem(context.Background(), CompleteInput{ItemID: item.ID, ActualLocationID: 33})
	require.ErrorIs(t, err, shared.ErrConflictingState)
}

func TestStartItemMarksBatchPutting(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	alloc := &stubAllocator{candidates: map[int64]allocation.Candidate{
		100: {LocationID: 11},
		200: {LocationID: 12},
	}}
	svc, repo := newTestService(stock, alloc)

	pa, items, err := svc.CreatePutAway(context.Background(), CreateInput{
		WarehouseID: 1,
		BranchID:    1,
		Lines: []LineInput{
			{ProductID: 100, Quantity: d("10"), UnitCost: d("4")},
			{ProductID: 200, Quantity: d("5"), UnitCost: d("2")},
		},
	})
	require.NoError(t, err)

	item, err := svc.StartItem(context.Background(), items[0].ID)
	require.NoError(t, err)
	require.Equal(t, ItemPutting, item.Status)
	require.Equal(t, ListPutting, repo.putAways[pa.ID].Status)

	// Completing one of two items keeps the batch open.
	_, _, err = svc.CompleteItem(context.Background(), CompleteInput{ItemID: items[0].ID})
	require.NoError(t, err)
	require.Equal(t, ListPutting, repo.putAways[pa.ID].Status)

	_, _, err = svc.CompleteItem(context.Background(), CompleteInput{ItemID: items[1].ID})
	require.NoError(t, err)
	require.Equal(t, ListCompleted, repo.putAways[pa.ID].Status)
}
