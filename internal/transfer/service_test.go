package transfer

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

type memoryTransferRepo struct {
	stock        *ledgertest.MemoryRepo
	transfers    map[int64]Transfer
	items        map[int64]TransferItem
	nextTransfer int64
	nextItem     int64
}

func newMemoryTransferRepo(stock *ledgertest.MemoryRepo) *memoryTransferRepo {
	return &memoryTransferRepo{stock: stock, transfers: make(map[int64]Transfer), items: make(map[int64]TransferItem)}
}

func (r *memoryTransferRepo) WithTx(_ context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(context.Background(), &memoryTransferTx{repo: r})
}

func (r *memoryTransferRepo) GetTransfer(_ context.Context, transferID int64) (Transfer, []TransferItem, error) {
	tr, ok := r.transfers[transferID]
	if !ok {
		return Transfer{}, nil, ErrTransferNotFound
	}
	return tr, r.itemsOf(transferID), nil
}

func (r *memoryTransferRepo) itemsOf(transferID int64) []TransferItem {
	var items []TransferItem
	for id := int64(1); id <= r.nextItem; id++ {
		if item, ok := r.items[id]; ok && item.TransferID == transferID {
			items = append(items, item)
		}
	}
	return items
}

type memoryTransferTx struct {
	repo *memoryTransferRepo
}

func (tx *memoryTransferTx) InsertTransfer(_ context.Context, tr Transfer) (int64, error) {
	tx.repo.nextTransfer++
	tr.ID = tx.repo.nextTransfer
	tr.CreatedAt = time.Now()
	tx.repo.transfers[tr.ID] = tr
	return tr.ID, nil
}

func (tx *memoryTransferTx) InsertItem(_ context.Context, item TransferItem) (int64, error) {
	tx.repo.nextItem++
	item.ID = tx.repo.nextItem
	tx.repo.items[item.ID] = item
	return item.ID, nil
}

func (tx *memoryTransferTx) GetTransferForUpdate(_ context.Context, transferID int64) (Transfer, error) {
	if tr, ok := tx.repo.transfers[transferID]; ok {
		return tr, nil
	}
	return Transfer{}, ErrTransferNotFound
}

func (tx *memoryTransferTx) ListItemsForUpdate(_ context.Context, transferID int64) ([]TransferItem, error) {
	return tx.repo.itemsOf(transferID), nil
}

func (tx *memoryTransferTx) UpdateItem(_ context.Context, item TransferItem) error {
	tx.repo.items[item.ID] = item
	return nil
}

func (tx *memoryTransferTx) UpdateTransfer(_ context.Context, tr Transfer) error {
	tx.repo.transfers[tr.ID] = tr
	return nil
}

func (tx *memoryTransferTx) Ledger() ledger.TxRepository {
	return tx.repo.stock.Tx()
}

type stubAllocator struct {
	locations map[int64]int64
}

func (a *stubAllocator) SuggestPutAwayLocation(_ context.Context, _, productID int64, _ decimal.Decimal, _ allocation.PutAwayStrategy) (allocation.Candidate, error) {
	loc, ok := a.locations[productID]
	if !ok {
		return allocation.Candidate{}, shared.ErrNoLocationAvailable
	}
	return allocation.Candidate{LocationID: loc}, nil
}

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestService(stock *ledgertest.MemoryRepo, alloc AllocatorPort) (*Service, *memoryTransferRepo) {
	repo := newMemoryTransferRepo(stock)
	ledgerSvc := ledger.NewService(stock, valuation.NewEngine(), nil, nil, nil, ledger.ServiceConfig{})
	return NewService(repo, ledgerSvc, alloc, nil), repo
}

func seedSource(stock *ledgertest.MemoryRepo, productID int64, qty, cost string, putAway time.Time) ledger.StockLocation {
	return stock.Seed(ledger.StockLocation{
		WarehouseID:         1,
		BranchID:            1,
		WarehouseLocationID: 10,
		ProductID:           productID,
		Quantity:            d(qty),
		PutAwayDate:         putAway,
	}, d(cost))
}

func draftTransfer(t *testing.T, svc *Service, qty string) (Transfer, []TransferItem) {
	t.Helper()
	tr, items, err := svc.CreateTransfer(context.Background(), CreateInput{
		FromWarehouseID: 1,
		FromBranchID:    1,
		ToWarehouseID:   2,
		ToBranchID:      2,
		Reference:       "TR-1",
		Lines:           []LineInput{{ProductID: 100, Quantity: d(qty)}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, tr.Status)
	return tr, items
}

func TestShipDrainsOldestFirst(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	older := seedSource(stock, 100, "6", "2", time.Now().Add(-48*time.Hour))
	newer := seedSource(stock, 100, "10", "3", time.Now().Add(-1*time.Hour))
	svc, _ := newTestService(stock, &stubAllocator{})

	tr, _ := draftTransfer(t, svc, "8")

	shipped, items, err := svc.Ship(context.Background(), tr.ID, 1)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, shipped.Status)
	require.True(t, items[0].ShippedQuantity.Equal(d("8")))
	// 6 units at cost 2 then 2 units at cost 3: average 2.25.
	require.True(t, items[0].ShippedUnitCost.Equal(d("2.25")))

	require.True(t, stock.Locations[older.ID].Quantity.IsZero())
	require.True(t, stock.Locations[newer.ID].Quantity.Equal(d("8")))
	require.Len(t, stock.Movements, 2)
	require.Equal(t, ledger.MovementTransferOut, stock.Movements[0].Type)
}

func TestShipPartialIsFinal(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	seedSource(stock, 100, "5", "2", time.Now().Add(-time.Hour))
	svc, _ := newTestService(stock, &stubAllocator{})

	tr, _ := draftTransfer(t, svc, "8")

	_, items, err := svc.Ship(context.Background(), tr.ID, 1)
	require.NoError(t, err)
	require.True(t, items[0].ShippedQuantity.Equal(d("5")))
	require.True(t, items[0].RequestedQuantity.Equal(d("8")))

	// Shipping again is rejected, the shortfall is not retried.
	_, _, err = svc.Ship(context.Background(), tr.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestShipNothingAvailableFails(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	svc, _ := newTestService(stock, &stubAllocator{})

	tr, _ := draftTransfer(t, svc, "8")

	_, _, err := svc.Ship(context.Background(), tr.ID, 1)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestReceiveBooksAtShippedCostAndCompletes(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	seedSource(stock, 100, "6", "2", time.Now().Add(-48*time.Hour))
	seedSource(stock, 100, "10", "3", time.Now().Add(-time.Hour))
	alloc := &stubAllocator{locations: map[int64]int64{100: 20}}
	svc, _ := newTestService(stock, alloc)

	tr, _ := draftTransfer(t, svc, "8")
	_, _, err := svc.Ship(context.Background(), tr.ID, 1)
	require.NoError(t, err)

	received, items, err := svc.Receive(context.Background(), ReceiveInput{TransferID: tr.ID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, received.Status)
	require.True(t, items[0].ReceivedQuantity.Equal(d("8")))

	// Destination shelf holds the goods at the blended shipped cost.
	var dest ledger.StockLocation
	for _, loc := range stock.Locations {
		if loc.WarehouseID == 2 {
			dest = loc
		}
	}
	require.Equal(t, int64(20), dest.WarehouseLocationID)
	require.True(t, dest.Quantity.Equal(d("8")))
	key := dest.ValuationKey()
	require.True(t, stock.Valuations[key].CurrentCost.Equal(d("2.25")))
}

func TestReceivePartialThenRest(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	seedSource(stock, 100, "10", "2", time.Now().Add(-time.Hour))
	alloc := &stubAllocator{locations: map[int64]int64{100: 20}}
	svc, _ := newTestService(stock, alloc)

	tr, _ := draftTransfer(t, svc, "10")
	_, items, err := svc.Ship(context.Background(), tr.ID, 1)
	require.NoError(t, err)

	partial, _, err := svc.Receive(context.Background(), ReceiveInput{
		TransferID: tr.ID,
		Lines:      []ReceiveLine{{ItemID: items[0].ID, Quantity: d("4")}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusReceived, partial.Status)

	done, rest, err := svc.Receive(context.Background(), ReceiveInput{TransferID: tr.ID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.True(t, rest[0].ReceivedQuantity.Equal(d("10")))

	// A third receive finds nothing outstanding.
	_, _, err = svc.Receive(context.Background(), ReceiveInput{TransferID: tr.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestReceiveBeforeShipFails(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	seedSource(stock, 100, "10", "2", time.Now())
	svc, _ := newTestService(stock, &stubAllocator{locations: map[int64]int64{100: 20}})

	tr, _ := draftTransfer(t, svc, "5")

	_, _, err := svc.Receive(context.Background(), ReceiveInput{TransferID: tr.ID})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestReceiveOverOutstandingFails(t *testing.T) {
	stock := ledgertest.NewMemoryRepo()
	seedSource(stock, 100, "10", "2", time.Now())
	svc, _ := newTestService(stock, &stubAllocator{locations: map[int64]int64{100: 20}})

	tr, _ := draftTransfer(t, svc, "5")
	_, items, err := svc.Ship(context.Background(), tr.ID, 1)
	require.NoError(t, err)

	_, _, err = svc.Receive(context.Background(), ReceiveInput{
		TransferID: tr.ID,
		Lines:      []ReceiveLine{{ItemID: items[0].ID, Quantity: d("9")}},
	})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)
}
