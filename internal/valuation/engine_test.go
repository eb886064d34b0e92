package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryValuationRepo struct {
	records map[Key]Valuation
	layers  map[Key][]CostLayer
	nextID  int64
}

func newMemoryValuationRepo() *memoryValuationRepo {
	return &memoryValuationRepo{
		records: make(map[Key]Valuation),
		layers:  make(map[Key][]CostLayer),
	}
}

func (r *memoryValuationRepo) GetForUpdate(_ context.Context, key Key) (Valuation, error) {
	if v, ok := r.records[key]; ok {
		return v, nil
	}
	return Valuation{}, ErrValuationNotFound
}

func (r *memoryValuationRepo) Insert(_ context.Context, v Valuation) error {
	r.records[v.Key] = v
	return nil
}

func (r *memoryValuationRepo) Update(_ context.Context, v Valuation) error {
	r.records[v.Key] = v
	return nil
}

func (r *memoryValuationRepo) ListOpenLayers(_ context.Context, key Key) ([]CostLayer, error) {
	var open []CostLayer
	for _, l := range r.layers[key] {
		if l.RemainingQuantity.Sign() > 0 {
			open = append(open, l)
		}
	}
	return open, nil
}

func (r *memoryValuationRepo) InsertLayer(_ context.Context, key Key, layer CostLayer) (int64, error) {
	r.nextID++
	layer.ID = r.nextID
	r.layers[key] = append(r.layers[key], layer)
	return layer.ID, nil
}

func (r *memoryValuationRepo) UpdateLayerRemaining(_ context.Context, layerID int64, remaining decimal.Decimal) error {
	for key, layers := range r.layers {
		for i := range layers {
			if layers[i].ID == layerID {
				layers[i].RemainingQuantity = remaining
				r.layers[key] = layers
				return nil
			}
		}
	}
	return ErrValuationNotFound
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var testKey = Key{ProductID: 1, BranchID: 1}

func TestFIFOConsumesOldestFirst(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, repo, testKey, MethodFIFO, dec("10"), dec("1.00"), day("2024-01-01"))
	require.NoError(t, err)
	_, err = engine.Receive(ctx, repo, testKey, MethodFIFO, dec("10"), dec("2.00"), day("2024-02-01"))
	require.NoError(t, err)

	result, v, err := engine.Consume(ctx, repo, testKey, dec("15"))
	require.NoError(t, err)
	require.True(t, result.Cost.Equal(dec("20.00")), "removed cost %s", result.Cost)
	require.True(t, v.TotalQuantity.Equal(dec("5")))
	require.True(t, v.TotalValue.Equal(dec("10.00")))

	open, err := repo.ListOpenLayers(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.True(t, open[0].RemainingQuantity.Equal(dec("5")))
	require.True(t, open[0].UnitCost.Equal(dec("2.00")))
	require.Equal(t, day("2024-02-01"), open[0].ReceiptDate)
}

func TestLIFOConsumesNewestFirst(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, repo, testKey, MethodLIFO, dec("10"), dec("1.00"), day("2024-01-01"))
	require.NoError(t, err)
	_, err = engine.Receive(ctx, repo, testKey, MethodLIFO, dec("10"), dec("2.00"), day("2024-02-01"))
	require.NoError(t, err)

	result, _, err := engine.Consume(ctx, repo, testKey, dec("15"))
	require.NoError(t, err)
	require.True(t, result.Cost.Equal(dec("25.00")), "removed cost %s", result.Cost)

	open, err := repo.ListOpenLayers(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.True(t, open[0].RemainingQuantity.Equal(dec("5")))
	require.True(t, open[0].UnitCost.Equal(dec("1.00")))
	require.Equal(t, day("2024-01-01"), open[0].ReceiptDate)
}

func TestWeightedAverageBlendsOnReceipt(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, repo, testKey, MethodWeightedAverage, dec("10"), dec("1.00"), day("2024-01-01"))
	require.NoError(t, err)
	v, err := engine.Receive(ctx, repo, testKey, MethodWeightedAverage, dec("10"), dec("2.00"), day("2024-02-01"))
	require.NoError(t, err)
	require.True(t, v.CurrentCost.Equal(dec("1.5")), "blended cost %s", v.CurrentCost)

	result, v, err := engine.Consume(ctx, repo, testKey, dec("5"))
	require.NoError(t, err)
	require.True(t, result.Cost.Equal(dec("7.5")))
	require.True(t, v.TotalQuantity.Equal(dec("15")))
	require.True(t, v.TotalValue.Equal(dec("22.5")))
	require.True(t, v.CurrentCost.Equal(dec("1.5")))
}

func TestWeightedAverageFloorsAtZero(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, repo, testKey, MethodWeightedAverage, dec("3"), dec("9.9999"), day("2024-01-01"))
	require.NoError(t, err)

	_, v, err := engine.Consume(ctx, repo, testKey, dec("3"))
	require.NoError(t, err)
	require.True(t, v.TotalQuantity.IsZero())
	require.True(t, v.TotalValue.IsZero())
	require.True(t, v.CurrentCost.IsZero())
}

func TestConsumeBeyondAvailableFails(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, repo, testKey, MethodFIFO, dec("10"), dec("1.00"), day("2024-01-01"))
	require.NoError(t, err)

	_, _, err = engine.Consume(ctx, repo, testKey, dec("11"))
	require.ErrorIs(t, err, ErrInsufficientStock)

	// the failed consume must not drain any layer
	open, err := repo.ListOpenLayers(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.True(t, open[0].RemainingQuantity.Equal(dec("10")))
}

func TestMethodIsFixedAtCreation(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	_, err := engine.Receive(ctx, repo, testKey, MethodFIFO, dec("10"), dec("1.00"), day("2024-01-01"))
	require.NoError(t, err)

	_, err = engine.Receive(ctx, repo, testKey, MethodWeightedAverage, dec("10"), dec("1.00"), day("2024-02-01"))
	require.ErrorIs(t, err, ErrInvalidMethod)
}

func TestQuantityConservation(t *testing.T) {
	repo := newMemoryValuationRepo()
	engine := NewEngine()
	ctx := context.Background()

	received := decimal.Zero
	consumed := decimal.Zero
	seed := []struct {
		qty  string
		cost string
		date string
	}{
		{"10", "1.25", "2024-01-01"},
		{"4", "1.75", "2024-01-05"},
		{"25", "0.8", "2024-02-10"},
	}
	for _, s := range seed {
		_, err := engine.Receive(ctx, repo, testKey, MethodFIFO, dec(s.qty), dec(s.cost), day(s.date))
		require.NoError(t, err)
		received = received.Add(dec(s.qty))
	}
	for _, q := range []string{"3", "12", "7"} {
		_, _, err := engine.Consume(ctx, repo, testKey, dec(q))
		require.NoError(t, err)
		consumed = consumed.Add(dec(q))
	}

	v, err := repo.GetForUpdate(ctx, testKey)
	require.NoError(t, err)
	require.True(t, v.TotalQuantity.Equal(received.Sub(consumed)))

	// layer invariant: aggregate equals the sum over open layers
	open, err := repo.ListOpenLayers(ctx, testKey)
	require.NoError(t, err)
	sumQty, sumValue := decimal.Zero, decimal.Zero
	for _, l := range open {
		sumQty = sumQty.Add(l.RemainingQuantity)
		sumValue = sumValue.Add(l.RemainingValue())
	}
	require.True(t, v.TotalQuantity.Equal(sumQty))
	require.True(t, v.TotalValue.Equal(sumValue))
}
