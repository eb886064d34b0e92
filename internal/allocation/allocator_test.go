package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	putAway []Candidate
	picks   []PickCandidate
}

func (r *stubRepo) ListPutAwayCandidates(context.Context, int64, int64) ([]Candidate, error) {
	out := make([]Candidate, len(r.putAway))
	copy(out, r.putAway)
	return out, nil
}

func (r *stubRepo) ListPickCandidates(context.Context, int64, int64, int64, string) ([]PickCandidate, error) {
	out := make([]PickCandidate, len(r.picks))
	copy(out, r.picks)
	return out, nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSuggestPutAwayFixedPrefersExistingProduct(t *testing.T) {
	repo := &stubRepo{putAway: []Candidate{
		{LocationID: 1, Zone: "A", CurrentQuantity: d("0")},
		{LocationID: 2, Zone: "A", CurrentQuantity: d("5"), HoldsProduct: true},
		{LocationID: 3, Zone: "B", CurrentQuantity: d("1"), HoldsProduct: true},
	}}
	alloc := NewAllocator(repo, Config{})

	got, err := alloc.SuggestPutAwayLocation(context.Background(), 1, 1, d("10"), PutAwayFixed)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.LocationID)
}

func TestSuggestPutAwayZonePrefersFastZone(t *testing.T) {
	repo := &stubRepo{putAway: []Candidate{
		{LocationID: 1, Zone: "BULK"},
		{LocationID: 2, Zone: "FAST"},
	}}
	alloc := NewAllocator(repo, Config{FastMovingZone: "FAST"})

	got, err := alloc.SuggestPutAwayLocation(context.Background(), 1, 1, d("1"), PutAwayZone)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.LocationID)
}

func TestSuggestPutAwayRespectsCapacity(t *testing.T) {
	repo := &stubRepo{putAway: []Candidate{
		{LocationID: 1, MaxCapacity: d("10"), CurrentQuantity: d("8")},
		{LocationID: 2, MaxCapacity: d("10"), CurrentQuantity: d("2")},
	}}
	alloc := NewAllocator(repo, Config{})

	got, err := alloc.SuggestPutAwayLocation(context.Background(), 1, 1, d("5"), PutAwayRandom)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.LocationID)

	_, err = alloc.SuggestPutAwayLocation(context.Background(), 1, 1, d("20"), PutAwayRandom)
	require.ErrorIs(t, err, ErrNoLocationAvailable)
}

func TestSuggestPutAwayFEFOPrefersNearestExpiry(t *testing.T) {
	repo := &stubRepo{putAway: []Candidate{
		{LocationID: 1},
		{LocationID: 2, NearestExpiry: at("2024-09-01")},
		{LocationID: 3, NearestExpiry: at("2024-06-01")},
	}}
	alloc := NewAllocator(repo, Config{})

	got, err := alloc.SuggestPutAwayLocation(context.Background(), 1, 1, d("1"), PutAwayFEFO)
	require.NoError(t, err)
	require.Equal(t, int64(3), got.LocationID)
}

func TestSelectPickLocationsFIFOOrder(t *testing.T) {
	repo := &stubRepo{picks: []PickCandidate{
		{StockLocationID: 1, Available: d("4"), PutAwayDate: at("2024-03-01")},
		{StockLocationID: 2, Available: d("10"), PutAwayDate: at("2024-01-01")},
		{StockLocationID: 3, Available: d("2"), PutAwayDate: at("2024-02-01")},
	}}
	alloc := NewAllocator(repo, Config{})

	allocations, shortfall, err := alloc.SelectPickLocations(context.Background(), 1, 1, 0, "", d("13"), PickFIFO)
	require.NoError(t, err)
	require.True(t, shortfall.IsZero())
	require.Len(t, allocations, 3)
	require.Equal(t, int64(2), allocations[0].StockLocationID)
	require.True(t, allocations[0].Quantity.Equal(d("10")))
	require.Equal(t, int64(3), allocations[1].StockLocationID)
	require.True(t, allocations[1].Quantity.Equal(d("2")))
	require.Equal(t, int64(1), allocations[2].StockLocationID)
	require.True(t, allocations[2].Quantity.Equal(d("1")))
}

func TestSelectPickLocationsLIFOOrder(t *testing.T) {
	repo := &stubRepo{picks: []PickCandidate{
		{StockLocationID: 1, Available: d("5"), PutAwayDate: at("2024-01-01")},
		{StockLocationID: 2, Available: d("5"), PutAwayDate: at("2024-02-01")},
	}}
	alloc := NewAllocator(repo, Config{})

	allocations, _, err := alloc.SelectPickLocations(context.Background(), 1, 1, 0, "", d("5"), PickLIFO)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.Equal(t, int64(2), allocations[0].StockLocationID)
}

func TestSelectPickLocationsFEFOSortsZeroExpiryLast(t *testing.T) {
	repo := &stubRepo{picks: []PickCandidate{
		{StockLocationID: 1, Available: d("5")},
		{StockLocationID: 2, Available: d("5"), ExpiryDate: at("2024-05-01")},
	}}
	alloc := NewAllocator(repo, Config{})

	allocations, _, err := alloc.SelectPickLocations(context.Background(), 1, 1, 0, "", d("5"), PickFEFO)
	require.NoError(t, err)
	require.Equal(t, int64(2), allocations[0].StockLocationID)
}

func TestSelectPickLocationsReportsShortfall(t *testing.T) {
	repo := &stubRepo{picks: []PickCandidate{
		{StockLocationID: 1, Available: d("3"), PutAwayDate: at("2024-01-01")},
	}}
	alloc := NewAllocator(repo, Config{})

	allocations, shortfall, err := alloc.SelectPickLocations(context.Background(), 1, 1, 0, "", d("5"), PickFIFO)
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	require.True(t, shortfall.Equal(d("2")))
}

func TestSelectPickLocationsNoCandidates(t *testing.T) {
	alloc := NewAllocator(&stubRepo{}, Config{})

	_, _, err := alloc.SelectPickLocations(context.Background(), 1, 1, 0, "", d("5"), PickFIFO)
	require.ErrorIs(t, err, ErrNoLocationAvailable)
}
