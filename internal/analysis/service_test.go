package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type memoryRepo struct {
	usage    []UsageRow
	stock    []StockRow
	sales    []DateRow
	receipts []DateRow

	abc  map[string]ABCRecord
	dead map[string]DeadStockRecord
	age  map[string]AgingRecord

	failABCProduct int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		abc:  make(map[string]ABCRecord),
		dead: make(map[string]DeadStockRecord),
		age:  make(map[string]AgingRecord),
	}
}

func (m *memoryRepo) MonthlyUsage(_ context.Context, _ int64, _, _ time.Time) ([]UsageRow, error) {
	return m.usage, nil
}

func (m *memoryRepo) ListStock(_ context.Context, _ int64) ([]StockRow, error) {
	return m.stock, nil
}

func (m *memoryRepo) LastSales(_ context.Context, _ int64) ([]DateRow, error) {
	return m.sales, nil
}

func (m *memoryRepo) OldestReceipts(_ context.Context, _ int64) ([]DateRow, error) {
	return m.receipts, nil
}

func (m *memoryRepo) UpsertABC(_ context.Context, rec ABCRecord) error {
	if m.failABCProduct != 0 && rec.ProductID == m.failABCProduct {
		return errors.New("connection reset")
	}
	key := fmt.Sprintf("%s|%d|%d|%d", rec.AnalysisDate.Format(time.DateOnly), rec.BranchID, rec.ProductID, rec.VariantID)
	m.abc[key] = rec
	return nil
}

func (m *memoryRepo) UpsertDeadStock(_ context.Context, rec DeadStockRecord) error {
	key := fmt.Sprintf("%s|%d", rec.AnalysisDate.Format(time.DateOnly), rec.StockLocationID)
	m.dead[key] = rec
	return nil
}

func (m *memoryRepo) UpsertAging(_ context.Context, rec AgingRecord) error {
	key := fmt.Sprintf("%s|%d|%d|%s", rec.AnalysisDate.Format(time.DateOnly), rec.BranchID, rec.WarehouseID, rec.Bucket)
	m.age[key] = rec
	return nil
}

func (m *memoryRepo) ListABC(_ context.Context, branchID int64, date time.Time) ([]ABCRecord, error) {
	var out []ABCRecord
	for _, rec := range m.abc {
		if rec.BranchID == branchID && rec.AnalysisDate.Equal(date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListDeadStock(_ context.Context, branchID int64, date time.Time) ([]DeadStockRecord, error) {
	var out []DeadStockRecord
	for _, rec := range m.dead {
		if rec.BranchID == branchID && rec.AnalysisDate.Equal(date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListAging(_ context.Context, branchID int64, date time.Time) ([]AgingRecord, error) {
	var out []AgingRecord
	for _, rec := range m.age {
		if rec.BranchID == branchID && rec.AnalysisDate.Equal(date) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, slog.New(slog.DiscardHandler))
	svc.WithClock(func() time.Time {
		return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	})
	return svc
}

func TestClassifyABCCumulativeThresholds(t *testing.T) {
	usages := []productUsage{
		{ProductID: 1, UsageValue: d("50"), MonthlyDemand: []float64{10, 10, 10}},
		{ProductID: 2, UsageValue: d("30"), MonthlyDemand: []float64{10, 10, 10}},
		{ProductID: 3, UsageValue: d("15"), MonthlyDemand: []float64{10, 10, 10}},
		{ProductID: 4, UsageValue: d("5"), MonthlyDemand: []float64{10, 10, 10}},
	}
	records := classifyABC(usages)
	require.Len(t, records, 4)

	// Cumulative shares land on exactly 50, 80, 95, 100 percent. Sitting on
	// a threshold keeps the lower class; crossing it demotes.
	require.Equal(t, ClassA, records[0].ABCClass)
	require.Equal(t, ClassA, records[1].ABCClass)
	require.True(t, records[1].CumulativePct.Equal(d("80")))
	require.Equal(t, ClassB, records[2].ABCClass)
	require.True(t, records[2].CumulativePct.Equal(d("95")))
	require.Equal(t, ClassC, records[3].ABCClass)
}

func TestClassifyABCCrossingThresholdDemotes(t *testing.T) {
	usages := []productUsage{
		{ProductID: 1, UsageValue: d("79")},
		{ProductID: 2, UsageValue: d("10")},
		{ProductID: 3, UsageValue: d("11")},
	}
	records := classifyABC(usages)
	// Product 3 pushes cumulative share to 90 percent, so it is B not A.
	require.Equal(t, int64(3), records[1].ProductID)
	require.Equal(t, ClassB, records[1].ABCClass)
	require.Equal(t, ClassC, records[2].ABCClass)
}

func TestClassifyXYZ(t *testing.T) {
	require.Equal(t, ClassX, classifyXYZ([]float64{10, 10, 10, 10}))
	require.Equal(t, ClassY, classifyXYZ([]float64{10, 20, 10, 20}))
	require.Equal(t, ClassZ, classifyXYZ([]float64{0, 0, 0, 100}))
	require.Equal(t, ClassZ, classifyXYZ(nil))
	require.Equal(t, ClassZ, classifyXYZ([]float64{0, 0}))
}

func TestCombinedClassRecommendation(t *testing.T) {
	usages := []productUsage{{ProductID: 1, UsageValue: d("100"), MonthlyDemand: []float64{5, 5, 5}}}
	records := classifyABC(usages)
	require.Equal(t, "AX", records[0].CombinedClass)
	require.NotEmpty(t, records[0].Recommendation)
}

func TestRunABCAnalysisIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	month := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.usage = []UsageRow{
		{ProductID: 1, Month: month, Quantity: d("100"), Value: d("800")},
		{ProductID: 2, Month: month, Quantity: d("50"), Value: d("200")},
	}
	svc := newTestService(repo)

	first, err := svc.RunABCAnalysis(context.Background(), 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, first.Succeeded)
	require.Equal(t, 0, first.Failed)

	second, err := svc.RunABCAnalysis(context.Background(), 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, second.Succeeded)
	require.Len(t, repo.abc, 2)
}

func TestRunABCAnalysisSkipsFailedItems(t *testing.T) {
	repo := newMemoryRepo()
	month := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.usage = []UsageRow{
		{ProductID: 1, Month: month, Quantity: d("100"), Value: d("800")},
		{ProductID: 2, Month: month, Quantity: d("50"), Value: d("200")},
		{ProductID: 3, Month: month, Quantity: d("10"), Value: d("50")},
	}
	repo.failABCProduct = 2
	svc := newTestService(repo)

	result, err := svc.RunABCAnalysis(context.Background(), 1, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Len(t, repo.abc, 2)
}

func TestClassifyDeadStock(t *testing.T) {
	asOf := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	status, days := classifyDeadStock(time.Time{}, asOf, 90)
	require.Equal(t, StatusDead, status)
	require.Equal(t, -1, days)

	status, _ = classifyDeadStock(asOf.AddDate(0, 0, -30), asOf, 90)
	require.Equal(t, StatusActive, status)

	status, _ = classifyDeadStock(asOf.AddDate(0, 0, -100), asOf, 90)
	require.Equal(t, StatusSlowMoving, status)

	status, _ = classifyDeadStock(asOf.AddDate(0, 0, -200), asOf, 90)
	require.Equal(t, StatusVerySlow, status)

	status, days = classifyDeadStock(asOf.AddDate(0, 0, -400), asOf, 90)
	require.Equal(t, StatusDead, status)
	require.Equal(t, 400, days)

	require.Equal(t, "dispose", StatusDead.Recommendation())
	require.Equal(t, "liquidate", StatusVerySlow.Recommendation())
	require.Equal(t, "promote", StatusSlowMoving.Recommendation())
	require.Equal(t, "continue", StatusActive.Recommendation())
}

func TestRunDeadStockAnalysis(t *testing.T) {
	repo := newMemoryRepo()
	repo.stock = []StockRow{
		{Location: ledger.StockLocation{ID: 10, WarehouseID: 1, BranchID: 1, ProductID: 7, Quantity: d("4")}, UnitCost: d("2.50")},
		{Location: ledger.StockLocation{ID: 11, WarehouseID: 1, BranchID: 1, ProductID: 8, Quantity: d("6")}, UnitCost: d("1")},
	}
	repo.sales = []DateRow{
		{StockLocationID: 10, At: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	svc := newTestService(repo)

	result, err := svc.RunDeadStockAnalysis(context.Background(), 1, time.Time{}, 0)
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)

	records, err := repo.ListDeadStock(context.Background(), 1, result.AnalysisDate)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		switch rec.StockLocationID {
		case 10:
			require.Equal(t, StatusActive, rec.Status)
			require.True(t, rec.Value.Equal(d("10")))
		case 11:
			// Never sold, so it is dead regardless of age.
			require.Equal(t, StatusDead, rec.Status)
			require.Equal(t, -1, rec.DaysSinceLastSale)
			require.Equal(t, "dispose", rec.Recommendation)
		}
	}
}

func TestAgingBucketBoundaries(t *testing.T) {
	require.Equal(t, "0-30", agingBucketFor(0))
	require.Equal(t, "0-30", agingBucketFor(30))
	require.Equal(t, "31-60", agingBucketFor(31))
	require.Equal(t, "61-90", agingBucketFor(90))
	require.Equal(t, "91-180", agingBucketFor(180))
	require.Equal(t, "181-365", agingBucketFor(365))
	require.Equal(t, ">365", agingBucketFor(366))
	require.Equal(t, ">365", agingBucketFor(1000))
}

func TestRunAgingAnalysis(t *testing.T) {
	repo := newMemoryRepo()
	asOf := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	repo.stock = []StockRow{
		{Location: ledger.StockLocation{ID: 1, WarehouseID: 1, BranchID: 1, ProductID: 7,
			Quantity: d("10"), PutAwayDate: asOf.AddDate(0, 0, -10)}, UnitCost: d("2")},
		{Location: ledger.StockLocation{ID: 2, WarehouseID: 1, BranchID: 1, ProductID: 8,
			Quantity: d("5"), PutAwayDate: asOf.AddDate(0, 0, -20)}, UnitCost: d("4")},
		// No put-away date recorded; ages from its first inbound movement.
		{Location: ledger.StockLocation{ID: 3, WarehouseID: 1, BranchID: 1, ProductID: 9,
			Quantity: d("2")}, UnitCost: d("1")},
	}
	repo.receipts = []DateRow{
		{StockLocationID: 3, At: asOf.AddDate(0, 0, -400)},
	}
	svc := newTestService(repo)

	result, err := svc.RunAgingAnalysis(context.Background(), 1, asOf)
	require.NoError(t, err)
	require.Equal(t, len(agingBuckets), result.Succeeded)

	records, err := repo.ListAging(context.Background(), 1, result.AnalysisDate)
	require.NoError(t, err)
	require.Len(t, records, len(agingBuckets))
	byBucket := make(map[string]AgingRecord, len(records))
	for _, rec := range records {
		byBucket[rec.Bucket] = rec
	}
	require.True(t, byBucket["0-30"].Quantity.Equal(d("15")))
	require.True(t, byBucket["0-30"].Value.Equal(d("40")))
	require.Equal(t, 2, byBucket["0-30"].ItemCount)
	require.True(t, byBucket[">365"].Quantity.Equal(d("2")))
	require.True(t, byBucket["31-60"].Quantity.IsZero())
}

func TestRunAllCancelled(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := svc.RunAll(ctx, 1, time.Time{})
	require.Error(t, err)
}

func TestCacheVersionBumpInvalidates(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	cache := NewCache(client, time.Minute)
	ctx := context.Background()

	key1, err := cache.BuildKey(ctx, "analysis", "abc", "1", "2026-06-15")
	require.NoError(t, err)

	loads := 0
	loader := func(context.Context) (interface{}, error) {
		loads++
		return []string{"payload"}, nil
	}
	var out []string
	require.NoError(t, cache.FetchJSON(ctx, key1, &out, loader))
	require.NoError(t, cache.FetchJSON(ctx, key1, &out, loader))
	require.Equal(t, 1, loads)

	require.NoError(t, cache.Bump(ctx))
	key2, err := cache.BuildKey(ctx, "analysis", "abc", "1", "2026-06-15")
	require.NoError(t, err)
	require.NotEqual(t, key1, key2)
	require.NoError(t, cache.FetchJSON(ctx, key2, &out, loader))
	require.Equal(t, 2, loads)
}

func TestGetABCReportUsesCache(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	repo := newMemoryRepo()
	month := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.usage = []UsageRow{{ProductID: 1, Month: month, Quantity: d("10"), Value: d("100")}}

	svc := NewService(repo, NewCache(client, time.Minute), slog.New(slog.DiscardHandler))
	svc.WithClock(func() time.Time {
		return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	})

	_, err := svc.RunABCAnalysis(context.Background(), 1, time.Time{})
	require.NoError(t, err)

	records, err := svc.GetABCReport(context.Background(), 1, time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, ClassA, records[0].ABCClass)
}
