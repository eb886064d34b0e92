package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ReadPort is the movement and stock history the analyzers consume.
type ReadPort interface {
	MonthlyUsage(ctx context.Context, branchID int64, from, to time.Time) ([]UsageRow, error)
	ListStock(ctx context.Context, branchID int64) ([]StockRow, error)
	LastSales(ctx context.Context, branchID int64) ([]DateRow, error)
	OldestReceipts(ctx context.Context, branchID int64) ([]DateRow, error)
}

// WritePort persists snapshot rows. Each upsert is self-contained so a run
// cancelled between items leaves no partial row behind.
type WritePort interface {
	UpsertABC(ctx context.Context, rec ABCRecord) error
	UpsertDeadStock(ctx context.Context, rec DeadStockRecord) error
	UpsertAging(ctx context.Context, rec AgingRecord) error
	ListABC(ctx context.Context, branchID int64, date time.Time) ([]ABCRecord, error)
	ListDeadStock(ctx context.Context, branchID int64, date time.Time) ([]DeadStockRecord, error)
	ListAging(ctx context.Context, branchID int64, date time.Time) ([]AgingRecord, error)
}

// RepositoryPort is the full persistence surface the service needs.
type RepositoryPort interface {
	ReadPort
	WritePort
}

// Service runs the batch analyzers and serves cached snapshots.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires the analyzer service.
func NewService(repo RepositoryPort, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// WithClock overrides the clock, used by tests.
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

func (s *Service) analysisDate(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return asOf.UTC().Truncate(24 * time.Hour)
}

// usageMonths is the trailing window the ABC/XYZ classifier looks at.
const usageMonths = 12

// RunABCAnalysis classifies every product with trailing-year consumption and
// upserts the snapshot for asOf. Re-running for the same date overwrites that
// date's rows only.
func (s *Service) RunABCAnalysis(ctx context.Context, branchID int64, asOf time.Time) (RunResult, error) {
	date := s.analysisDate(asOf)
	from := date.AddDate(0, -usageMonths, 0)
	result := RunResult{AnalysisDate: date}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	rows, err := s.repo.MonthlyUsage(ctx, branchID, from, date.AddDate(0, 0, 1))
	if err != nil {
		return result, err
	}

	type key struct{ productID, variantID int64 }
	byProduct := make(map[key]*productUsage)
	order := make([]key, 0)
	for _, row := range rows {
		k := key{row.ProductID, row.VariantID}
		usage, ok := byProduct[k]
		if !ok {
			usage = &productUsage{
				ProductID:     row.ProductID,
				VariantID:     row.VariantID,
				UsageQuantity: decimal.Zero,
				UsageValue:    decimal.Zero,
				MonthlyDemand: make([]float64, usageMonths),
			}
			byProduct[k] = usage
			order = append(order, k)
		}
		usage.UsageQuantity = usage.UsageQuantity.Add(row.Quantity)
		usage.UsageValue = usage.UsageValue.Add(row.Value)
		idx := monthIndex(from, row.Month)
		if idx >= 0 && idx < usageMonths {
			usage.MonthlyDemand[idx] += row.Quantity.InexactFloat64()
		}
	}
	usages := make([]productUsage, 0, len(order))
	for _, k := range order {
		usages = append(usages, *byProduct[k])
	}

	records := classifyABC(usages)
	for i := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		records[i].AnalysisDate = date
		records[i].BranchID = branchID
		if err := s.repo.UpsertABC(ctx, records[i]); err != nil {
			result.Failed++
			s.logger.Error("abc upsert failed",
				slog.Int64("product_id", records[i].ProductID),
				slog.String("error", err.Error()))
			continue
		}
		result.Succeeded++
	}
	s.bump(ctx)
	return result, nil
}

func monthIndex(from, month time.Time) int {
	return (month.Year()-from.Year())*12 + int(month.Month()) - int(from.Month())
}

// RunDeadStockAnalysis classifies every stocked location by staleness.
// thresholdDays tunes the slow-moving cutoff; zero means the default.
func (s *Service) RunDeadStockAnalysis(ctx context.Context, branchID int64, asOf time.Time, thresholdDays int) (RunResult, error) {
	date := s.analysisDate(asOf)
	result := RunResult{AnalysisDate: date}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	stock, err := s.repo.ListStock(ctx, branchID)
	if err != nil {
		return result, err
	}
	sales, err := s.repo.LastSales(ctx, branchID)
	if err != nil {
		return result, err
	}
	lastSold := make(map[int64]time.Time, len(sales))
	for _, row := range sales {
		lastSold[row.StockLocationID] = row.At
	}

	for _, row := range stock {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		loc := row.Location
		status, days := classifyDeadStock(lastSold[loc.ID], date, thresholdDays)
		rec := DeadStockRecord{
			AnalysisDate:      date,
			BranchID:          loc.BranchID,
			WarehouseID:       loc.WarehouseID,
			ProductID:         loc.ProductID,
			VariantID:         loc.VariantID,
			StockLocationID:   loc.ID,
			Quantity:          loc.Quantity,
			Value:             loc.Quantity.Mul(row.UnitCost),
			LastSoldAt:        lastSold[loc.ID],
			DaysSinceLastSale: days,
			Status:            status,
			Recommendation:    status.Recommendation(),
		}
		if err := s.repo.UpsertDeadStock(ctx, rec); err != nil {
			result.Failed++
			s.logger.Error("dead stock upsert failed",
				slog.Int64("stock_location_id", loc.ID),
				slog.String("error", err.Error()))
			continue
		}
		result.Succeeded++
	}
	s.bump(ctx)
	return result, nil
}

// RunAgingAnalysis buckets on-hand quantity and value by receipt age. The
// put-away date anchors the age; locations without one fall back to their
// earliest inbound movement.
func (s *Service) RunAgingAnalysis(ctx context.Context, branchID int64, asOf time.Time) (RunResult, error) {
	date := s.analysisDate(asOf)
	result := RunResult{AnalysisDate: date}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	stock, err := s.repo.ListStock(ctx, branchID)
	if err != nil {
		return result, err
	}
	receipts, err := s.repo.OldestReceipts(ctx, branchID)
	if err != nil {
		return result, err
	}
	oldest := make(map[int64]time.Time, len(receipts))
	for _, row := range receipts {
		oldest[row.StockLocationID] = row.At
	}

	type bucketKey struct {
		warehouseID int64
		bucket      string
	}
	totals := make(map[bucketKey]*AgingRecord)
	warehouses := make(map[int64]struct{})
	for _, row := range stock {
		loc := row.Location
		warehouses[loc.WarehouseID] = struct{}{}
		receivedAt := loc.PutAwayDate
		if receivedAt.IsZero() || receivedAt.Unix() == 0 {
			receivedAt = oldest[loc.ID]
		}
		age := 0
		if !receivedAt.IsZero() && receivedAt.Unix() != 0 {
			age = int(date.Sub(receivedAt).Hours() / 24)
		}
		bucket := agingBucketFor(age)
		k := bucketKey{loc.WarehouseID, bucket}
		rec, ok := totals[k]
		if !ok {
			rec = &AgingRecord{
				AnalysisDate: date,
				BranchID:     branchID,
				WarehouseID:  loc.WarehouseID,
				Bucket:       bucket,
				Quantity:     decimal.Zero,
				Value:        decimal.Zero,
			}
			totals[k] = rec
		}
		rec.Quantity = rec.Quantity.Add(loc.Quantity)
		rec.Value = rec.Value.Add(loc.Quantity.Mul(row.UnitCost))
		rec.ItemCount++
	}

	// Write all buckets per warehouse so the snapshot reads as a complete
	// histogram even when a range is empty.
	for warehouseID := range warehouses {
		for _, b := range agingBuckets {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			k := bucketKey{warehouseID, b.Label}
			rec, ok := totals[k]
			if !ok {
				rec = &AgingRecord{
					AnalysisDate: date,
					BranchID:     branchID,
					WarehouseID:  warehouseID,
					Bucket:       b.Label,
					Quantity:     decimal.Zero,
					Value:        decimal.Zero,
				}
			}
			if err := s.repo.UpsertAging(ctx, *rec); err != nil {
				result.Failed++
				s.logger.Error("aging upsert failed",
					slog.Int64("warehouse_id", warehouseID),
					slog.String("bucket", b.Label),
					slog.String("error", err.Error()))
				continue
			}
			result.Succeeded++
		}
	}
	s.bump(ctx)
	return result, nil
}

// RunAll fans the three analyzers out concurrently. They only read history
// and write their own snapshot tables, so they cannot contend with each
// other or with live stock mutations.
func (s *Service) RunAll(ctx context.Context, branchID int64, asOf time.Time) (abc, dead, aging RunResult, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var runErr error
		abc, runErr = s.RunABCAnalysis(gctx, branchID, asOf)
		return runErr
	})
	g.Go(func() error {
		var runErr error
		dead, runErr = s.RunDeadStockAnalysis(gctx, branchID, asOf, 0)
		return runErr
	})
	g.Go(func() error {
		var runErr error
		aging, runErr = s.RunAgingAnalysis(gctx, branchID, asOf)
		return runErr
	})
	err = g.Wait()
	return abc, dead, aging, err
}

func (s *Service) bump(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache bump failed", slog.String("error", err.Error()))
	}
}

// GetABCReport serves the classification snapshot for a date, cached.
func (s *Service) GetABCReport(ctx context.Context, branchID int64, date time.Time) ([]ABCRecord, error) {
	date = s.analysisDate(date)
	key, err := s.cache.BuildKey(ctx, keyABC(branchID, date))
	if err != nil {
		return nil, err
	}
	var records []ABCRecord
	err = s.cache.FetchJSON(ctx, key, &records, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListABC(ctx, branchID, date)
	})
	return records, err
}

// GetDeadStockReport serves the staleness snapshot for a date, cached.
func (s *Service) GetDeadStockReport(ctx context.Context, branchID int64, date time.Time) ([]DeadStockRecord, error) {
	date = s.analysisDate(date)
	key, err := s.cache.BuildKey(ctx, keyDeadStock(branchID, date))
	if err != nil {
		return nil, err
	}
	var records []DeadStockRecord
	err = s.cache.FetchJSON(ctx, key, &records, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListDeadStock(ctx, branchID, date)
	})
	return records, err
}

// GetAgingReport serves the aging snapshot for a date, cached.
func (s *Service) GetAgingReport(ctx context.Context, branchID int64, date time.Time) ([]AgingRecord, error) {
	date = s.analysisDate(date)
	key, err := s.cache.BuildKey(ctx, keyAging(branchID, date))
	if err != nil {
		return nil, err
	}
	var records []AgingRecord
	err = s.cache.FetchJSON(ctx, key, &records, func(ctx context.Context) (interface{}, error) {
		return s.repo.ListAging(ctx, branchID, date)
	})
	return records, err
}
