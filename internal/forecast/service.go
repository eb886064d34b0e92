package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
)

// MovementSource reads movement history. Forecasting never writes.
type MovementSource interface {
	GetMovements(ctx context.Context, filter ledger.MovementFilter) ([]ledger.StockMovement, error)
}

// Service turns ledger history into forecasts for replenishment tooling.
type Service struct {
	movements MovementSource
	cfg       Config
	now       func() time.Time
}

// NewService builds Service. A zero Config falls back to defaults.
func NewService(movements MovementSource, cfg Config) *Service {
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		cfg.Alpha = DefaultConfig().Alpha
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultConfig().Window
	}
	if cfg.ServiceLevel <= 0 {
		cfg.ServiceLevel = DefaultConfig().ServiceLevel
	}
	if cfg.LeadTimeDays <= 0 {
		cfg.LeadTimeDays = DefaultConfig().LeadTimeDays
	}
	return &Service{movements: movements, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock, used by tests.
func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// historyDays is how far back demand history reaches.
const historyDays = 365

// demandHistory aggregates outbound sale movements into daily demand.
// Returns are netted out since a returned unit was not true demand.
func (s *Service) demandHistory(ctx context.Context, productID, variantID, branchID int64) ([]DailyDemand, error) {
	now := s.now().UTC()
	movements, err := s.movements.GetMovements(ctx, ledger.MovementFilter{
		ProductID: productID,
		VariantID: variantID,
		BranchID:  branchID,
		Types:     []ledger.MovementType{ledger.MovementSale, ledger.MovementReturn},
		From:      now.AddDate(0, 0, -historyDays),
		To:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("load movement history: %w", err)
	}
	buckets := make(map[time.Time]float64)
	for _, m := range movements {
		day := m.OccurredAt.UTC().Truncate(24 * time.Hour)
		qty, _ := m.Quantity.Float64()
		if m.Type == ledger.MovementReturn {
			buckets[day] -= qty
		} else {
			buckets[day] += qty
		}
	}
	var history []DailyDemand
	for day := now.AddDate(0, 0, -historyDays).Truncate(24 * time.Hour); !day.After(now); day = day.AddDate(0, 0, 1) {
		qty := buckets[day]
		if qty < 0 {
			qty = 0
		}
		history = append(history, DailyDemand{Date: day, Quantity: qty})
	}
	return history, nil
}

// GetForecast forecasts demand for the coming daysAhead days.
func (s *Service) GetForecast(ctx context.Context, productID, variantID, branchID int64, daysAhead int) (Result, error) {
	if daysAhead <= 0 {
		daysAhead = 30
	}
	history, err := s.demandHistory(ctx, productID, variantID, branchID)
	if err != nil {
		return Result{}, err
	}
	return Forecast(history, s.now(), daysAhead, s.cfg)
}

// GetReorderPoint returns lead-time demand plus safety stock for the
// product. LeadTimeDays overrides the configured lead time when positive.
func (s *Service) GetReorderPoint(ctx context.Context, productID, variantID, branchID int64, leadTimeDays float64) (float64, error) {
	history, err := s.demandHistory(ctx, productID, variantID, branchID)
	if err != nil {
		return 0, err
	}
	if leadTimeDays <= 0 {
		leadTimeDays = s.cfg.LeadTimeDays
	}
	values := make([]float64, len(history))
	total := 0.0
	for i, d := range history {
		values[i] = d.Quantity
		total += d.Quantity
	}
	if len(values) == 0 {
		return 0, ErrNoHistory
	}
	avg := total / float64(len(values))
	safety := SafetyStock(values, s.cfg.ServiceLevel, leadTimeDays)
	return ReorderPoint(avg, leadTimeDays, safety), nil
}

// EOQInput carries the cost parameters for an order quantity.
type EOQInput struct {
	OrderingCost       float64
	HoldingCostPerUnit float64
	DefaultOrderQty    float64
}

// GetEOQ derives annual demand from history and returns the economic
// order quantity.
func (s *Service) GetEOQ(ctx context.Context, productID, variantID, branchID int64, input EOQInput) (float64, error) {
	history, err := s.demandHistory(ctx, productID, variantID, branchID)
	if err != nil {
		return 0, err
	}
	annual := 0.0
	for _, d := range history {
		annual += d.Quantity
	}
	return EOQ(annual, input.OrderingCost, input.HoldingCostPerUnit, input.DefaultOrderQty), nil
}
