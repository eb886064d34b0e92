package forecast

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
)

type stubMovements struct {
	movements []ledger.StockMovement
	gotFilter ledger.MovementFilter
}

func (s *stubMovements) GetMovements(_ context.Context, filter ledger.MovementFilter) ([]ledger.StockMovement, error) {
	s.gotFilter = filter
	var out []ledger.StockMovement
	for _, m := range s.movements {
		if m.OccurredAt.Before(filter.From) || m.OccurredAt.After(filter.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func sale(day time.Time, qty string) ledger.StockMovement {
	return ledger.StockMovement{
		ProductID:  100,
		BranchID:   1,
		Type:       ledger.MovementSale,
		Quantity:   decimal.RequireFromString(qty),
		OccurredAt: day,
	}
}

func TestGetForecastAggregatesSales(t *testing.T) {
	now := day("2026-06-01")
	src := &stubMovements{}
	for i := 0; i < 60; i++ {
		src.movements = append(src.movements, sale(now.AddDate(0, 0, -i-1), "10"))
	}
	svc := NewService(src, Config{})
	svc.WithClock(func() time.Time { return now })

	result, err := svc.GetForecast(context.Background(), 100, 0, 1, 30)
	require.NoError(t, err)
	require.Equal(t, 30, result.HorizonDays)
	require.Greater(t, result.DailyForecast, 0.0)
	// Only sale and return movements feed the demand series.
	require.Equal(t, []ledger.MovementType{ledger.MovementSale, ledger.MovementReturn}, src.gotFilter.Types)
}

func TestReturnsNetOutDemand(t *testing.T) {
	now := day("2026-06-01")
	saleDay := now.AddDate(0, 0, -10)
	src := &stubMovements{movements: []ledger.StockMovement{
		sale(saleDay, "10"),
		{ProductID: 100, BranchID: 1, Type: ledger.MovementReturn, Quantity: decimal.RequireFromString("4"), OccurredAt: saleDay},
	}}
	svc := NewService(src, Config{})
	svc.WithClock(func() time.Time { return now })

	history, err := svc.demandHistory(context.Background(), 100, 0, 1)
	require.NoError(t, err)
	total := 0.0
	for _, d := range history {
		total += d.Quantity
	}
	require.InDelta(t, 6, total, 1e-9)
}

func TestGetReorderPointUsesOverrideLeadTime(t *testing.T) {
	now := day("2026-06-01")
	src := &stubMovements{}
	for i := 0; i < 30; i++ {
		src.movements = append(src.movements, sale(now.AddDate(0, 0, -i-1), "10"))
	}
	svc := NewService(src, Config{})
	svc.WithClock(func() time.Time { return now })

	short, err := svc.GetReorderPoint(context.Background(), 100, 0, 1, 2)
	require.NoError(t, err)
	long, err := svc.GetReorderPoint(context.Background(), 100, 0, 1, 14)
	require.NoError(t, err)
	require.Greater(t, long, short)
}

func TestGetEOQ(t *testing.T) {
	now := day("2026-06-01")
	src := &stubMovements{}
	svc := NewService(src, Config{})
	svc.WithClock(func() time.Time { return now })

	qty, err := svc.GetEOQ(context.Background(), 100, 0, 1, EOQInput{OrderingCost: 50, HoldingCostPerUnit: 3, DefaultOrderQty: 25})
	require.NoError(t, err)
	// No demand history falls back to the default order quantity.
	require.InDelta(t, 25, qty, 1e-9)
}
