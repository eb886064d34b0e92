package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSimpleMovingAverage(t *testing.T) {
	avg, err := SimpleMovingAverage([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	require.InDelta(t, 5, avg, 1e-9)

	// Window larger than the series falls back to the whole series.
	avg, err = SimpleMovingAverage([]float64{2, 4}, 10)
	require.NoError(t, err)
	require.InDelta(t, 3, avg, 1e-9)

	_, err = SimpleMovingAverage(nil, 3)
	require.ErrorIs(t, err, ErrNoHistory)
}

func TestWeightedMovingAverageWeightsNewest(t *testing.T) {
	// Weights 1,2,3 over (1,2,3): (1 + 4 + 9) / 6.
	avg, err := WeightedMovingAverage([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	require.InDelta(t, 14.0/6.0, avg, 1e-9)
}

func TestExponentialSmoothing(t *testing.T) {
	// level = 0.5*20 + 0.5*(0.5*10 + 0.5*10) = 15
	level, err := ExponentialSmoothing([]float64{10, 10, 20}, 0.5)
	require.NoError(t, err)
	require.InDelta(t, 15, level, 1e-9)

	_, err = ExponentialSmoothing([]float64{1}, 1.5)
	require.ErrorIs(t, err, ErrInvalidAlpha)
	_, err = ExponentialSmoothing([]float64{1}, 0)
	require.ErrorIs(t, err, ErrInvalidAlpha)
}

func TestSeasonalIndex(t *testing.T) {
	history := []DailyDemand{
		{Date: day("2026-01-10"), Quantity: 10},
		{Date: day("2026-01-11"), Quantity: 10},
		{Date: day("2026-02-10"), Quantity: 30},
		{Date: day("2026-02-11"), Quantity: 30},
	}
	// Overall average 20, February average 30.
	require.InDelta(t, 1.5, SeasonalIndex(history, time.February), 1e-9)
	require.InDelta(t, 0.5, SeasonalIndex(history, time.January), 1e-9)
	// No data for the month indexes at 1.
	require.InDelta(t, 1, SeasonalIndex(history, time.July), 1e-9)
	require.InDelta(t, 1, SeasonalIndex(nil, time.July), 1e-9)
}

func TestWeeklyTrend(t *testing.T) {
	var rising []DailyDemand
	start := day("2026-01-05")
	for week := 0; week < 6; week++ {
		rising = append(rising, DailyDemand{
			Date:     start.AddDate(0, 0, week*7),
			Quantity: float64(10 + week*5),
		})
	}
	slope, trend := WeeklyTrend(rising)
	require.Equal(t, TrendIncreasing, trend)
	require.InDelta(t, 5, slope, 1e-9)

	var flat []DailyDemand
	for week := 0; week < 6; week++ {
		flat = append(flat, DailyDemand{Date: start.AddDate(0, 0, week*7), Quantity: 10})
	}
	_, trend = WeeklyTrend(flat)
	require.Equal(t, TrendStable, trend)

	var falling []DailyDemand
	for week := 0; week < 6; week++ {
		falling = append(falling, DailyDemand{
			Date:     start.AddDate(0, 0, week*7),
			Quantity: float64(50 - week*5),
		})
	}
	_, trend = WeeklyTrend(falling)
	require.Equal(t, TrendDecreasing, trend)
}

func TestSafetyStockMatchesFormula(t *testing.T) {
	daily := []float64{10, 12, 8, 14, 6}
	mean := 10.0
	variance := 0.0
	for _, v := range daily {
		variance += (v - mean) * (v - mean)
	}
	variance /= 4
	want := 1.6449 * math.Sqrt(variance) * math.Sqrt(7)
	require.InDelta(t, want, SafetyStock(daily, 95, 7), 1e-9)

	// Constant demand needs no buffer.
	require.Zero(t, SafetyStock([]float64{5, 5, 5}, 95, 7))
	require.Zero(t, SafetyStock([]float64{5}, 95, 7))
}

func TestZScoreNearestLevel(t *testing.T) {
	require.InDelta(t, 1.2816, zScore(90), 1e-9)
	require.InDelta(t, 1.6449, zScore(93), 1e-9)
	require.InDelta(t, 3.0902, zScore(99.9), 1e-9)
	require.InDelta(t, 3.0902, zScore(99.99), 1e-9)
}

func TestReorderPoint(t *testing.T) {
	require.InDelta(t, 82, ReorderPoint(10, 7, 12), 1e-9)
}

func TestEOQ(t *testing.T) {
	// sqrt(2 * 1200 * 50 / 3) = 200
	require.InDelta(t, 200, EOQ(1200, 50, 3, 25), 1e-9)
	// Zero holding cost falls back to the default order quantity.
	require.InDelta(t, 25, EOQ(1200, 50, 0, 25), 1e-9)
	require.InDelta(t, 25, EOQ(0, 50, 3, 25), 1e-9)
}

func TestForecastDeterministicAndAdjusted(t *testing.T) {
	var history []DailyDemand
	start := day("2026-01-01")
	for i := 0; i < 56; i++ {
		history = append(history, DailyDemand{
			Date:     start.AddDate(0, 0, i),
			Quantity: float64(10 + i/7),
		})
	}
	asOf := day("2026-03-01")

	first, err := Forecast(history, asOf, 30, DefaultConfig())
	require.NoError(t, err)
	second, err := Forecast(history, asOf, 30, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Equal(t, TrendIncreasing, first.Trend)
	require.InDelta(t, first.DailyForecast*30, first.PeriodForecast, 1e-9)
	require.Greater(t, first.ReorderPoint, first.SafetyStock)

	_, err = Forecast(nil, asOf, 30, DefaultConfig())
	require.ErrorIs(t, err, ErrNoHistory)
}
