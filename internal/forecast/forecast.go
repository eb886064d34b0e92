// Package forecast derives demand forecasts, safety stock and order
// quantities from stock movement history. All functions here are pure:
// identical history yields identical output and nothing touches ledger
// state.
package forecast

import (
	"errors"
	"math"
	"sort"
	"time"
)

// Trend classifies the direction of weekly demand.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// trendDeadZone is the slope band treated as stable.
const trendDeadZone = 0.1

// trendAdjust is the multiplicative forecast correction per direction.
const trendAdjust = 0.05

// ErrInvalidAlpha reports a smoothing factor outside (0, 1).
var ErrInvalidAlpha = errors.New("forecast: smoothing factor must be in (0, 1)")

// ErrNoHistory reports an empty demand series.
var ErrNoHistory = errors.New("forecast: no demand history")

// DailyDemand is demand aggregated over one calendar day.
type DailyDemand struct {
	Date     time.Time
	Quantity float64
}

// SimpleMovingAverage averages the last window values. A window larger
// than the series uses the whole series.
func SimpleMovingAverage(values []float64, window int) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoHistory
	}
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window), nil
}

// WeightedMovingAverage weights the last window values linearly, newest
// heaviest.
func WeightedMovingAverage(values []float64, window int) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoHistory
	}
	if window <= 0 || window > len(values) {
		window = len(values)
	}
	tail := values[len(values)-window:]
	sum, weights := 0.0, 0.0
	for i, v := range tail {
		w := float64(i + 1)
		sum += v * w
		weights += w
	}
	return sum / weights, nil
}

// ExponentialSmoothing folds the series into a single smoothed level.
func ExponentialSmoothing(values []float64, alpha float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoHistory
	}
	if alpha <= 0 || alpha >= 1 {
		return 0, ErrInvalidAlpha
	}
	level := values[0]
	for _, v := range values[1:] {
		level = alpha*v + (1-alpha)*level
	}
	return level, nil
}

// SeasonalIndex returns the month's average demand divided by the overall
// average. Months without history, or a zero overall average, index at 1.
func SeasonalIndex(history []DailyDemand, month time.Month) float64 {
	var total, monthTotal float64
	var days, monthDays int
	for _, d := range history {
		total += d.Quantity
		days++
		if d.Date.Month() == month {
			monthTotal += d.Quantity
			monthDays++
		}
	}
	if days == 0 || monthDays == 0 {
		return 1
	}
	overall := total / float64(days)
	if overall == 0 {
		return 1
	}
	return (monthTotal / float64(monthDays)) / overall
}

// WeeklyTrend fits an ordinary least-squares line over weekly demand sums
// and classifies the slope. Slopes within the dead zone are stable.
func WeeklyTrend(history []DailyDemand) (float64, Trend) {
	weekly := aggregateWeekly(history)
	if len(weekly) < 2 {
		return 0, TrendStable
	}
	n := float64(len(weekly))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range weekly {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0, TrendStable
	}
	slope := (n*sumXY - sumX*sumY) / denom
	switch {
	case slope > trendDeadZone:
		return slope, TrendIncreasing
	case slope < -trendDeadZone:
		return slope, TrendDecreasing
	default:
		return slope, TrendStable
	}
}

func aggregateWeekly(history []DailyDemand) []float64 {
	if len(history) == 0 {
		return nil
	}
	sorted := make([]DailyDemand, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	start := sorted[0].Date
	buckets := make(map[int]float64)
	maxWeek := 0
	for _, d := range sorted {
		week := int(d.Date.Sub(start).Hours() / (24 * 7))
		buckets[week] += d.Quantity
		if week > maxWeek {
			maxWeek = week
		}
	}
	weekly := make([]float64, maxWeek+1)
	for week, qty := range buckets {
		weekly[week] = qty
	}
	return weekly
}

// zTable maps service level percentages to standard normal quantiles.
var zTable = []struct {
	level float64
	z     float64
}{
	{90, 1.2816},
	{95, 1.6449},
	{97, 1.8808},
	{99, 2.3263},
	{99.9, 3.0902},
}

// zScore returns the z value for the nearest supported service level at or
// above the requested one.
func zScore(serviceLevel float64) float64 {
	for _, entry := range zTable {
		if serviceLevel <= entry.level {
			return entry.z
		}
	}
	return zTable[len(zTable)-1].z
}

// SafetyStock returns z(serviceLevel) * stddev(daily demand) * sqrt(lead
// time in days).
func SafetyStock(daily []float64, serviceLevel, leadTimeDays float64) float64 {
	if len(daily) < 2 || leadTimeDays <= 0 {
		return 0
	}
	mean := 0.0
	for _, v := range daily {
		mean += v
	}
	mean /= float64(len(daily))
	variance := 0.0
	for _, v := range daily {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(daily) - 1)
	return zScore(serviceLevel) * math.Sqrt(variance) * math.Sqrt(leadTimeDays)
}

// ReorderPoint returns expected lead-time demand plus safety stock.
func ReorderPoint(avgDailyDemand, leadTimeDays, safetyStock float64) float64 {
	return avgDailyDemand*leadTimeDays + safetyStock
}

// EOQ returns the economic order quantity. A non-positive holding cost
// falls back to the configured default order quantity.
func EOQ(annualDemand, orderingCost, holdingCostPerUnit, defaultOrderQty float64) float64 {
	if holdingCostPerUnit <= 0 || annualDemand <= 0 || orderingCost <= 0 {
		return defaultOrderQty
	}
	return math.Sqrt(2 * annualDemand * orderingCost / holdingCostPerUnit)
}

// Config tunes the forecast pipeline.
type Config struct {
	// Alpha is the exponential smoothing factor.
	Alpha float64
	// Window is the moving average window in days.
	Window int
	// ServiceLevel is a percentage (90, 95, 97, 99, 99.9).
	ServiceLevel float64
	// LeadTimeDays is the replenishment lead time.
	LeadTimeDays float64
}

// DefaultConfig mirrors common replenishment defaults.
func DefaultConfig() Config {
	return Config{Alpha: 0.3, Window: 30, ServiceLevel: 95, LeadTimeDays: 7}
}

// Result is one product's forecast.
type Result struct {
	// DailyForecast is the seasonally and trend adjusted expected demand
	// per day.
	DailyForecast float64
	// PeriodForecast is DailyForecast times the horizon.
	PeriodForecast float64
	HorizonDays    int
	SeasonalIndex  float64
	TrendSlope     float64
	Trend          Trend
	AvgDailyDemand float64
	SafetyStock    float64
	ReorderPoint   float64
}

// Forecast runs the full pipeline: smoothed base, seasonal correction for
// the target month, trend correction and the derived safety stock and
// reorder point.
func Forecast(history []DailyDemand, asOf time.Time, horizonDays int, cfg Config) (Result, error) {
	if len(history) == 0 {
		return Result{}, ErrNoHistory
	}
	values := make([]float64, len(history))
	total := 0.0
	for i, d := range history {
		values[i] = d.Quantity
		total += d.Quantity
	}
	base, err := ExponentialSmoothing(values, cfg.Alpha)
	if err != nil {
		return Result{}, err
	}

	seasonal := SeasonalIndex(history, asOf.Month())
	slope, trend := WeeklyTrend(history)

	daily := base * seasonal
	switch trend {
	case TrendIncreasing:
		daily *= 1 + trendAdjust
	case TrendDecreasing:
		daily *= 1 - trendAdjust
	}
	if daily < 0 {
		daily = 0
	}

	avg := total / float64(len(values))
	safety := SafetyStock(values, cfg.ServiceLevel, cfg.LeadTimeDays)
	return Result{
		DailyForecast:  daily,
		PeriodForecast: daily * float64(horizonDays),
		HorizonDays:    horizonDays,
		SeasonalIndex:  seasonal,
		TrendSlope:     slope,
		Trend:          trend,
		AvgDailyDemand: avg,
		SafetyStock:    safety,
		ReorderPoint:   ReorderPoint(avg, cfg.LeadTimeDays, safety),
	}, nil
}
