package analysis

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// abcAThreshold and abcBThreshold are cumulative value-share cutoffs in
// percent. A product whose cumulative share crosses a cutoff falls into the
// next class: exactly 80.00 is still A, 80.01 is B.
var (
	abcAThreshold = decimal.NewFromInt(80)
	abcBThreshold = decimal.NewFromInt(95)
)

// xyzXThreshold and xyzYThreshold are coefficient-of-variation cutoffs.
const (
	xyzXThreshold = 0.25
	xyzYThreshold = 0.75
)

// productUsage is the per-product aggregate the classifier ranks.
type productUsage struct {
	ProductID     int64
	VariantID     int64
	UsageQuantity decimal.Decimal
	UsageValue    decimal.Decimal
	MonthlyDemand []float64
}

// classifyABC ranks products by usage value descending and assigns classes by
// cumulative value share. Input order does not matter; output is ranked.
func classifyABC(usages []productUsage) []ABCRecord {
	ranked := make([]productUsage, len(usages))
	copy(ranked, usages)
	sort.SliceStable(ranked, func(i, j int) bool {
		if !ranked[i].UsageValue.Equal(ranked[j].UsageValue) {
			return ranked[i].UsageValue.GreaterThan(ranked[j].UsageValue)
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})

	total := decimal.Zero
	for _, u := range ranked {
		total = total.Add(u.UsageValue)
	}

	hundred := decimal.NewFromInt(100)
	records := make([]ABCRecord, 0, len(ranked))
	cumulative := decimal.Zero
	for _, u := range ranked {
		cumulative = cumulative.Add(u.UsageValue)
		share := decimal.Zero
		cumPct := hundred
		if total.IsPositive() {
			share = u.UsageValue.Mul(hundred).DivRound(total, 4)
			cumPct = cumulative.Mul(hundred).DivRound(total, 4)
		}
		abc := ClassC
		switch {
		case cumPct.LessThanOrEqual(abcAThreshold):
			abc = ClassA
		case cumPct.LessThanOrEqual(abcBThreshold):
			abc = ClassB
		}
		xyz := classifyXYZ(u.MonthlyDemand)
		combined := string(abc) + string(xyz)
		records = append(records, ABCRecord{
			ProductID:      u.ProductID,
			VariantID:      u.VariantID,
			UsageQuantity:  u.UsageQuantity,
			UsageValue:     u.UsageValue,
			ValueShare:     share,
			CumulativePct:  cumPct,
			ABCClass:       abc,
			XYZClass:       xyz,
			CombinedClass:  combined,
			Recommendation: abcRecommendations[combined],
		})
	}
	return records
}

// classifyXYZ computes the coefficient of variation of monthly demand.
// Products with no demand history are maximally unpredictable.
func classifyXYZ(monthly []float64) XYZClass {
	cv := coefficientOfVariation(monthly)
	switch {
	case cv < xyzXThreshold:
		return ClassX
	case cv < xyzYThreshold:
		return ClassY
	default:
		return ClassZ
	}
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		return math.Inf(1)
	}
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	stddev := math.Sqrt(sq / float64(len(values)))
	return stddev / mean
}

// classifyDeadStock buckets a stock row by days since its last sale.
// A row that never sold counts as dead regardless of age.
func classifyDeadStock(lastSoldAt time.Time, asOf time.Time, thresholdDays int) (DeadStockStatus, int) {
	if thresholdDays <= 0 {
		thresholdDays = DefaultSlowMovingDays
	}
	if lastSoldAt.IsZero() {
		return StatusDead, -1
	}
	days := int(asOf.Sub(lastSoldAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	switch {
	case days > 365:
		return StatusDead, days
	case days > 180:
		return StatusVerySlow, days
	case days > thresholdDays:
		return StatusSlowMoving, days
	default:
		return StatusActive, days
	}
}

// DefaultSlowMovingDays is the slow-moving cutoff when a run does not
// override it.
const DefaultSlowMovingDays = 90

// agingBucketFor returns the bucket label for an item age in days.
func agingBucketFor(ageDays int) string {
	if ageDays < 0 {
		ageDays = 0
	}
	for _, b := range agingBuckets {
		if ageDays >= b.Min && (b.Max == 0 || ageDays <= b.Max) {
			return b.Label
		}
	}
	return agingBuckets[len(agingBuckets)-1].Label
}
