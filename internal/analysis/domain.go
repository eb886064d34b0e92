package analysis

import (
	"time"

	"github.com/shopspring/decimal"
)

// ABCClass buckets products by their share of total usage value.
type ABCClass string

const (
	ClassA ABCClass = "A"
	ClassB ABCClass = "B"
	ClassC ABCClass = "C"
)

// XYZClass buckets products by demand variability.
type XYZClass string

const (
	ClassX XYZClass = "X"
	ClassY XYZClass = "Y"
	ClassZ XYZClass = "Z"
)

// abcRecommendations maps a combined ABC/XYZ class to replenishment advice.
var abcRecommendations = map[string]string{
	"AX": "tight control, automated replenishment, low safety stock",
	"AY": "tight control, forecast-driven replenishment, moderate safety stock",
	"AZ": "tight control, manual review per order, high safety stock",
	"BX": "normal control, automated replenishment",
	"BY": "normal control, periodic review",
	"BZ": "normal control, order on demand",
	"CX": "loose control, bulk orders on a fixed schedule",
	"CY": "loose control, periodic bulk orders",
	"CZ": "loose control, order only on demand, consider delisting",
}

// ABCRecord is one product's classification snapshot for an analysis date.
type ABCRecord struct {
	ID             int64
	AnalysisDate   time.Time
	BranchID       int64
	ProductID      int64
	VariantID      int64
	UsageQuantity  decimal.Decimal
	UsageValue     decimal.Decimal
	ValueShare     decimal.Decimal
	CumulativePct  decimal.Decimal
	ABCClass       ABCClass
	XYZClass       XYZClass
	CombinedClass  string
	Recommendation string
}

// DeadStockStatus classifies how stale a stock row is.
type DeadStockStatus string

const (
	StatusActive     DeadStockStatus = "active"
	StatusSlowMoving DeadStockStatus = "slow_moving"
	StatusVerySlow   DeadStockStatus = "very_slow"
	StatusDead       DeadStockStatus = "dead"
)

// deadStockRecommendations maps staleness to an action.
var deadStockRecommendations = map[DeadStockStatus]string{
	StatusActive:     "continue",
	StatusSlowMoving: "promote",
	StatusVerySlow:   "liquidate",
	StatusDead:       "dispose",
}

// Recommendation returns the action for a staleness status.
func (s DeadStockStatus) Recommendation() string {
	return deadStockRecommendations[s]
}

// DeadStockRecord is one (product, location) staleness snapshot.
type DeadStockRecord struct {
	ID                int64
	AnalysisDate      time.Time
	BranchID          int64
	WarehouseID       int64
	ProductID         int64
	VariantID         int64
	StockLocationID   int64
	Quantity          decimal.Decimal
	Value             decimal.Decimal
	LastSoldAt        time.Time
	DaysSinceLastSale int
	Status            DeadStockStatus
	Recommendation    string
}

// agingBuckets are the ranges quantities are aged into, in days.
// An upper bound of 0 means unbounded.
var agingBuckets = []struct {
	Label string
	Min   int
	Max   int
}{
	{"0-30", 0, 30},
	{"31-60", 31, 60},
	{"61-90", 61, 90},
	{"91-180", 91, 180},
	{"181-365", 181, 365},
	{">365", 366, 0},
}

// AgingRecord is one bucket line of a stock aging snapshot.
type AgingRecord struct {
	ID           int64
	AnalysisDate time.Time
	BranchID     int64
	WarehouseID  int64
	Bucket       string
	Quantity     decimal.Decimal
	Value        decimal.Decimal
	ItemCount    int
}

// RunResult reports the outcome of a batch analysis run. Failed items are
// logged and skipped so one bad product cannot abort the run.
type RunResult struct {
	AnalysisDate time.Time `json:"analysis_date"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
}
