package valuation

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// Method enumerates supported costing methods. The method is fixed when the
// valuation record is created and never changes afterwards.
type Method string

const (
	// MethodFIFO consumes the oldest receipt lots first.
	MethodFIFO Method = "fifo"
	// MethodLIFO consumes the newest receipt lots first.
	MethodLIFO Method = "lifo"
	// MethodWeightedAverage keeps a single blended unit cost, recomputed on receipt.
	MethodWeightedAverage Method = "weighted_average"
)

// Valid reports whether m is a recognised costing method.
func (m Method) Valid() bool {
	switch m {
	case MethodFIFO, MethodLIFO, MethodWeightedAverage:
		return true
	}
	return false
}

// UsesLayers reports whether m keeps persisted cost layers.
func (m Method) UsesLayers() bool {
	return m == MethodFIFO || m == MethodLIFO
}

// Key identifies one valuation aggregate. VariantID is zero when the product
// has no variants.
type Key struct {
	ProductID int64
	VariantID int64
	BranchID  int64
}

// CostLayer is one receipt lot. RemainingQuantity only ever decreases.
type CostLayer struct {
	ID                int64
	ReceiptDate       time.Time
	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal
	UnitCost          decimal.Decimal
}

// TotalCost returns the original value of the lot.
func (l CostLayer) TotalCost() decimal.Decimal {
	return l.Quantity.Mul(l.UnitCost)
}

// RemainingValue returns the book value still held in the lot.
func (l CostLayer) RemainingValue() decimal.Decimal {
	return l.RemainingQuantity.Mul(l.UnitCost)
}

// Valuation is the aggregate per valuation key.
type Valuation struct {
	Key           Key
	Method        Method
	TotalQuantity decimal.Decimal
	TotalValue    decimal.Decimal
	CurrentCost   decimal.Decimal
	UpdatedAt     time.Time
}

// LayerDraw describes quantity taken from one layer during a consumption.
type LayerDraw struct {
	LayerID  int64
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

// ConsumeResult reports the cost effect of a consumption.
type ConsumeResult struct {
	// Cost is the total book value removed.
	Cost decimal.Decimal
	// UnitCost is the average unit cost of the consumption.
	UnitCost decimal.Decimal
	// Draws lists the layers drained, in consumption order. Empty for
	// weighted average.
	Draws []LayerDraw
}

var (
	// ErrInsufficientStock mirrors the shared taxonomy for callers matching on either.
	ErrInsufficientStock = shared.ErrInsufficientStock
	// ErrInvalidMethod indicates a receipt with a method differing from the record's.
	ErrInvalidMethod = errors.New("valuation: method is fixed at creation")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("valuation: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("valuation: unit cost must be >= 0")
	// ErrValuationNotFound indicates a missing valuation record.
	ErrValuationNotFound = errors.New("valuation record not found")
)

// costScale is the decimal precision kept on blended unit costs.
const costScale = 4
