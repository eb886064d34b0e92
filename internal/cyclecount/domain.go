// Package cyclecount reconciles shelf reality with the ledger. A count
// snapshots system quantities up front, records what the counter actually
// found and books the variance as an adjustment movement.
package cyclecount

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus enumerates count item states.
type ItemStatus string

const (
	// ItemPending means the shelf has not been counted yet.
	ItemPending ItemStatus = "pending"
	// ItemCounted means a quantity was recorded but the variance is not
	// booked. Recounting overwrites the recorded quantity.
	ItemCounted ItemStatus = "counted"
	// ItemAdjusted means the variance was booked into the ledger. The
	// item is final.
	ItemAdjusted ItemStatus = "adjusted"
)

// CountStatus enumerates cycle count states.
type CountStatus string

const (
	CountCounting  CountStatus = "counting"
	CountCompleted CountStatus = "completed"
)

// CycleCount is one counting session over a scope of shelves.
type CycleCount struct {
	ID          int64
	WarehouseID int64
	BranchID    int64
	// Zone narrows the scope to one zone; empty counts the warehouse.
	Zone        string
	Status      CountStatus
	CountDate   time.Time
	CreatedAt   time.Time
	CompletedAt time.Time
}

// CountItem is one stock location inside the count. SystemQuantity is
// frozen at creation so later movements do not shift the baseline.
type CountItem struct {
	ID              int64
	CycleCountID    int64
	StockLocationID int64
	ProductID       int64
	VariantID       int64
	BatchNumber     string
	SystemQuantity  decimal.Decimal
	CountedQuantity decimal.Decimal
	Variance        decimal.Decimal
	Status          ItemStatus
	CountedAt       time.Time
	AdjustedAt      time.Time
}

// CreateInput scopes a new count.
type CreateInput struct {
	WarehouseID int64
	BranchID    int64
	Zone        string
	// ProductIDs narrows the count to specific products; empty counts
	// everything in scope.
	ProductIDs []int64
	CountDate  time.Time
	ActorID    int64
}
