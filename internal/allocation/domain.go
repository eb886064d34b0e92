package allocation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// PutAwayStrategy selects how a storage location is suggested for a receipt.
type PutAwayStrategy string

const (
	// PutAwayFixed reuses a location already holding the product.
	PutAwayFixed PutAwayStrategy = "fixed"
	// PutAwayRandom picks any location with spare capacity.
	PutAwayRandom PutAwayStrategy = "random"
	// PutAwayZone prefers the configured fast-moving zone.
	PutAwayZone PutAwayStrategy = "zone"
	// PutAwayClosest prefers picking-zone locations.
	PutAwayClosest PutAwayStrategy = "closest"
	// PutAwayFIFO prefers locations already holding the oldest stock.
	PutAwayFIFO PutAwayStrategy = "fifo"
	// PutAwayFEFO prefers locations holding stock nearest expiry.
	PutAwayFEFO PutAwayStrategy = "fefo"
)

// Valid reports whether s is a recognised put-away strategy.
func (s PutAwayStrategy) Valid() bool {
	switch s {
	case PutAwayFixed, PutAwayRandom, PutAwayZone, PutAwayClosest, PutAwayFIFO, PutAwayFEFO:
		return true
	}
	return false
}

// PickStrategy orders candidate stock locations for withdrawal.
type PickStrategy string

const (
	// PickFIFO orders by put-away date ascending.
	PickFIFO PickStrategy = "fifo"
	// PickFEFO orders by batch expiry ascending.
	PickFEFO PickStrategy = "fefo"
	// PickLIFO orders by put-away date descending.
	PickLIFO PickStrategy = "lifo"
)

// Valid reports whether s is a recognised picking strategy.
func (s PickStrategy) Valid() bool {
	switch s {
	case PickFIFO, PickFEFO, PickLIFO:
		return true
	}
	return false
}

// Candidate is one warehouse location considered for put-away, together with
// the stock it currently holds.
type Candidate struct {
	LocationID      int64
	LocationCode    string
	Zone            string
	LocationType    string
	MaxCapacity     decimal.Decimal
	CurrentQuantity decimal.Decimal
	HoldsProduct    bool
	OldestPutAway   time.Time
	NearestExpiry   time.Time
}

// HasSpareFor reports whether qty fits the location's remaining capacity.
// Zero MaxCapacity means unlimited.
func (c Candidate) HasSpareFor(qty decimal.Decimal) bool {
	if c.MaxCapacity.Sign() <= 0 {
		return true
	}
	return c.CurrentQuantity.Add(qty).LessThanOrEqual(c.MaxCapacity)
}

// PickCandidate is one stock location considered for picking.
type PickCandidate struct {
	StockLocationID int64
	LocationID      int64
	BatchNumber     string
	Available       decimal.Decimal
	PutAwayDate     time.Time
	ExpiryDate      time.Time
}

// Allocation is one slice of a pick assigned to a stock location.
type Allocation struct {
	StockLocationID int64
	LocationID      int64
	Quantity        decimal.Decimal
}

// ErrNoLocationAvailable mirrors the shared taxonomy.
var ErrNoLocationAvailable = shared.ErrNoLocationAvailable
