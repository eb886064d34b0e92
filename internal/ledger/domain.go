package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementIn represents an inbound receipt (put-away completion, GRN).
	MovementIn MovementType = "in"
	// MovementOut represents a generic outbound withdrawal.
	MovementOut MovementType = "out"
	// MovementSale represents a point-of-sale decrement.
	MovementSale MovementType = "sale"
	// MovementReturn represents returned goods coming back to stock.
	MovementReturn MovementType = "return"
	// MovementAdjustment records a cycle-count or manual correction.
	MovementAdjustment MovementType = "adjustment"
	// MovementTransferIn records receipt of an inter-warehouse transfer.
	MovementTransferIn MovementType = "transfer_in"
	// MovementTransferOut records shipment of an inter-warehouse transfer.
	MovementTransferOut MovementType = "transfer_out"
)

// Inbound reports whether the movement type increases on-hand quantity.
func (t MovementType) Inbound() bool {
	switch t {
	case MovementIn, MovementReturn, MovementTransferIn:
		return true
	}
	return false
}

// Outbound reports whether the movement type decreases on-hand quantity.
func (t MovementType) Outbound() bool {
	switch t {
	case MovementOut, MovementSale, MovementTransferOut:
		return true
	}
	return false
}

// StockLocation is the quantity of one (product, variant, batch) sitting at
// one warehouse location. Invariant: 0 <= ReservedQuantity <= Quantity unless
// the product allows negative availability, in which case only reservation
// non-negativity is enforced.
type StockLocation struct {
	ID                  int64
	WarehouseID         int64
	BranchID            int64
	WarehouseLocationID int64
	ProductID           int64
	VariantID           int64
	BatchNumber         string
	ExpiryDate          time.Time
	Quantity            decimal.Decimal
	ReservedQuantity    decimal.Decimal
	PutAwayDate         time.Time
	LastPickedAt        time.Time
	LastCountedAt       time.Time
}

// Available returns quantity minus reservations.
func (s StockLocation) Available() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// ValuationKey returns the valuation aggregate key for this row.
func (s StockLocation) ValuationKey() valuation.Key {
	return valuation.Key{ProductID: s.ProductID, VariantID: s.VariantID, BranchID: s.BranchID}
}

// StockMovement is the append-only audit record of one quantity change. Rows
// are never mutated or deleted; they are the sole ground truth for the
// forecasting and classification analyzers.
type StockMovement struct {
	ID              int64
	ProductID       int64
	VariantID       int64
	BranchID        int64
	WarehouseID     int64
	StockLocationID int64
	Type            MovementType
	Quantity        decimal.Decimal
	QuantityBefore  decimal.Decimal
	QuantityAfter   decimal.Decimal
	UnitCost        decimal.Decimal
	ReferenceType   string
	ReferenceID     string
	Note            string
	ActorID         int64
	OccurredAt      time.Time
}

// MovementFilter scopes movement history queries.
type MovementFilter struct {
	ProductID int64
	VariantID int64
	BranchID  int64
	Types     []MovementType
	From      time.Time
	To        time.Time
	Limit     int
}

var (
	// ErrStockLocationNotFound indicates a missing stock location row.
	ErrStockLocationNotFound = errors.New("stock location not found")
	// ErrInsufficientStock mirrors the shared taxonomy.
	ErrInsufficientStock = shared.ErrInsufficientStock
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = errors.New("ledger: quantity must be positive")
	// ErrInvalidMovementType indicates an unrecognised movement type.
	ErrInvalidMovementType = errors.New("ledger: unknown movement type")
	// ErrReservationExceedsStock indicates a reservation larger than on-hand quantity.
	ErrReservationExceedsStock = errors.New("ledger: reservation exceeds on-hand quantity")
)
