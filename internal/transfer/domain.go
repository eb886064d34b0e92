// Package transfer moves stock between warehouses. A transfer ships what
// the source actually holds and receives it on the destination's shelves;
// value travels with the goods at the cost they were issued.
package transfer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// Status enumerates transfer states. Transitions only move forward:
// draft, shipped, received, completed.
type Status string

const (
	// StatusDraft means the transfer is editable and no stock has moved.
	StatusDraft Status = "draft"
	// StatusShipped means stock left the source warehouse.
	StatusShipped Status = "shipped"
	// StatusReceived means part of the shipped quantity arrived and the
	// rest is still outstanding.
	StatusReceived Status = "received"
	// StatusCompleted means every shipped quantity arrived.
	StatusCompleted Status = "completed"
)

// Transfer is one stock movement between two warehouses.
type Transfer struct {
	ID              int64
	FromWarehouseID int64
	FromBranchID    int64
	ToWarehouseID   int64
	ToBranchID      int64
	Reference       string
	Note            string
	Status          Status
	CreatedAt       time.Time
	ShippedAt       time.Time
	CompletedAt     time.Time
}

// TransferItem is one product line. ShippedQuantity may fall short of
// RequestedQuantity when the source ran dry; the shipped amount is final.
type TransferItem struct {
	ID                int64
	TransferID        int64
	ProductID         int64
	VariantID         int64
	BatchNumber       string
	RequestedQuantity decimal.Decimal
	ShippedQuantity   decimal.Decimal
	ReceivedQuantity  decimal.Decimal
	// ShippedUnitCost is the average cost the source issued at. The
	// destination receives at this cost so value is conserved.
	ShippedUnitCost decimal.Decimal
	Method          valuation.Method
}

// Outstanding returns the shipped quantity not yet received.
func (i TransferItem) Outstanding() decimal.Decimal {
	return i.ShippedQuantity.Sub(i.ReceivedQuantity)
}

// LineInput is one requested product line.
type LineInput struct {
	ProductID   int64
	VariantID   int64
	BatchNumber string
	Quantity    decimal.Decimal
	Method      valuation.Method
}

// CreateInput describes a draft transfer.
type CreateInput struct {
	FromWarehouseID int64
	FromBranchID    int64
	ToWarehouseID   int64
	ToBranchID      int64
	Reference       string
	Note            string
	ActorID         int64
	Lines           []LineInput
}
