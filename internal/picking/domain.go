package picking

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
)

// ItemStatus enumerates pick item states.
type ItemStatus string

const (
	// ItemPending means the item is allocated and reserved but untouched.
	ItemPending ItemStatus = "pending"
	// ItemPicking means a picker has started on the item.
	ItemPicking ItemStatus = "picking"
	// ItemPicked means the full required quantity left the shelf.
	ItemPicked ItemStatus = "picked"
	// ItemShort means less than the required quantity was picked. Short
	// items are not retried automatically; callers create a follow-up
	// request.
	ItemShort ItemStatus = "short"
)

// Open reports whether the item still blocks pick list completion.
func (s ItemStatus) Open() bool {
	return s == ItemPending || s == ItemPicking
}

// ListStatus enumerates pick list states.
type ListStatus string

const (
	// ListPicking means at least one item is still open.
	ListPicking ListStatus = "picking"
	// ListCompleted means no item remains pending or picking.
	ListCompleted ListStatus = "completed"
)

// PickList is a batch of required withdrawals tied to one external
// reference.
type PickList struct {
	ID            int64
	WarehouseID   int64
	BranchID      int64
	ReferenceType string
	ReferenceID   string
	Strategy      allocation.PickStrategy
	MovementType  ledger.MovementType
	Status        ListStatus
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// PickListItem is one slice of a pick assigned to a stock location.
type PickListItem struct {
	ID               int64
	PickListID       int64
	ProductID        int64
	VariantID        int64
	StockLocationID  int64
	BatchNumber      string
	QuantityRequired decimal.Decimal
	QuantityPicked   decimal.Decimal
	Status           ItemStatus
}

// LineInput is one requested withdrawal.
type LineInput struct {
	ProductID   int64
	VariantID   int64
	BatchNumber string
	Quantity    decimal.Decimal
}

// CreateInput describes a pick list request.
type CreateInput struct {
	WarehouseID   int64
	BranchID      int64
	ReferenceType string
	ReferenceID   string
	Strategy      allocation.PickStrategy
	// MovementType is the outbound movement recorded on completion,
	// ledger.MovementSale for order fulfilment or
	// ledger.MovementTransferOut when feeding a transfer.
	MovementType ledger.MovementType
	ActorID      int64
	Lines        []LineInput
}
