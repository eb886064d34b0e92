// Package putaway moves received goods from the dock onto shelves. A
// put-away suggests a destination per item but the operator may override
// it; stock only enters the ledger when an item completes.
package putaway

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// ItemStatus enumerates put-away item states.
type ItemStatus string

const (
	// ItemPending means the item waits on the dock.
	ItemPending ItemStatus = "pending"
	// ItemPutting means an operator carries the item.
	ItemPutting ItemStatus = "putting"
	// ItemCompleted means the item sits on its shelf and its quantity is
	// booked in the ledger.
	ItemCompleted ItemStatus = "completed"
)

// ListStatus enumerates put-away states.
type ListStatus string

const (
	ListPending   ListStatus = "pending"
	ListPutting   ListStatus = "putting"
	ListCompleted ListStatus = "completed"
)

// PutAway is a batch of received goods to shelve.
type PutAway struct {
	ID            int64
	WarehouseID   int64
	BranchID      int64
	ReferenceType string
	ReferenceID   string
	Strategy      allocation.PutAwayStrategy
	Status        ListStatus
	CreatedAt     time.Time
	CompletedAt   time.Time
}

// PutAwayItem is one product lot to place. SuggestedLocationID comes from
// the allocation search; ActualLocationID is filled on completion.
type PutAwayItem struct {
	ID                  int64
	PutAwayID           int64
	ProductID           int64
	VariantID           int64
	BatchNumber         string
	ExpiryDate          time.Time
	Quantity            decimal.Decimal
	UnitCost            decimal.Decimal
	Method              valuation.Method
	SuggestedLocationID int64
	ActualLocationID    int64
	Status              ItemStatus
}

// LineInput is one received lot.
type LineInput struct {
	ProductID   int64
	VariantID   int64
	BatchNumber string
	ExpiryDate  time.Time
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	Method      valuation.Method
}

// CreateInput describes a put-away request.
type CreateInput struct {
	WarehouseID   int64
	BranchID      int64
	ReferenceType string
	ReferenceID   string
	Strategy      allocation.PutAwayStrategy
	ActorID       int64
	Lines         []LineInput
}
