package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetTransfer(ctx context.Context, transferID int64) (Transfer, []TransferItem, error)
}

// AllocatorPort suggests destination shelves when receiving.
type AllocatorPort interface {
	SuggestPutAwayLocation(ctx context.Context, warehouseID, productID int64, qty decimal.Decimal, strategy allocation.PutAwayStrategy) (allocation.Candidate, error)
}

// Service drives warehouse transfers. Shipping drains source locations
// oldest put-away first and ships at most what the source holds; the
// shipped quantity is final. Receiving books stock onto the destination
// at the shipped cost.
type Service struct {
	repo      RepositoryPort
	ledger    *ledger.Service
	allocator AllocatorPort
	audit     ledger.AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledgerSvc *ledger.Service, allocator AllocatorPort, audit ledger.AuditPort) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, allocator: allocator, audit: audit}
}

// CreateTransfer records a draft. No stock moves until Ship.
func (s *Service) CreateTransfer(ctx context.Context, input CreateInput) (Transfer, []TransferItem, error) {
	if input.FromWarehouseID == 0 || input.ToWarehouseID == 0 {
		return Transfer{}, nil, errors.New("transfer: source and destination warehouses required")
	}
	if input.FromWarehouseID == input.ToWarehouseID {
		return Transfer{}, nil, errors.New("transfer: source and destination must differ")
	}
	if input.FromBranchID == 0 || input.ToBranchID == 0 {
		return Transfer{}, nil, errors.New("transfer: source and destination branches required")
	}
	if len(input.Lines) == 0 {
		return Transfer{}, nil, errors.New("transfer: at least one line required")
	}
	tr := Transfer{
		FromWarehouseID: input.FromWarehouseID,
		FromBranchID:    input.FromBranchID,
		ToWarehouseID:   input.ToWarehouseID,
		ToBranchID:      input.ToBranchID,
		Reference:       input.Reference,
		Note:            input.Note,
		Status:          StatusDraft,
	}
	var items []TransferItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items = items[:0]
		id, err := tx.InsertTransfer(ctx, tr)
		if err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}
		tr.ID = id
		for _, line := range input.Lines {
			if line.Quantity.Sign() <= 0 {
				return ledger.ErrInvalidQuantity
			}
			method := line.Method
			if method == "" {
				method = valuation.MethodWeightedAverage
			}
			item := TransferItem{
				TransferID:        id,
				ProductID:         line.ProductID,
				VariantID:         line.VariantID,
				BatchNumber:       line.BatchNumber,
				RequestedQuantity: line.Quantity,
				Method:            method,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return fmt.Errorf("insert transfer item: %w", err)
			}
			item.ID = itemID
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return Transfer{}, nil, err
	}
	return tr, items, nil
}

// Ship issues every line from the source warehouse, draining locations
// oldest put-away first. A line with less on hand than requested ships
// what exists; the shipped quantity is final and no back-order is kept.
// Shipping nothing at all fails with ErrInsufficientStock.
func (s *Service) Ship(ctx context.Context, transferID, actorID int64) (Transfer, []TransferItem, error) {
	var tr Transfer
	var items []TransferItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		tr, err = tx.GetTransferForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if tr.Status != StatusDraft {
			return fmt.Errorf("transfer %d is %s: %w", tr.ID, tr.Status, shared.ErrInvalidTransition)
		}
		items, err = tx.ListItemsForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		stock := tx.Ledger()
		anyShipped := false
		for i := range items {
			item := &items[i]
			locs, err := stock.ListProductStockForUpdate(ctx, item.ProductID, item.VariantID, tr.FromBranchID)
			if err != nil {
				return err
			}
			remaining := item.RequestedQuantity
			value := decimal.Zero
			for _, loc := range locs {
				if remaining.Sign() <= 0 {
					break
				}
				if loc.WarehouseID != tr.FromWarehouseID {
					continue
				}
				if item.BatchNumber != "" && loc.BatchNumber != item.BatchNumber {
					continue
				}
				take := decimal.Min(remaining, loc.Available())
				if take.Sign() <= 0 {
					continue
				}
				movement, err := s.ledger.IssueInTx(ctx, stock, ledger.IssueInput{
					StockLocationID: loc.ID,
					Quantity:        take,
					Type:            ledger.MovementTransferOut,
					ReferenceType:   "transfer",
					ReferenceID:     fmt.Sprintf("%d", tr.ID),
					ActorID:         actorID,
				})
				if err != nil {
					return fmt.Errorf("issue product %d from location %d: %w", item.ProductID, loc.ID, err)
				}
				item.ShippedQuantity = item.ShippedQuantity.Add(take)
				value = value.Add(movement.UnitCost.Mul(take))
				remaining = remaining.Sub(take)
			}
			if item.ShippedQuantity.Sign() > 0 {
				anyShipped = true
				item.ShippedUnitCost = value.DivRound(item.ShippedQuantity, 4)
			}
			if err := tx.UpdateItem(ctx, *item); err != nil {
				return err
			}
		}
		if !anyShipped {
			return fmt.Errorf("transfer %d: nothing to ship: %w", tr.ID, shared.ErrInsufficientStock)
		}
		tr.Status = StatusShipped
		tr.ShippedAt = time.Now()
		return tx.UpdateTransfer(ctx, tr)
	})
	if err != nil {
		return Transfer{}, nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "transfer:ship",
			Entity:   "warehouse_transfer",
			EntityID: fmt.Sprintf("%d", tr.ID),
			Meta:     map[string]any{"items": len(items)},
		})
	}
	return tr, items, nil
}

// ReceiveLine overrides the received quantity or shelf for one item.
type ReceiveLine struct {
	ItemID     int64
	Quantity   decimal.Decimal
	LocationID int64
}

// ReceiveInput describes a receipt at the destination.
type ReceiveInput struct {
	TransferID int64
	// Strategy picks destination shelves for lines without an explicit
	// location.
	Strategy allocation.PutAwayStrategy
	ActorID  int64
	Note     string
	// Lines narrows the receipt; empty receives everything outstanding.
	Lines []ReceiveLine
}

// Receive books outstanding quantities onto destination shelves at the
// shipped unit cost. A partial receipt moves the transfer to received and
// stays repeatable; the transfer completes in the transaction that
// receives the last unit.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Transfer, []TransferItem, error) {
	strategy := input.Strategy
	if strategy == "" {
		strategy = allocation.PutAwayFixed
	}

	// Pick destination shelves before taking row locks.
	tr, items, err := s.repo.GetTransfer(ctx, input.TransferID)
	if err != nil {
		return Transfer{}, nil, err
	}
	if tr.Status != StatusShipped && tr.Status != StatusReceived {
		return Transfer{}, nil, fmt.Errorf("transfer %d is %s: %w", tr.ID, tr.Status, shared.ErrInvalidTransition)
	}
	overrides := make(map[int64]ReceiveLine, len(input.Lines))
	for _, line := range input.Lines {
		overrides[line.ItemID] = line
	}
	shelves := make(map[int64]int64, len(items))
	for _, item := range items {
		if item.Outstanding().Sign() <= 0 {
			continue
		}
		if len(overrides) > 0 {
			line, ok := overrides[item.ID]
			if !ok {
				continue
			}
			if line.LocationID != 0 {
				shelves[item.ID] = line.LocationID
				continue
			}
		}
		candidate, err := s.allocator.SuggestPutAwayLocation(ctx, tr.ToWarehouseID, item.ProductID, item.Outstanding(), strategy)
		if err != nil {
			return Transfer{}, nil, fmt.Errorf("suggest shelf for product %d: %w", item.ProductID, err)
		}
		shelves[item.ID] = candidate.LocationID
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		tr, err = tx.GetTransferForUpdate(ctx, input.TransferID)
		if err != nil {
			return err
		}
		if tr.Status != StatusShipped && tr.Status != StatusReceived {
			return fmt.Errorf("transfer %d is %s: %w", tr.ID, tr.Status, shared.ErrInvalidTransition)
		}
		items, err = tx.ListItemsForUpdate(ctx, input.TransferID)
		if err != nil {
			return err
		}
		received := false
		allDone := true
		for i := range items {
			item := &items[i]
			outstanding := item.Outstanding()
			qty := outstanding
			if line, ok := overrides[item.ID]; ok && line.Quantity.Sign() > 0 {
				qty = line.Quantity
			} else if len(overrides) > 0 {
				if _, ok := overrides[item.ID]; !ok {
					qty = decimal.Zero
				}
			}
			if qty.Sign() > 0 {
				if qty.GreaterThan(outstanding) {
					return fmt.Errorf("item %d: receive %s exceeds outstanding %s: %w", item.ID, qty, outstanding, ledger.ErrInvalidQuantity)
				}
				shelf, ok := shelves[item.ID]
				if !ok || shelf == 0 {
					return fmt.Errorf("item %d: %w", item.ID, shared.ErrNoLocationAvailable)
				}
				_, _, err := s.ledger.ReceiveInTx(ctx, tx.Ledger(), ledger.ReceiveInput{
					WarehouseID:         tr.ToWarehouseID,
					BranchID:            tr.ToBranchID,
					WarehouseLocationID: shelf,
					ProductID:           item.ProductID,
					VariantID:           item.VariantID,
					BatchNumber:         item.BatchNumber,
					Quantity:            qty,
					UnitCost:            item.ShippedUnitCost,
					Method:              item.Method,
					Type:                ledger.MovementTransferIn,
					ReferenceType:       "transfer",
					ReferenceID:         fmt.Sprintf("%d", tr.ID),
					Note:                input.Note,
					ActorID:             input.ActorID,
				})
				if err != nil {
					return fmt.Errorf("receive product %d: %w", item.ProductID, err)
				}
				item.ReceivedQuantity = item.ReceivedQuantity.Add(qty)
				if err := tx.UpdateItem(ctx, *item); err != nil {
					return err
				}
				received = true
			}
			if item.Outstanding().Sign() > 0 {
				allDone = false
			}
		}
		if !received {
			return fmt.Errorf("transfer %d: nothing outstanding: %w", tr.ID, shared.ErrAlreadyCompleted)
		}
		if allDone {
			tr.Status = StatusCompleted
			tr.CompletedAt = time.Now()
			return tx.UpdateTransfer(ctx, tr)
		}
		tr.Status = StatusReceived
		return tx.UpdateTransfer(ctx, tr)
	})
	if err != nil {
		return Transfer{}, nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "transfer:receive",
			Entity:   "warehouse_transfer",
			EntityID: fmt.Sprintf("%d", tr.ID),
			Meta:     map[string]any{"status": string(tr.Status)},
		})
	}
	return tr, items, nil
}

// GetTransfer loads a transfer with its items.
func (s *Service) GetTransfer(ctx context.Context, transferID int64) (Transfer, []TransferItem, error) {
	return s.repo.GetTransfer(ctx, transferID)
}
