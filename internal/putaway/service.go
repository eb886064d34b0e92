package putaway

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
	GetPutAway(ctx context.Context, id int64) (PutAway, []PutAwayItem, error)
}

// AllocatorPort suggests a destination shelf per received lot.
type AllocatorPort interface {
	SuggestPutAwayLocation(ctx context.Context, warehouseID, productID int64, qty decimal.Decimal, strategy allocation.PutAwayStrategy) (allocation.Candidate, error)
}

// Service drives put-aways from dock to shelf. Creation only records the
// suggestions; stock enters the ledger when each item completes, so no
// reservation is held while goods sit on the dock.
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

// CreatePutAway suggests a destination for every received lot and records
// the batch as pending. A lot that fits nowhere fails the whole request
// with ErrNoLocationAvailable.
func (s *Service) CreatePutAway(ctx context.Context, input CreateInput) (PutAway, []PutAwayItem, error) {
	if input.WarehouseID == 0 || input.BranchID == 0 {
		return PutAway{}, nil, errors.New("putaway: warehouse and branch required")
	}
	if len(input.Lines) == 0 {
		return PutAway{}, nil, errors.New("putaway: at least one line required")
	}
	strategy := input.Strategy
	if strategy == "" {
		strategy = allocation.PutAwayFixed
	}
	if !strategy.Valid() {
		return PutAway{}, nil, fmt.Errorf("putaway: unknown strategy %q", strategy)
	}

	suggestions := make([]allocation.Candidate, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity.Sign() <= 0 {
			return PutAway{}, nil, ledger.ErrInvalidQuantity
		}
		if line.UnitCost.Sign() < 0 {
			return PutAway{}, nil, valuation.ErrInvalidUnitCost
		}
		candidate, err := s.allocator.SuggestPutAwayLocation(ctx, input.WarehouseID, line.ProductID, line.Quantity, strategy)
		if err != nil {
			return PutAway{}, nil, fmt.Errorf("suggest location for product %d: %w", line.ProductID, err)
		}
		suggestions = append(suggestions, candidate)
	}

	pa := PutAway{
		WarehouseID:   input.WarehouseID,
		BranchID:      input.BranchID,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Strategy:      strategy,
		Status:        ListPending,
	}
	var items []PutAwayItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items = items[:0]
		id, err := tx.InsertPutAway(ctx, pa)
		if err != nil {
			return fmt.Errorf("insert put-away: %w", err)
		}
		pa.ID = id
		for i, line := range input.Lines {
			method := line.Method
			if method == "" {
				method = valuation.MethodWeightedAverage
			}
			item := PutAwayItem{
				PutAwayID:           id,
				ProductID:           line.ProductID,
				VariantID:           line.VariantID,
				BatchNumber:         line.BatchNumber,
				ExpiryDate:          line.ExpiryDate,
				Quantity:            line.Quantity,
				UnitCost:            line.UnitCost,
				Method:              method,
				SuggestedLocationID: suggestions[i].LocationID,
				Status:              ItemPending,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return fmt.Errorf("insert put-away item: %w", err)
			}
			item.ID = itemID
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return PutAway{}, nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "putaway:create",
			Entity:   "put_away",
			EntityID: fmt.Sprintf("%d", pa.ID),
			Meta:     map[string]any{"items": len(items), "strategy": string(strategy)},
		})
	}
	return pa, items, nil
}

// StartItem moves a pending item to putting and the batch out of pending.
func (s *Service) StartItem(ctx context.Context, itemID int64) (PutAwayItem, error) {
	var item PutAwayItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		switch item.Status {
		case ItemPending:
		case ItemPutting:
			return nil
		default:
			return shared.ErrInvalidTransition
		}
		item.Status = ItemPutting
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		pa, err := tx.GetPutAwayForUpdate(ctx, item.PutAwayID)
		if err != nil {
			return err
		}
		if pa.Status == ListPending {
			return tx.UpdateStatus(ctx, pa.ID, ListPutting, time.Time{})
		}
		return nil
	})
	return item, err
}

// CompleteInput finishes one put-away item.
type CompleteInput struct {
	ItemID int64
	// ActualLocationID overrides the suggestion; zero keeps it.
	ActualLocationID int64
	ActorID          int64
	Note             string
}

// CompleteItem books the item's quantity into the ledger at the actual
// shelf in one transaction. Repeating a completed item at the same shelf
// is a no-op; a different shelf fails with ErrConflictingState.
func (s *Service) CompleteItem(ctx context.Context, input CompleteInput) (PutAwayItem, ledger.StockMovement, error) {
	var item PutAwayItem
	var movement ledger.StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		target := input.ActualLocationID
		if target == 0 {
			target = item.SuggestedLocationID
		}
		if item.Status == ItemCompleted {
			if item.ActualLocationID == target || input.ActualLocationID == 0 {
				return nil
			}
			return fmt.Errorf("item %d already placed at location %d: %w", item.ID, item.ActualLocationID, shared.ErrConflictingState)
		}
		pa, err := tx.GetPutAwayForUpdate(ctx, item.PutAwayID)
		if err != nil {
			return err
		}

		_, movement, err = s.ledger.ReceiveInTx(ctx, tx.Ledger(), ledger.ReceiveInput{
			WarehouseID:         pa.WarehouseID,
			BranchID:            pa.BranchID,
			WarehouseLocationID: target,
			ProductID:           item.ProductID,
			VariantID:           item.VariantID,
			BatchNumber:         item.BatchNumber,
			ExpiryDate:          item.ExpiryDate,
			Quantity:            item.Quantity,
			UnitCost:            item.UnitCost,
			Method:              item.Method,
			Type:                ledger.MovementIn,
			ReferenceType:       "put_away",
			ReferenceID:         pa.ReferenceID,
			Note:                input.Note,
			ActorID:             input.ActorID,
		})
		if err != nil {
			return fmt.Errorf("receive put-away item %d: %w", item.ID, err)
		}

		item.ActualLocationID = target
		item.Status = ItemCompleted
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		open, err := tx.CountOpenItems(ctx, pa.ID)
		if err != nil {
			return err
		}
		if open == 0 {
			return tx.UpdateStatus(ctx, pa.ID, ListCompleted, time.Now())
		}
		if pa.Status == ListPending {
			return tx.UpdateStatus(ctx, pa.ID, ListPutting, time.Time{})
		}
		return nil
	})
	if err != nil {
		return PutAwayItem{}, ledger.StockMovement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "putaway:complete_item",
			Entity:   "put_away_item",
			EntityID: fmt.Sprintf("%d", item.ID),
			Meta: map[string]any{
				"location": item.ActualLocationID,
				"quantity": item.Quantity.String(),
			},
		})
	}
	return item, movement, nil
}

// GetPutAway loads a put-away with its items.
func (s *Service) GetPutAway(ctx context.Context, id int64) (PutAway, []PutAwayItem, error) {
	return s.repo.GetPutAway(ctx, id)
}
