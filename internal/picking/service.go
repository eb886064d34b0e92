package picking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/allocation"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPickList(ctx context.Context, listID int64) (PickList, []PickListItem, error)
}

// AllocatorPort selects which stock locations feed each requested line.
type AllocatorPort interface {
	SelectPickLocations(ctx context.Context, warehouseID, productID, variantID int64, batch string, qty decimal.Decimal, strategy allocation.PickStrategy) ([]allocation.Allocation, decimal.Decimal, error)
}

// Service drives pick lists from creation through completion. Creating a
// list reserves stock on the chosen locations; completing an item issues
// the picked quantity and releases the item's reservation atomically.
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

// CreatePickList allocates stock locations for every requested line and
// reserves the allocated quantities. The location search runs outside the
// transaction; only the reservations and inserts hold row locks. If any
// line cannot be fully covered the whole request fails with
// ErrInsufficientStock and nothing is reserved.
func (s *Service) CreatePickList(ctx context.Context, input CreateInput) (PickList, []PickListItem, error) {
	if input.WarehouseID == 0 || input.BranchID == 0 {
		return PickList{}, nil, errors.New("picking: warehouse and branch required")
	}
	if len(input.Lines) == 0 {
		return PickList{}, nil, errors.New("picking: at least one line required")
	}
	strategy := input.Strategy
	if strategy == "" {
		strategy = allocation.PickFIFO
	}
	movementType := input.MovementType
	if movementType == "" {
		movementType = ledger.MovementSale
	}
	if !movementType.Outbound() {
		return PickList{}, nil, ledger.ErrInvalidMovementType
	}

	type plannedItem struct {
		line  LineInput
		alloc allocation.Allocation
	}
	var planned []plannedItem
	for _, line := range input.Lines {
		if line.Quantity.Sign() <= 0 {
			return PickList{}, nil, ledger.ErrInvalidQuantity
		}
		allocs, shortfall, err := s.allocator.SelectPickLocations(ctx, input.WarehouseID, line.ProductID, line.VariantID, line.BatchNumber, line.Quantity, strategy)
		if err != nil {
			return PickList{}, nil, fmt.Errorf("allocate product %d: %w", line.ProductID, err)
		}
		if shortfall.Sign() > 0 {
			return PickList{}, nil, fmt.Errorf("product %d short by %s: %w", line.ProductID, shortfall, shared.ErrInsufficientStock)
		}
		for _, a := range allocs {
			planned = append(planned, plannedItem{line: line, alloc: a})
		}
	}

	list := PickList{
		WarehouseID:   input.WarehouseID,
		BranchID:      input.BranchID,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Strategy:      strategy,
		MovementType:  movementType,
		Status:        ListPicking,
	}
	var items []PickListItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items = items[:0]
		listID, err := tx.InsertPickList(ctx, list)
		if err != nil {
			return fmt.Errorf("insert pick list: %w", err)
		}
		list.ID = listID
		for _, p := range planned {
			// Re-checks availability under lock; stock may have moved
			// since the read-only search.
			if _, err := s.ledger.ReserveInTx(ctx, tx.Ledger(), p.alloc.StockLocationID, p.alloc.Quantity); err != nil {
				return fmt.Errorf("reserve stock location %d: %w", p.alloc.StockLocationID, err)
			}
			item := PickListItem{
				PickListID:       listID,
				ProductID:        p.line.ProductID,
				VariantID:        p.line.VariantID,
				StockLocationID:  p.alloc.StockLocationID,
				BatchNumber:      p.line.BatchNumber,
				QuantityRequired: p.alloc.Quantity,
				QuantityPicked:   decimal.Zero,
				Status:           ItemPending,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return fmt.Errorf("insert pick item: %w", err)
			}
			item.ID = itemID
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return PickList{}, nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "picking:create",
			Entity:   "pick_list",
			EntityID: fmt.Sprintf("%d", list.ID),
			Meta: map[string]any{
				"items":    len(items),
				"strategy": string(strategy),
			},
		})
	}
	return list, items, nil
}

// StartItem moves a pending item to picking so other pickers skip it.
func (s *Service) StartItem(ctx context.Context, itemID int64) (PickListItem, error) {
	var item PickListItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		switch item.Status {
		case ItemPending:
		case ItemPicking:
			return nil
		default:
			return shared.ErrInvalidTransition
		}
		item.Status = ItemPicking
		return tx.UpdateItem(ctx, item)
	})
	return item, err
}

// CompleteInput finishes one pick item.
type CompleteInput struct {
	ItemID         int64
	QuantityPicked decimal.Decimal
	ActorID        int64
	Note           string
}

// CompleteItem records the picked quantity, issues it from the stock
// location and releases the item's reservation in one transaction. Picking
// less than required marks the item short and still releases the full
// reservation; short quantities are never requeued automatically. Calling
// again with the same quantity is a no-op; a different quantity fails with
// ErrConflictingState.
func (s *Service) CompleteItem(ctx context.Context, input CompleteInput) (PickListItem, ledger.StockMovement, error) {
	if input.QuantityPicked.Sign() < 0 {
		return PickListItem{}, ledger.StockMovement{}, ledger.ErrInvalidQuantity
	}
	var item PickListItem
	var movement ledger.StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if !item.Status.Open() {
			if item.QuantityPicked.Equal(input.QuantityPicked) {
				return nil
			}
			return fmt.Errorf("item %d already completed with %s: %w", item.ID, item.QuantityPicked, shared.ErrConflictingState)
		}
		if input.QuantityPicked.GreaterThan(item.QuantityRequired) {
			return fmt.Errorf("picked %s exceeds required %s: %w", input.QuantityPicked, item.QuantityRequired, ledger.ErrInvalidQuantity)
		}
		list, err := tx.GetListForUpdate(ctx, item.PickListID)
		if err != nil {
			return err
		}

		movement, err = s.ledger.IssueInTx(ctx, tx.Ledger(), ledger.IssueInput{
			StockLocationID: item.StockLocationID,
			Quantity:        input.QuantityPicked,
			ReleaseReserved: item.QuantityRequired,
			Type:            list.MovementType,
			ReferenceType:   "pick_list",
			ReferenceID:     list.ReferenceID,
			Note:            input.Note,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return fmt.Errorf("issue pick item %d: %w", item.ID, err)
		}

		item.QuantityPicked = input.QuantityPicked
		if input.QuantityPicked.Equal(item.QuantityRequired) {
			item.Status = ItemPicked
		} else {
			item.Status = ItemShort
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		open, err := tx.CountOpenItems(ctx, list.ID)
		if err != nil {
			return err
		}
		if open == 0 {
			return tx.UpdateListStatus(ctx, list.ID, ListCompleted, time.Now())
		}
		return nil
	})
	if err != nil {
		return PickListItem{}, ledger.StockMovement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "picking:complete_item",
			Entity:   "pick_list_item",
			EntityID: fmt.Sprintf("%d", item.ID),
			Meta: map[string]any{
				"picked":   item.QuantityPicked.String(),
				"required": item.QuantityRequired.String(),
			},
		})
	}
	return item, movement, nil
}

// GetPickList loads a pick list with its items.
func (s *Service) GetPickList(ctx context.Context, listID int64) (PickList, []PickListItem, error) {
	return s.repo.GetPickList(ctx, listID)
}
