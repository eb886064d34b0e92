package cyclecount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/ledger"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetCount(ctx context.Context, countID int64) (CycleCount, []CountItem, error)
}

// Service runs cycle counts. The system baseline is frozen when the count
// is created; variances are booked per item through the ledger so each
// adjustment carries its own movement record.
type Service struct {
	repo   RepositoryPort
	ledger *ledger.Service
	audit  ledger.AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledgerSvc *ledger.Service, audit ledger.AuditPort) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, audit: audit}
}

// CreateCount snapshots every stock location in scope into count items.
// The snapshot runs under row locks so concurrent movements cannot shift
// the baseline mid-create.
func (s *Service) CreateCount(ctx context.Context, input CreateInput) (CycleCount, []CountItem, error) {
	if input.WarehouseID == 0 || input.BranchID == 0 {
		return CycleCount{}, nil, errors.New("cyclecount: warehouse and branch required")
	}
	countDate := input.CountDate
	if countDate.IsZero() {
		countDate = time.Now().Truncate(24 * time.Hour)
	}
	count := CycleCount{
		WarehouseID: input.WarehouseID,
		BranchID:    input.BranchID,
		Zone:        input.Zone,
		Status:      CountCounting,
		CountDate:   countDate,
	}
	var items []CountItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		items = items[:0]
		locs, err := tx.SnapshotLocations(ctx, input.WarehouseID, input.Zone, input.ProductIDs)
		if err != nil {
			return fmt.Errorf("snapshot locations: %w", err)
		}
		if len(locs) == 0 {
			return fmt.Errorf("cyclecount: no stock locations in scope: %w", shared.ErrNotFound)
		}
		countID, err := tx.InsertCount(ctx, count)
		if err != nil {
			return fmt.Errorf("insert count: %w", err)
		}
		count.ID = countID
		for _, loc := range locs {
			item := CountItem{
				CycleCountID:    countID,
				StockLocationID: loc.ID,
				ProductID:       loc.ProductID,
				VariantID:       loc.VariantID,
				BatchNumber:     loc.BatchNumber,
				SystemQuantity:  loc.Quantity,
				Status:          ItemPending,
			}
			itemID, err := tx.InsertItem(ctx, item)
			if err != nil {
				return fmt.Errorf("insert count item: %w", err)
			}
			item.ID = itemID
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return CycleCount{}, nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "cyclecount:create",
			Entity:   "cycle_count",
			EntityID: fmt.Sprintf("%d", count.ID),
			Meta:     map[string]any{"items": len(items), "zone": input.Zone},
		})
	}
	return count, items, nil
}

// RecordInput records what the counter found on one shelf.
type RecordInput struct {
	ItemID          int64
	CountedQuantity decimal.Decimal
	ActorID         int64
}

// RecordCount stores the counted quantity and the variance against the
// frozen baseline. Recounting an uncommitted item overwrites the previous
// count; a booked item fails with ErrAlreadyAdjusted.
func (s *Service) RecordCount(ctx context.Context, input RecordInput) (CountItem, error) {
	if input.CountedQuantity.Sign() < 0 {
		return CountItem{}, ledger.ErrInvalidQuantity
	}
	var item CountItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		if item.Status == ItemAdjusted {
			return shared.ErrAlreadyAdjusted
		}
		item.CountedQuantity = input.CountedQuantity
		item.Variance = input.CountedQuantity.Sub(item.SystemQuantity)
		item.Status = ItemCounted
		item.CountedAt = time.Now()
		return tx.UpdateItem(ctx, item)
	})
	return item, err
}

// AdjustInput books one counted item's variance.
type AdjustInput struct {
	ItemID int64
	// Method seeds the valuation record when the location was never
	// received through the ledger.
	Method  valuation.Method
	ActorID int64
	Note    string
}

// AdjustVariance sets the stock location to the counted quantity through
// the ledger, marking the location counted and appending an adjustment
// movement. A zero variance still marks the shelf counted. Booking twice
// fails with ErrAlreadyAdjusted; the count completes in the same
// transaction as its last adjustment.
func (s *Service) AdjustVariance(ctx context.Context, input AdjustInput) (CountItem, ledger.StockMovement, error) {
	method := input.Method
	if method == "" {
		method = valuation.MethodWeightedAverage
	}
	var item CountItem
	var movement ledger.StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		item, err = tx.GetItemForUpdate(ctx, input.ItemID)
		if err != nil {
			return err
		}
		switch item.Status {
		case ItemCounted:
		case ItemAdjusted:
			return shared.ErrAlreadyAdjusted
		default:
			return fmt.Errorf("item %d not counted yet: %w", item.ID, shared.ErrInvalidTransition)
		}
		count, err := tx.GetCountForUpdate(ctx, item.CycleCountID)
		if err != nil {
			return err
		}

		movement, err = s.ledger.AdjustInTx(ctx, tx.Ledger(), ledger.AdjustInput{
			StockLocationID: item.StockLocationID,
			NewQuantity:     item.CountedQuantity,
			Method:          method,
			MarkCounted:     true,
			ReferenceType:   "cycle_count",
			ReferenceID:     fmt.Sprintf("%d", count.ID),
			Note:            input.Note,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return fmt.Errorf("adjust stock location %d: %w", item.StockLocationID, err)
		}

		item.Status = ItemAdjusted
		item.AdjustedAt = time.Now()
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		open, err := tx.CountOpenItems(ctx, count.ID)
		if err != nil {
			return err
		}
		if open == 0 {
			return tx.UpdateCountStatus(ctx, count.ID, CountCompleted, time.Now())
		}
		return nil
	})
	if err != nil {
		return CountItem{}, ledger.StockMovement{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "cyclecount:adjust",
			Entity:   "cycle_count_item",
			EntityID: fmt.Sprintf("%d", item.ID),
			Meta: map[string]any{
				"variance": item.Variance.String(),
				"counted":  item.CountedQuantity.String(),
			},
		})
	}
	return item, movement, nil
}

// GetCount loads a count with its items.
func (s *Service) GetCount(ctx context.Context, countID int64) (CycleCount, []CountItem, error) {
	return s.repo.GetCount(ctx, countID)
}
