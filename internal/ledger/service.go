package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
	"github.com/waltergkaturuza/RetailCloud-sub000/internal/valuation"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	SumAvailable(ctx context.Context, productID, variantID, branchID int64) (decimal.Decimal, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NegativePolicy resolves whether a product explicitly allows negative
// availability. The catalog owning products lives outside this engine.
type NegativePolicy interface {
	AllowsNegative(ctx context.Context, productID int64) (bool, error)
}

// Service is the authoritative stock ledger. Every quantity change passes
// through it; cost effects are forwarded to the valuation engine and a
// movement record is appended in the same transaction.
type Service struct {
	repo        RepositoryPort
	engine      *valuation.Engine
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	negatives   NegativePolicy
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, engine *valuation.Engine, audit AuditPort, idem *shared.IdempotencyStore, negatives NegativePolicy, cfg ServiceConfig) *Service {
	return &Service{repo: repo, engine: engine, audit: audit, idempotency: idem, negatives: negatives, allowNeg: cfg.AllowNegativeStock}
}

func (s *Service) allowsNegative(ctx context.Context, productID int64) bool {
	if s.negatives != nil {
		if ok, err := s.negatives.AllowsNegative(ctx, productID); err == nil {
			return ok
		}
	}
	return s.allowNeg
}

// MovementInput describes a quantity change not mediated by a workflow.
type MovementInput struct {
	ProductID       int64
	VariantID       int64
	BranchID        int64
	WarehouseID     int64
	StockLocationID int64
	Type            MovementType
	// Quantity is positive for inbound/outbound types and a signed delta
	// for adjustments.
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	Method        valuation.Method
	ReferenceType string
	ReferenceID   string
	Note          string
	ActorID       int64
}

// ReceiveInput describes an inbound placement at one warehouse location.
type ReceiveInput struct {
	WarehouseID         int64
	BranchID            int64
	WarehouseLocationID int64
	ProductID           int64
	VariantID           int64
	BatchNumber         string
	ExpiryDate          time.Time
	Quantity            decimal.Decimal
	UnitCost            decimal.Decimal
	Method              valuation.Method
	Type                MovementType
	ReferenceType       string
	ReferenceID         string
	Note                string
	ActorID             int64
}

// IssueInput describes an outbound withdrawal from one stock location.
type IssueInput struct {
	StockLocationID int64
	Quantity        decimal.Decimal
	// ReleaseReserved is subtracted from the location's reservation before
	// the quantity check, e.g. when completing a pick that reserved stock.
	ReleaseReserved decimal.Decimal
	Type            MovementType
	ReferenceType   string
	ReferenceID     string
	Note            string
	ActorID         int64
}

// AdjustInput sets a stock location to an absolute quantity.
type AdjustInput struct {
	StockLocationID int64
	NewQuantity     decimal.Decimal
	Method          valuation.Method
	MarkCounted     bool
	ReferenceType   string
	ReferenceID     string
	Note            string
	ActorID         int64
}

// RecordMovement is the single entry point for any quantity change not
// mediated by a workflow (e.g. a POS sale decrement). Outbound movements
// without an explicit stock location drain locations oldest put-away first,
// appending one movement per location touched.
func (s *Service) RecordMovement(ctx context.Context, input MovementInput) ([]StockMovement, error) {
	if input.ProductID == 0 || input.BranchID == 0 {
		return nil, errors.New("ledger: product and branch required")
	}
	if input.Type != MovementAdjustment && input.Quantity.Sign() <= 0 {
		return nil, ErrInvalidQuantity
	}
	if !input.Type.Inbound() && !input.Type.Outbound() && input.Type != MovementAdjustment {
		return nil, ErrInvalidMovementType
	}
	if input.ReferenceID != "" {
		if _, err := uuid.Parse(input.ReferenceID); err != nil {
			return nil, fmt.Errorf("ledger: invalid reference id: %w", err)
		}
	}

	insertedKey := false
	key := fmt.Sprintf("%s:%s:%s:%d:%d", input.Type, input.ReferenceType, input.ReferenceID, input.ProductID, input.BranchID)
	if s.idempotency != nil && input.ReferenceID != "" {
		if err := s.idempotency.CheckAndInsert(ctx, key, "ledger"); err != nil {
			return nil, err
		}
		insertedKey = true
	}

	var movements []StockMovement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		switch {
		case input.Type == MovementAdjustment:
			movements, err = s.recordAdjustment(ctx, tx, input)
		case input.Type.Inbound():
			movements, err = s.recordInbound(ctx, tx, input)
		default:
			movements, err = s.recordOutbound(ctx, tx, input)
		}
		return err
	})
	if err != nil {
		if insertedKey {
			_ = s.idempotency.Delete(ctx, key)
		}
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   fmt.Sprintf("ledger:%s", input.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%s:%d", input.Type, input.ProductID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"branch_id":  input.BranchID,
				"qty":        input.Quantity.String(),
				"reference":  input.ReferenceType,
			},
		})
	}
	return movements, nil
}

func (s *Service) recordInbound(ctx context.Context, tx TxRepository, input MovementInput) ([]StockMovement, error) {
	locationID := input.StockLocationID
	if locationID == 0 {
		// fall back to the oldest existing location for the product
		locs, err := tx.ListProductStockForUpdate(ctx, input.ProductID, input.VariantID, input.BranchID)
		if err != nil {
			return nil, err
		}
		if len(locs) == 0 {
			return nil, ErrStockLocationNotFound
		}
		locationID = locs[0].ID
	}
	loc, err := tx.GetStockLocationForUpdate(ctx, locationID)
	if err != nil {
		return nil, err
	}
	method := input.Method
	if method == "" {
		method = valuation.MethodWeightedAverage
	}
	unitCost := input.UnitCost
	if unitCost.Sign() == 0 {
		if v, err := tx.Valuation().GetForUpdate(ctx, loc.ValuationKey()); err == nil {
			unitCost = v.CurrentCost
		}
	}
	_, movement, err := s.applyReceipt(ctx, tx, &loc, receipt{
		qty:      input.Quantity,
		unitCost: unitCost,
		method:   method,
		mtype:    input.Type,
		refType:  input.ReferenceType,
		refID:    input.ReferenceID,
		note:     input.Note,
		actorID:  input.ActorID,
	})
	if err != nil {
		return nil, err
	}
	return []StockMovement{movement}, nil
}

func (s *Service) recordOutbound(ctx context.Context, tx TxRepository, input MovementInput) ([]StockMovement, error) {
	allowNeg := s.allowsNegative(ctx, input.ProductID)

	if input.StockLocationID != 0 {
		movement, err := s.IssueInTx(ctx, tx, IssueInput{
			StockLocationID: input.StockLocationID,
			Quantity:        input.Quantity,
			Type:            input.Type,
			ReferenceType:   input.ReferenceType,
			ReferenceID:     input.ReferenceID,
			Note:            input.Note,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return nil, err
		}
		return []StockMovement{movement}, nil
	}

	locs, err := tx.ListProductStockForUpdate(ctx, input.ProductID, input.VariantID, input.BranchID)
	if err != nil {
		return nil, err
	}
	available := decimal.Zero
	for _, loc := range locs {
		available = available.Add(loc.Available())
	}
	if input.Quantity.GreaterThan(available) && !allowNeg {
		return nil, ErrInsufficientStock
	}

	remaining := input.Quantity
	var movements []StockMovement
	for _, loc := range locs {
		if remaining.Sign() <= 0 {
			break
		}
		take := decimal.Min(remaining, loc.Available())
		if take.Sign() <= 0 {
			continue
		}
		movement, err := s.IssueInTx(ctx, tx, IssueInput{
			StockLocationID: loc.ID,
			Quantity:        take,
			Type:            input.Type,
			ReferenceType:   input.ReferenceType,
			ReferenceID:     input.ReferenceID,
			Note:            input.Note,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
		remaining = remaining.Sub(take)
	}
	if remaining.Sign() > 0 {
		if !allowNeg {
			return nil, ErrInsufficientStock
		}
		if len(locs) == 0 {
			return nil, ErrStockLocationNotFound
		}
		// negative availability allowed: push the last location below zero
		movement, err := s.IssueInTx(ctx, tx, IssueInput{
			StockLocationID: locs[len(locs)-1].ID,
			Quantity:        remaining,
			Type:            input.Type,
			ReferenceType:   input.ReferenceType,
			ReferenceID:     input.ReferenceID,
			Note:            input.Note,
			ActorID:         input.ActorID,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, movement)
	}
	return movements, nil
}

func (s *Service) recordAdjustment(ctx context.Context, tx TxRepository, input MovementInput) ([]StockMovement, error) {
	if input.StockLocationID == 0 {
		return nil, errors.New("ledger: adjustment requires a stock location")
	}
	if input.Quantity.Sign() == 0 {
		return nil, ErrInvalidQuantity
	}
	loc, err := tx.GetStockLocationForUpdate(ctx, input.StockLocationID)
	if err != nil {
		return nil, err
	}
	movement, err := s.AdjustInTx(ctx, tx, AdjustInput{
		StockLocationID: input.StockLocationID,
		NewQuantity:     loc.Quantity.Add(input.Quantity),
		Method:          input.Method,
		ReferenceType:   input.ReferenceType,
		ReferenceID:     input.ReferenceID,
		Note:            input.Note,
		ActorID:         input.ActorID,
	})
	if err != nil {
		return nil, err
	}
	return []StockMovement{movement}, nil
}

type receipt struct {
	qty      decimal.Decimal
	unitCost decimal.Decimal
	method   valuation.Method
	mtype    MovementType
	refType  string
	refID    string
	note     string
	actorID  int64
}

func (s *Service) applyReceipt(ctx context.Context, tx TxRepository, loc *StockLocation, rc receipt) (StockLocation, StockMovement, error) {
	now := time.Now().UTC()
	before := loc.Quantity
	loc.Quantity = loc.Quantity.Add(rc.qty)
	if loc.PutAwayDate.IsZero() {
		loc.PutAwayDate = now
	}
	if err := tx.UpdateStockLocation(ctx, *loc); err != nil {
		return StockLocation{}, StockMovement{}, err
	}
	if _, err := s.engine.Receive(ctx, tx.Valuation(), loc.ValuationKey(), rc.method, rc.qty, rc.unitCost, now); err != nil {
		return StockLocation{}, StockMovement{}, err
	}
	movement := StockMovement{
		ProductID:       loc.ProductID,
		VariantID:       loc.VariantID,
		BranchID:        loc.BranchID,
		WarehouseID:     loc.WarehouseID,
		StockLocationID: loc.ID,
		Type:            rc.mtype,
		Quantity:        rc.qty,
		QuantityBefore:  before,
		QuantityAfter:   loc.Quantity,
		UnitCost:        rc.unitCost,
		ReferenceType:   rc.refType,
		ReferenceID:     rc.refID,
		Note:            rc.note,
		ActorID:         rc.actorID,
		OccurredAt:      now,
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockLocation{}, StockMovement{}, err
	}
	movement.ID = id
	return *loc, movement, nil
}

// ReceiveInTx places stock at a warehouse location inside the caller's
// transaction, creating the stock location row on first put-away.
func (s *Service) ReceiveInTx(ctx context.Context, tx TxRepository, input ReceiveInput) (StockLocation, StockMovement, error) {
	if input.Quantity.Sign() <= 0 {
		return StockLocation{}, StockMovement{}, ErrInvalidQuantity
	}
	if !input.Type.Inbound() {
		return StockLocation{}, StockMovement{}, ErrInvalidMovementType
	}
	if input.UnitCost.Sign() < 0 {
		return StockLocation{}, StockMovement{}, valuation.ErrInvalidUnitCost
	}
	method := input.Method
	if method == "" {
		method = valuation.MethodWeightedAverage
	}

	loc, err := tx.FindStockLocationForUpdate(ctx, input.WarehouseLocationID, input.ProductID, input.VariantID, input.BatchNumber)
	if err != nil {
		if !errors.Is(err, ErrStockLocationNotFound) {
			return StockLocation{}, StockMovement{}, err
		}
		loc = StockLocation{
			WarehouseID:         input.WarehouseID,
			BranchID:            input.BranchID,
			WarehouseLocationID: input.WarehouseLocationID,
			ProductID:           input.ProductID,
			VariantID:           input.VariantID,
			BatchNumber:         input.BatchNumber,
			ExpiryDate:          input.ExpiryDate,
			Quantity:            decimal.Zero,
			ReservedQuantity:    decimal.Zero,
			PutAwayDate:         time.Now().UTC(),
		}
		id, err := tx.InsertStockLocation(ctx, loc)
		if err != nil {
			return StockLocation{}, StockMovement{}, err
		}
		loc.ID = id
	}
	return s.applyReceipt(ctx, tx, &loc, receipt{
		qty:      input.Quantity,
		unitCost: input.UnitCost,
		method:   method,
		mtype:    input.Type,
		refType:  input.ReferenceType,
		refID:    input.ReferenceID,
		note:     input.Note,
		actorID:  input.ActorID,
	})
}

// IssueInTx withdraws stock from one location inside the caller's
// transaction, releasing any reservation the caller holds first.
func (s *Service) IssueInTx(ctx context.Context, tx TxRepository, input IssueInput) (StockMovement, error) {
	if input.Quantity.Sign() <= 0 && input.ReleaseReserved.Sign() <= 0 {
		return StockMovement{}, ErrInvalidQuantity
	}
	if input.Quantity.Sign() > 0 && !input.Type.Outbound() {
		return StockMovement{}, ErrInvalidMovementType
	}
	loc, err := tx.GetStockLocationForUpdate(ctx, input.StockLocationID)
	if err != nil {
		return StockMovement{}, err
	}
	allowNeg := s.allowsNegative(ctx, loc.ProductID)

	if input.ReleaseReserved.Sign() > 0 {
		loc.ReservedQuantity = decimal.Max(decimal.Zero, loc.ReservedQuantity.Sub(input.ReleaseReserved))
	}

	now := time.Now().UTC()
	if input.Quantity.Sign() <= 0 {
		// reservation release only, no quantity change and no movement
		if err := tx.UpdateStockLocation(ctx, loc); err != nil {
			return StockMovement{}, err
		}
		return StockMovement{}, nil
	}

	before := loc.Quantity
	after := loc.Quantity.Sub(input.Quantity)
	if after.Sign() < 0 && !allowNeg {
		return StockMovement{}, ErrInsufficientStock
	}
	if loc.ReservedQuantity.GreaterThan(after) && !allowNeg {
		return StockMovement{}, ErrReservationExceedsStock
	}
	loc.Quantity = after
	loc.LastPickedAt = now
	if err := tx.UpdateStockLocation(ctx, loc); err != nil {
		return StockMovement{}, err
	}

	result, _, err := s.engine.Consume(ctx, tx.Valuation(), loc.ValuationKey(), input.Quantity)
	if err != nil {
		return StockMovement{}, err
	}

	movement := StockMovement{
		ProductID:       loc.ProductID,
		VariantID:       loc.VariantID,
		BranchID:        loc.BranchID,
		WarehouseID:     loc.WarehouseID,
		StockLocationID: loc.ID,
		Type:            input.Type,
		Quantity:        input.Quantity,
		QuantityBefore:  before,
		QuantityAfter:   after,
		UnitCost:        result.UnitCost,
		ReferenceType:   input.ReferenceType,
		ReferenceID:     input.ReferenceID,
		Note:            input.Note,
		ActorID:         input.ActorID,
		OccurredAt:      now,
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockMovement{}, err
	}
	movement.ID = id
	return movement, nil
}

// ReserveInTx adds a reservation on a stock location. The reservation can
// never exceed on-hand quantity unless the product allows negative
// availability.
func (s *Service) ReserveInTx(ctx context.Context, tx TxRepository, stockLocationID int64, qty decimal.Decimal) (StockLocation, error) {
	if qty.Sign() <= 0 {
		return StockLocation{}, ErrInvalidQuantity
	}
	loc, err := tx.GetStockLocationForUpdate(ctx, stockLocationID)
	if err != nil {
		return StockLocation{}, err
	}
	if qty.GreaterThan(loc.Available()) && !s.allowsNegative(ctx, loc.ProductID) {
		return StockLocation{}, ErrInsufficientStock
	}
	loc.ReservedQuantity = loc.ReservedQuantity.Add(qty)
	if err := tx.UpdateStockLocation(ctx, loc); err != nil {
		return StockLocation{}, err
	}
	return loc, nil
}

// ReleaseInTx removes a reservation, flooring at zero.
func (s *Service) ReleaseInTx(ctx context.Context, tx TxRepository, stockLocationID int64, qty decimal.Decimal) error {
	if qty.Sign() <= 0 {
		return ErrInvalidQuantity
	}
	loc, err := tx.GetStockLocationForUpdate(ctx, stockLocationID)
	if err != nil {
		return err
	}
	loc.ReservedQuantity = decimal.Max(decimal.Zero, loc.ReservedQuantity.Sub(qty))
	return tx.UpdateStockLocation(ctx, loc)
}

// AdjustInTx sets a stock location to an absolute quantity, booking the
// difference as an adjustment movement with the matching valuation effect.
func (s *Service) AdjustInTx(ctx context.Context, tx TxRepository, input AdjustInput) (StockMovement, error) {
	if input.NewQuantity.Sign() < 0 {
		return StockMovement{}, ErrInvalidQuantity
	}
	loc, err := tx.GetStockLocationForUpdate(ctx, input.StockLocationID)
	if err != nil {
		return StockMovement{}, err
	}
	now := time.Now().UTC()
	delta := input.NewQuantity.Sub(loc.Quantity)
	if delta.Sign() == 0 {
		if input.MarkCounted {
			loc.LastCountedAt = now
			if err := tx.UpdateStockLocation(ctx, loc); err != nil {
				return StockMovement{}, err
			}
		}
		return StockMovement{}, nil
	}

	method := input.Method
	if method == "" {
		method = valuation.MethodWeightedAverage
	}

	before := loc.Quantity
	loc.Quantity = input.NewQuantity
	if input.MarkCounted {
		loc.LastCountedAt = now
	}
	if err := tx.UpdateStockLocation(ctx, loc); err != nil {
		return StockMovement{}, err
	}

	var unitCost decimal.Decimal
	if delta.Sign() > 0 {
		cost := decimal.Zero
		if v, err := tx.Valuation().GetForUpdate(ctx, loc.ValuationKey()); err == nil {
			cost = v.CurrentCost
		} else if !errors.Is(err, valuation.ErrValuationNotFound) {
			return StockMovement{}, err
		}
		if _, err := s.engine.Receive(ctx, tx.Valuation(), loc.ValuationKey(), method, delta, cost, now); err != nil {
			return StockMovement{}, err
		}
		unitCost = cost
	} else {
		result, _, err := s.engine.Consume(ctx, tx.Valuation(), loc.ValuationKey(), delta.Neg())
		if err != nil {
			return StockMovement{}, err
		}
		unitCost = result.UnitCost
	}

	movement := StockMovement{
		ProductID:       loc.ProductID,
		VariantID:       loc.VariantID,
		BranchID:        loc.BranchID,
		WarehouseID:     loc.WarehouseID,
		StockLocationID: loc.ID,
		Type:            MovementAdjustment,
		Quantity:        delta.Abs(),
		QuantityBefore:  before,
		QuantityAfter:   loc.Quantity,
		UnitCost:        unitCost,
		ReferenceType:   input.ReferenceType,
		ReferenceID:     input.ReferenceID,
		Note:            input.Note,
		ActorID:         input.ActorID,
		OccurredAt:      now,
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return StockMovement{}, err
	}
	movement.ID = id
	return movement, nil
}

// GetAvailableQuantity returns quantity minus reservations aggregated across
// all locations of a product within a branch.
func (s *Service) GetAvailableQuantity(ctx context.Context, productID, variantID, branchID int64) (decimal.Decimal, error) {
	if productID == 0 || branchID == 0 {
		return decimal.Zero, errors.New("ledger: product and branch required")
	}
	return s.repo.SumAvailable(ctx, productID, variantID, branchID)
}

// GetMovements lists movement history for a product.
func (s *Service) GetMovements(ctx context.Context, filter MovementFilter) ([]StockMovement, error) {
	if filter.ProductID == 0 || filter.BranchID == 0 {
		return nil, errors.New("ledger: product and branch required")
	}
	return s.repo.ListMovements(ctx, filter)
}
