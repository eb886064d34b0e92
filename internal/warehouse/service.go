package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error)
	UpdateWarehouse(ctx context.Context, id int64, w Warehouse) error
	ListLocations(ctx context.Context, filters ListFilters) ([]Location, int, error)
	GetLocation(ctx context.Context, id int64) (Location, error)
	CreateLocation(ctx context.Context, loc Location) (Location, error)
	UpdateLocation(ctx context.Context, id int64, loc Location) error
}

// Service manages warehouse and location master data.
type Service struct {
	repo RepositoryPort
}

// NewService constructs Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListWarehouses pages through warehouses.
func (s *Service) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error) {
	return s.repo.ListWarehouses(ctx, filters)
}

// GetWarehouse fetches one warehouse.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, fmt.Errorf("warehouse id: %w", shared.ErrNotFound)
	}
	return s.repo.GetWarehouse(ctx, id)
}

// CreateWarehouse validates and inserts a warehouse. New warehouses start
// active.
func (s *Service) CreateWarehouse(ctx context.Context, w Warehouse) (Warehouse, error) {
	if err := validateWarehouse(w); err != nil {
		return Warehouse{}, err
	}
	w.IsActive = true
	return s.repo.CreateWarehouse(ctx, w)
}

// UpdateWarehouse validates and updates a warehouse.
func (s *Service) UpdateWarehouse(ctx context.Context, id int64, w Warehouse) error {
	if id <= 0 {
		return fmt.Errorf("warehouse id: %w", shared.ErrNotFound)
	}
	if err := validateWarehouse(w); err != nil {
		return err
	}
	return s.repo.UpdateWarehouse(ctx, id, w)
}

// ListLocations pages through one warehouse's slots.
func (s *Service) ListLocations(ctx context.Context, filters ListFilters) ([]Location, int, error) {
	if filters.WarehouseID <= 0 {
		return nil, 0, errors.New("warehouse is required")
	}
	return s.repo.ListLocations(ctx, filters)
}

// GetLocation fetches one slot.
func (s *Service) GetLocation(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("location id: %w", shared.ErrNotFound)
	}
	return s.repo.GetLocation(ctx, id)
}

// CreateLocation validates and inserts a slot under an existing warehouse.
func (s *Service) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	if err := validateLocation(loc); err != nil {
		return Location{}, err
	}
	if _, err := s.repo.GetWarehouse(ctx, loc.WarehouseID); err != nil {
		return Location{}, err
	}
	loc.IsActive = true
	return s.repo.CreateLocation(ctx, loc)
}

// UpdateLocation validates and updates a slot. Deactivation hides the slot
// from the allocator; stock already on it stays pickable by direct reference.
func (s *Service) UpdateLocation(ctx context.Context, id int64, loc Location) error {
	if id <= 0 {
		return fmt.Errorf("location id: %w", shared.ErrNotFound)
	}
	if err := validateLocation(loc); err != nil {
		return err
	}
	return s.repo.UpdateLocation(ctx, id, loc)
}

func validateWarehouse(w Warehouse) error {
	if w.BranchID <= 0 {
		return errors.New("branch is required")
	}
	if strings.TrimSpace(w.Code) == "" {
		return errors.New("warehouse code is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("warehouse name is required")
	}
	return nil
}

func validateLocation(loc Location) error {
	if loc.WarehouseID <= 0 {
		return errors.New("warehouse is required")
	}
	if strings.TrimSpace(loc.LocationCode) == "" {
		return errors.New("location code is required")
	}
	if loc.MaxCapacity.Sign() < 0 {
		return errors.New("max capacity cannot be negative")
	}
	return nil
}
