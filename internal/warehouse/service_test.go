package warehouse

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

type memoryRepo struct {
	warehouses map[int64]Warehouse
	locations  map[int64]Location
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		warehouses: make(map[int64]Warehouse),
		locations:  make(map[int64]Location),
	}
}

func (m *memoryRepo) ListWarehouses(_ context.Context, filters ListFilters) ([]Warehouse, int, error) {
	var out []Warehouse
	for _, w := range m.warehouses {
		if filters.BranchID > 0 && w.BranchID != filters.BranchID {
			continue
		}
		if filters.IsActive != nil && w.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, w)
	}
	return out, len(out), nil
}

func (m *memoryRepo) GetWarehouse(_ context.Context, id int64) (Warehouse, error) {
	w, ok := m.warehouses[id]
	if !ok {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, nil
}

func (m *memoryRepo) CreateWarehouse(_ context.Context, w Warehouse) (Warehouse, error) {
	m.nextID++
	w.ID = m.nextID
	m.warehouses[w.ID] = w
	return w, nil
}

func (m *memoryRepo) UpdateWarehouse(_ context.Context, id int64, w Warehouse) error {
	if _, ok := m.warehouses[id]; !ok {
		return shared.ErrNotFound
	}
	w.ID = id
	m.warehouses[id] = w
	return nil
}

func (m *memoryRepo) ListLocations(_ context.Context, filters ListFilters) ([]Location, int, error) {
	var out []Location
	for _, loc := range m.locations {
		if loc.WarehouseID != filters.WarehouseID {
			continue
		}
		if filters.Zone != "" && loc.Zone != filters.Zone {
			continue
		}
		out = append(out, loc)
	}
	return out, len(out), nil
}

func (m *memoryRepo) GetLocation(_ context.Context, id int64) (Location, error) {
	loc, ok := m.locations[id]
	if !ok {
		return Location{}, shared.ErrNotFound
	}
	return loc, nil
}

func (m *memoryRepo) CreateLocation(_ context.Context, loc Location) (Location, error) {
	m.nextID++
	loc.ID = m.nextID
	m.locations[loc.ID] = loc
	return loc, nil
}

func (m *memoryRepo) UpdateLocation(_ context.Context, id int64, loc Location) error {
	if _, ok := m.locations[id]; !ok {
		return shared.ErrNotFound
	}
	loc.ID = id
	m.locations[id] = loc
	return nil
}

func TestCreateWarehouseValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.CreateWarehouse(context.Background(), Warehouse{Code: "WH1", Name: "Main"})
	require.Error(t, err)

	_, err = svc.CreateWarehouse(context.Background(), Warehouse{BranchID: 1, Name: "Main"})
	require.Error(t, err)

	created, err := svc.CreateWarehouse(context.Background(), Warehouse{BranchID: 1, Code: "WH1", Name: "Main"})
	require.NoError(t, err)
	require.True(t, created.IsActive)
	require.NotZero(t, created.ID)
}

func TestCreateLocationRequiresWarehouse(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.CreateLocation(context.Background(), Location{WarehouseID: 99, LocationCode: "A-01"})
	require.ErrorIs(t, err, shared.ErrNotFound)

	wh, err := svc.CreateWarehouse(context.Background(), Warehouse{BranchID: 1, Code: "WH1", Name: "Main"})
	require.NoError(t, err)

	loc, err := svc.CreateLocation(context.Background(), Location{
		WarehouseID:  wh.ID,
		LocationCode: "A-01",
		Zone:         "FAST",
		MaxCapacity:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.True(t, loc.IsActive)
}

func TestCreateLocationRejectsNegativeCapacity(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.CreateLocation(context.Background(), Location{
		WarehouseID:  1,
		LocationCode: "A-01",
		MaxCapacity:  decimal.NewFromInt(-1),
	})
	require.Error(t, err)
}

func TestDeactivateLocationKeepsRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	wh, err := svc.CreateWarehouse(context.Background(), Warehouse{BranchID: 1, Code: "WH1", Name: "Main"})
	require.NoError(t, err)
	loc, err := svc.CreateLocation(context.Background(), Location{WarehouseID: wh.ID, LocationCode: "A-01"})
	require.NoError(t, err)

	loc.IsActive = false
	require.NoError(t, svc.UpdateLocation(context.Background(), loc.ID, loc))

	got, err := svc.GetLocation(context.Background(), loc.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestListLocationsFiltersByZone(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	wh, err := svc.CreateWarehouse(context.Background(), Warehouse{BranchID: 1, Code: "WH1", Name: "Main"})
	require.NoError(t, err)
	_, err = svc.CreateLocation(context.Background(), Location{WarehouseID: wh.ID, LocationCode: "A-01", Zone: "FAST"})
	require.NoError(t, err)
	_, err = svc.CreateLocation(context.Background(), Location{WarehouseID: wh.ID, LocationCode: "B-01", Zone: "BULK"})
	require.NoError(t, err)

	locations, total, err := svc.ListLocations(context.Background(), ListFilters{WarehouseID: wh.ID, Zone: "FAST"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "A-01", locations[0].LocationCode)
}
