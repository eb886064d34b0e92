package warehouse

import (
	"time"

	"github.com/shopspring/decimal"
)

// Warehouse is a physical site stock lives in. A warehouse belongs to one
// branch; ledger rows reference both.
type Warehouse struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is one addressable slot inside a warehouse. The allocator only
// considers active locations; zero MaxCapacity means unlimited.
type Location struct {
	ID           int64           `json:"id"`
	WarehouseID  int64           `json:"warehouse_id"`
	LocationCode string          `json:"location_code"`
	Zone         string          `json:"zone"`
	LocationType string          `json:"location_type"`
	MaxCapacity  decimal.Decimal `json:"max_capacity"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ListFilters narrows warehouse and location listings.
type ListFilters struct {
	Page        int
	Limit       int
	Search      string
	BranchID    int64
	WarehouseID int64
	Zone        string
	IsActive    *bool
}
