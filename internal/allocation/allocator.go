package allocation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReadRepository fetches candidate rows. Searches are read-only and run
// outside any row lock; callers lock-and-mutate afterwards through the
// ledger.
type ReadRepository interface {
	ListPutAwayCandidates(ctx context.Context, warehouseID, productID int64) ([]Candidate, error)
	ListPickCandidates(ctx context.Context, warehouseID, productID, variantID int64, batch string) ([]PickCandidate, error)
}

// Config carries the zone preferences used by the zone and closest
// strategies.
type Config struct {
	// FastMovingZone is preferred by the zone strategy.
	FastMovingZone string
	// PickingLocationType is preferred by the closest strategy.
	PickingLocationType string
}

// Allocator chooses storage and pick locations by strategy.
type Allocator struct {
	repo ReadRepository
	cfg  Config
	intn func(n int) int
}

// NewAllocator builds Allocator.
func NewAllocator(repo ReadRepository, cfg Config) *Allocator {
	if cfg.PickingLocationType == "" {
		cfg.PickingLocationType = "picking"
	}
	return &Allocator{repo: repo, cfg: cfg, intn: rand.Intn}
}

// WithRand overrides the random source, used by tests.
func (a *Allocator) WithRand(intn func(n int) int) {
	if intn != nil {
		a.intn = intn
	}
}

// SuggestPutAwayLocation returns the best storage location for qty units of
// the product under the given strategy.
func (a *Allocator) SuggestPutAwayLocation(ctx context.Context, warehouseID, productID int64, qty decimal.Decimal, strategy PutAwayStrategy) (Candidate, error) {
	if !strategy.Valid() {
		return Candidate{}, fmt.Errorf("allocation: unknown put-away strategy %q", strategy)
	}
	candidates, err := a.repo.ListPutAwayCandidates(ctx, warehouseID, productID)
	if err != nil {
		return Candidate{}, err
	}
	spare := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.HasSpareFor(qty) {
			spare = append(spare, c)
		}
	}
	if len(spare) == 0 {
		return Candidate{}, ErrNoLocationAvailable
	}
	if strategy == PutAwayRandom {
		return spare[a.intn(len(spare))], nil
	}
	rankPutAway(spare, strategy, a.cfg)
	return spare[0], nil
}

// SelectPickLocations returns allocations covering qty in strategy order and
// the shortfall that could not be covered by available stock.
func (a *Allocator) SelectPickLocations(ctx context.Context, warehouseID, productID, variantID int64, batch string, qty decimal.Decimal, strategy PickStrategy) ([]Allocation, decimal.Decimal, error) {
	if !strategy.Valid() {
		return nil, decimal.Zero, fmt.Errorf("allocation: unknown pick strategy %q", strategy)
	}
	candidates, err := a.repo.ListPickCandidates(ctx, warehouseID, productID, variantID, batch)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if len(candidates) == 0 {
		return nil, qty, ErrNoLocationAvailable
	}
	orderPicks(candidates, strategy)

	remaining := qty
	allocations := make([]Allocation, 0, 2)
	for _, c := range candidates {
		if remaining.Sign() <= 0 {
			break
		}
		if c.Available.Sign() <= 0 {
			continue
		}
		take := decimal.Min(remaining, c.Available)
		allocations = append(allocations, Allocation{
			StockLocationID: c.StockLocationID,
			LocationID:      c.LocationID,
			Quantity:        take,
		})
		remaining = remaining.Sub(take)
	}
	return allocations, remaining, nil
}

// rankPutAway orders candidates best-first for the strategy. The location id
// is always the final tie-break for determinism.
func rankPutAway(candidates []Candidate, strategy PutAwayStrategy, cfg Config) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch strategy {
		case PutAwayFixed:
			if a.HoldsProduct != b.HoldsProduct {
				return a.HoldsProduct
			}
		case PutAwayZone:
			aFast, bFast := a.Zone == cfg.FastMovingZone, b.Zone == cfg.FastMovingZone
			if aFast != bFast {
				return aFast
			}
		case PutAwayClosest:
			aPick, bPick := a.LocationType == cfg.PickingLocationType, b.LocationType == cfg.PickingLocationType
			if aPick != bPick {
				return aPick
			}
		case PutAwayFIFO:
			if beforeNonZero(a.OldestPutAway, b.OldestPutAway) != beforeNonZero(b.OldestPutAway, a.OldestPutAway) {
				return beforeNonZero(a.OldestPutAway, b.OldestPutAway)
			}
		case PutAwayFEFO:
			if beforeNonZero(a.NearestExpiry, b.NearestExpiry) != beforeNonZero(b.NearestExpiry, a.NearestExpiry) {
				return beforeNonZero(a.NearestExpiry, b.NearestExpiry)
			}
		}
		return a.LocationID < b.LocationID
	})
}

// beforeNonZero reports whether a sorts before b treating the zero time as
// "no stock known", which always sorts last.
func beforeNonZero(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}

// orderPicks sorts candidates into consumption order for the strategy, with
// the stock location id as the deterministic tie-break.
func orderPicks(candidates []PickCandidate, strategy PickStrategy) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch strategy {
		case PickLIFO:
			if !a.PutAwayDate.Equal(b.PutAwayDate) {
				return a.PutAwayDate.After(b.PutAwayDate)
			}
		case PickFEFO:
			if !a.ExpiryDate.Equal(b.ExpiryDate) {
				return beforeNonZero(a.ExpiryDate, b.ExpiryDate)
			}
		default: // PickFIFO
			if !a.PutAwayDate.Equal(b.PutAwayDate) {
				return a.PutAwayDate.Before(b.PutAwayDate)
			}
		}
		return a.StockLocationID < b.StockLocationID
	})
}
