package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LocationBalance pairs a stock location's on-hand quantity with the
// quantity_after of its latest ledger movement.
type LocationBalance struct {
	StockLocationID int64
	BranchID        int64
	ProductID       int64
	OnHand          decimal.Decimal
	LedgerQuantity  decimal.Decimal
}

// IntegrityRepo reads location balances for reconciliation.
type IntegrityRepo interface {
	ListBalances(ctx context.Context, branchID int64) ([]LocationBalance, error)
}

// StockOpsCLI exposes ledger reconciliation helpers for operators.
type StockOpsCLI struct {
	repo IntegrityRepo
}

// NewStockOpsCLI constructs the helper around the provided repository.
func NewStockOpsCLI(repo IntegrityRepo) (*StockOpsCLI, error) {
	if repo == nil {
		return nil, errors.New("stock cli: repository required")
	}
	return &StockOpsCLI{repo: repo}, nil
}

// StockValidateOptions defines available flags for the stock validate command.
type StockValidateOptions struct {
	BranchID   int64
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// StockValidateSummary describes the JSON response for stock validate.
type StockValidateSummary struct {
	OK      bool         `json:"ok"`
	Checked int          `json:"checked"`
	Drifts  []StockDrift `json:"drifts"`
}

// StockDrift reports a location whose on-hand quantity disagrees with the
// ledger.
type StockDrift struct {
	StockLocationID int64  `json:"stock_location_id"`
	BranchID        int64  `json:"branch_id"`
	ProductID       int64  `json:"product_id"`
	OnHand          string `json:"on_hand"`
	LedgerQuantity  string `json:"ledger_quantity"`
}

// ValidateCommand reconciles on-hand quantities against the ledger and prints
// the outcome. Exit code 10 signals detected drifts; 1 signals usage or
// query failures.
func (c *StockOpsCLI) ValidateCommand(ctx context.Context, opts StockValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.BranchID < 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "stock validate: --branch must be zero (all) or positive")
		return 1
	}
	balances, err := c.repo.ListBalances(ctx, opts.BranchID)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "stock validate: %v\n", err)
		return 1
	}
	summary := buildValidateSummary(balances)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "stock validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderValidateHuman(opts.Stdout, opts.BranchID, summary)
	}
	if len(summary.Drifts) > 0 {
		return 10
	}
	return 0
}

func buildValidateSummary(balances []LocationBalance) StockValidateSummary {
	drifts := make([]StockDrift, 0)
	for _, b := range balances {
		if b.OnHand.Equal(b.LedgerQuantity) {
			continue
		}
		drifts = append(drifts, StockDrift{
			StockLocationID: b.StockLocationID,
			BranchID:        b.BranchID,
			ProductID:       b.ProductID,
			OnHand:          b.OnHand.String(),
			LedgerQuantity:  b.LedgerQuantity.String(),
		})
	}
	sort.Slice(drifts, func(i, j int) bool {
		return drifts[i].StockLocationID < drifts[j].StockLocationID
	})
	return StockValidateSummary{
		OK:      len(drifts) == 0,
		Checked: len(balances),
		Drifts:  drifts,
	}
}

func renderValidateHuman(out io.Writer, branchID int64, summary StockValidateSummary) {
	scope := "all branches"
	if branchID > 0 {
		scope = fmt.Sprintf("branch %d", branchID)
	}
	_, _ = fmt.Fprintf(out, "Stock ledger validation for %s (%d locations checked)\n", scope, summary.Checked)
	if summary.OK {
		_, _ = fmt.Fprintln(out, "All on-hand quantities match the ledger.")
		return
	}
	_, _ = fmt.Fprintf(out, "%d drift(s) detected:\n", len(summary.Drifts))
	for _, d := range summary.Drifts {
		_, _ = fmt.Fprintf(out, " - location %d product %d on-hand %s ledger %s\n",
			d.StockLocationID, d.ProductID, d.OnHand, d.LedgerQuantity)
	}
}

// PgIntegrityRepo reads balances from Postgres.
type PgIntegrityRepo struct {
	pool *pgxpool.Pool
}

// NewPgIntegrityRepo constructs the Postgres-backed repository.
func NewPgIntegrityRepo(pool *pgxpool.Pool) *PgIntegrityRepo {
	return &PgIntegrityRepo{pool: pool}
}

// ListBalances implements IntegrityRepo.
func (r *PgIntegrityRepo) ListBalances(ctx context.Context, branchID int64) ([]LocationBalance, error) {
	query := `
		SELECT sl.id, sl.branch_id, sl.product_id, sl.quantity, m.quantity_after
		FROM stock_locations sl
		JOIN LATERAL (
			SELECT quantity_after
			FROM stock_movements
			WHERE stock_location_id = sl.id
			ORDER BY occurred_at DESC, id DESC
			LIMIT 1
		) m ON true`
	args := []any{}
	if branchID > 0 {
		query += ` WHERE sl.branch_id = $1`
		args = append(args, branchID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]LocationBalance, 0)
	for rows.Next() {
		var b LocationBalance
		if err := rows.Scan(&b.StockLocationID, &b.BranchID, &b.ProductID, &b.OnHand, &b.LedgerQuantity); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return balances, nil
}
