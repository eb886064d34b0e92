package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubIntegrityRepo struct {
	balances []LocationBalance
	err      error
}

func (s stubIntegrityRepo) ListBalances(ctx context.Context, branchID int64) ([]LocationBalance, error) {
	if s.err != nil {
		return nil, s.err
	}
	if branchID == 0 {
		return s.balances, nil
	}
	out := make([]LocationBalance, 0)
	for _, b := range s.balances {
		if b.BranchID == branchID {
			out = append(out, b)
		}
	}
	return out, nil
}

func balance(locID, productID int64, onHand, ledger string) LocationBalance {
	return LocationBalance{
		StockLocationID: locID,
		BranchID:        1,
		ProductID:       productID,
		OnHand:          decimal.RequireFromString(onHand),
		LedgerQuantity:  decimal.RequireFromString(ledger),
	}
}

func TestValidateCommandJSONSuccess(t *testing.T) {
	repo := stubIntegrityRepo{balances: []LocationBalance{
		balance(1, 100, "25", "25"),
		balance(2, 200, "0", "0"),
	}}
	cli, err := NewStockOpsCLI(repo)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ValidateCommand(context.Background(), StockValidateOptions{
		BranchID:   1,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary StockValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.OK)
	require.Equal(t, 2, summary.Checked)
	require.Empty(t, summary.Drifts)
}

func TestValidateCommandJSONDrifts(t *testing.T) {
	repo := stubIntegrityRepo{balances: []LocationBalance{
		balance(2, 200, "10", "12"),
		balance(1, 100, "25", "25"),
	}}
	cli, err := NewStockOpsCLI(repo)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ValidateCommand(context.Background(), StockValidateOptions{
		BranchID:   1,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 10, exitCode)
	require.Empty(t, stderr.String())

	var summary StockValidateSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.False(t, summary.OK)
	require.Len(t, summary.Drifts, 1)
	require.Equal(t, int64(2), summary.Drifts[0].StockLocationID)
	require.Equal(t, "10", summary.Drifts[0].OnHand)
	require.Equal(t, "12", summary.Drifts[0].LedgerQuantity)
}

func TestValidateCommandRepoFailure(t *testing.T) {
	cli, err := NewStockOpsCLI(stubIntegrityRepo{err: errors.New("connection reset")})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ValidateCommand(context.Background(), StockValidateOptions{
		BranchID: 1,
		Stdout:   stdout,
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "connection reset")
}

func TestValidateCommandNegativeBranch(t *testing.T) {
	cli, err := NewStockOpsCLI(stubIntegrityRepo{})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ValidateCommand(context.Background(), StockValidateOptions{
		BranchID: -1,
		Stdout:   stdout,
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "--branch")
}
