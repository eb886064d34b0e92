package jobs

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// stockedBranches lists branches that currently hold stock. Batch jobs scoped
// to branch zero fan out across this set.
func stockedBranches(ctx context.Context, pool *pgxpool.Pool) ([]int64, error) {
	if pool == nil {
		return nil, errors.New("jobs: pool not configured")
	}
	rows, err := pool.Query(ctx, `SELECT DISTINCT branch_id FROM stock_locations WHERE quantity > 0 ORDER BY branch_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		branches = append(branches, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return branches, nil
}
