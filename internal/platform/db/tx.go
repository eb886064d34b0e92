package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waltergkaturuza/RetailCloud-sub000/internal/shared"
)

// txAttempts bounds how often a serialization failure is retried before
// the caller sees shared.ErrConcurrencyConflict.
const txAttempts = 3

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// RunTx executes fn like WithTx but retries serialization and deadlock
// failures from the top of the transaction, up to txAttempts times. The
// callback must tolerate running again: each failed attempt rolls back
// before the next begins. Exhausting the attempts surfaces
// shared.ErrConcurrencyConflict.
func RunTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return withRetry(func() error {
		return WithTx(ctx, pool, fn)
	})
}

func withRetry(op func() error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = op()
		if err == nil || !IsSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("platform/db: tx failed after %d attempts (%v): %w", txAttempts, err, shared.ErrConcurrencyConflict)
}

// IsSerializationFailure reports whether err is a serialization or deadlock
// failure that is safe to retry from the top of the transaction.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
