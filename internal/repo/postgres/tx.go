package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxRunner executes fn inside a single transaction. Services depend on this
// type instead of a pool so their transaction boundary can be satisfied by
// anything that provides one.
type TxRunner func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error

// PoolRunner adapts a pgx pool into a TxRunner backed by WithTx.
func PoolRunner(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return WithTx(ctx, pool, fn)
	}
}

// WithTx runs fn inside a single transaction. Every wallet mutation goes
// through here so that balance check, debit, unlock write and ledger append
// are all-or-nothing. Row-level FOR UPDATE locks on the wallet row serialize
// concurrent calls for the same user.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
