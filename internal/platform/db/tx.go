package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
// The transaction commits only when fn returns nil, so callers never observe a half-applied change.
func WithTx(ctx context.Context, pool TxBeginner, fn func(pgx.Tx) error) error {
	if pool == nil {
		return fmt.Errorf("platform/db: pool not initialised")
	}
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

type txContextKey struct{}

// Runner runs fn inside a database transaction carried by the context.
type Runner interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

// Transactor implements Runner on top of a pool. Nested calls join the outer transaction.
type Transactor struct {
	pool TxBeginner
}

// NewTransactor constructs a Transactor.
func NewTransactor(pool TxBeginner) *Transactor {
	return &Transactor{pool: pool}
}

// InTx implements Runner.
func (t *Transactor) InTx(ctx context.Context, fn func(context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return WithTx(ctx, t.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// Conn returns the transaction stored in ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback DBTX) DBTX {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

// NoTx runs fn directly. In-memory repositories use it in tests.
type NoTx struct{}

// InTx implements Runner.
func (NoTx) InTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
