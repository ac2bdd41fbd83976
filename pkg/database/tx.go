package database

import (
	"context"
	"fmt"
)

// TxRunner runs a function inside a single database transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RunInTx begins a transaction on the context's scope (acquiring one if the context has
// none) and passes fn a context whose scope routes queries through it. The transaction
// commits when fn returns nil and rolls back otherwise. Nested calls join the outer
// transaction.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	scope, ok := GetScope(ctx)
	if !ok {
		acquired, err := db.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire connection: %w", err)
		}
		defer acquired.Close()
		scope = acquired
	}
	if scope.InTx() {
		return fn(ctx)
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(SetScope(ctx, &Scope{Conn: scope.Conn, tx: tx})); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
