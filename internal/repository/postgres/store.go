// Package postgres implements repository.Store on PostgreSQL using pgx.
// Rows read inside Atomic are locked with SELECT ... FOR UPDATE.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"casino-bot/internal/repository"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// querier is satisfied by pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements repository.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store on an open pool. The pool is owned by the caller.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Atomic runs fn in a read-committed transaction with row locks.
func (s *Store) Atomic(ctx context.Context, fn func(tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx, lock: true})
	})
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx repository.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

// Close is a no-op; the pool is closed by its owner.
func (s *Store) Close() {}

type pgTx struct {
	q    querier
	lock bool
}

func (t *pgTx) Players() repository.Players           { return &players{t} }
func (t *pgTx) Sessions() repository.Sessions         { return &sessions{t} }
func (t *pgTx) Codes() repository.Codes               { return &codes{t} }
func (t *pgTx) Transactions() repository.Transactions { return &transactions{t} }

// forUpdate returns the locking clause for selects in this transaction.
func (t *pgTx) forUpdate() string {
	if t.lock {
		return " FOR UPDATE"
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func wrap(op string, err error) error {
	return fmt.Errorf("failed to %s: %w", op, err)
}
