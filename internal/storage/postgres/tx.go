package postgres

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type txKey struct{}

// txState is the transaction carried in a context plus the actions queued
// to run after it commits.
type txState struct {
	tx pgx.Tx

	mu    sync.Mutex
	hooks []func(ctx context.Context)
}

func (s *txState) queue(fn func(ctx context.Context)) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

func (s *txState) drain() []func(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.hooks
	s.hooks = nil
	return hooks
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey{}, state)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	// Hooks see the caller's context, not the finished transaction.
	for _, hook := range state.drain() {
		hook(ctx)
	}
	return nil
}

func txFromContext(ctx context.Context) pgx.Tx {
	state, _ := ctx.Value(txKey{}).(*txState)
	if state == nil {
		return nil
	}
	return state.tx
}

// afterCommit queues fn on the transaction in ctx. Outside a transaction fn
// runs immediately since there is nothing left to commit.
func afterCommit(ctx context.Context, fn func(ctx context.Context)) {
	state, _ := ctx.Value(txKey{}).(*txState)
	if state == nil {
		fn(ctx)
		return
	}
	state.queue(fn)
}

// TxManager opens transactions shared by every repository through the context.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, m.pool, fn)
}

func (m *TxManager) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	afterCommit(ctx, fn)
}

// conn routes statements through the transaction in ctx when there is one.
type conn struct {
	pool *pgxpool.Pool
}

func (c conn) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return c.pool.Exec(ctx, sql, args...)
}

func (c conn) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return c.pool.QueryRow(ctx, sql, args...)
}

func (c conn) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return c.pool.Query(ctx, sql, args...)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

// constraintName returns the violated constraint, if err carries one.
func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
