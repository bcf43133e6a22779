// Package migrations owns the Lume schema. Files are embedded and applied
// in name order; each one commits together with its schema_migrations row.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed *.sql
var migrationFiles embed.FS

// lockID serialises concurrent appliers, e.g. several replicas starting at once.
const lockID int64 = 5817200101

type migration struct {
	name string
	sql  string
}

// Apply brings the database up to the embedded schema.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	return ApplyFS(ctx, pool, migrationFiles)
}

// ApplyFS applies every *.sql file at the root of fsys that is not yet
// recorded. A failing file rolls back completely and stops the run.
func ApplyFS(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	pending, err := load(fsys)
	if err != nil {
		return err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID)
	}()

	if _, err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	name TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for _, m := range pending {
		if err := applyOne(ctx, conn.Conn(), m); err != nil {
			return err
		}
	}
	return nil
}

func load(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		sql := strings.TrimSpace(string(b))
		if sql == "" {
			continue
		}
		out = append(out, migration{name: path.Base(name), sql: sql})
	}
	return out, nil
}

// applyOne runs m and records it in one transaction, skipping it when an
// earlier run already recorded it.
func applyOne(ctx context.Context, conn *pgx.Conn, m migration) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", m.name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var applied bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, m.name).Scan(&applied); err != nil {
		return fmt.Errorf("check migration %s: %w", m.name, err)
	}
	if applied {
		return nil
	}

	if _, err := tx.Exec(ctx, m.sql); err != nil {
		return fmt.Errorf("exec migration %s: %w", m.name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, m.name); err != nil {
		return fmt.Errorf("record migration %s: %w", m.name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.name, err)
	}
	return nil
}
