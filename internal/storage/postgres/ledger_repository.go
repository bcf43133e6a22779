package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chefkeenan/Lume/internal/domain"
)

// LedgerRepository backs the capacity ledger. Resource rows are the lock
// objects; claims are always recounted from reservations and order items.
type LedgerRepository struct {
	conn
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{conn: conn{pool: pool}}
}

func (r *LedgerRepository) LockResource(ctx context.Context, ref domain.ResourceRef) (domain.Resource, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return nil, domain.ErrNoTransaction
	}

	var (
		res domain.Resource
		err error
	)
	switch ref.Kind {
	case domain.KindProduct:
		var p domain.Product
		p, err = scanProduct(tx.QueryRow(ctx, `
SELECT `+productColumns+`
FROM products p
WHERE p.id = $1
FOR UPDATE`, ref.ID))
		res = &p
	case domain.KindSession:
		var s domain.Session
		s, err = scanSession(tx.QueryRow(ctx, `
SELECT `+sessionColumns+`
FROM class_sessions s
WHERE s.id = $1
FOR UPDATE`, ref.ID))
		res = &s
	default:
		return nil, domain.ErrInvalidKind
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrResourceNotFound
		}
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("lock %s: %w", ref.Kind, err)
	}
	return res, nil
}

func (r *LedgerRepository) CountClaims(ctx context.Context, ref domain.ResourceRef, exclude []string) (domain.Claims, error) {
	if exclude == nil {
		exclude = []string{}
	}

	var confirmed, pending int64
	switch ref.Kind {
	case domain.KindProduct:
		// Cart lines never hold stock; only sales count.
		const query = `
SELECT COALESCE(SUM(quantity), 0)
FROM order_items
WHERE resource_kind = 'product' AND resource_id = $1`
		if err := r.queryRow(ctx, query, ref.ID).Scan(&confirmed); err != nil {
			return domain.Claims{}, r.countErr(err)
		}
	case domain.KindSession:
		const query = `
SELECT
	COALESCE(SUM(r.quantity) FILTER (WHERE oi.id IS NOT NULL), 0),
	COALESCE(SUM(r.quantity) FILTER (WHERE oi.id IS NULL AND NOT (r.id::text = ANY($2::text[]))), 0)
FROM reservations r
LEFT JOIN order_items oi ON oi.reservation_id = r.id
WHERE r.resource_kind = 'session' AND r.resource_id = $1 AND NOT r.is_cancelled`
		if err := r.queryRow(ctx, query, ref.ID, exclude).Scan(&confirmed, &pending); err != nil {
			return domain.Claims{}, r.countErr(err)
		}
	default:
		return domain.Claims{}, domain.ErrInvalidKind
	}
	return domain.Claims{Confirmed: int(confirmed), Pending: int(pending)}, nil
}

func (r *LedgerRepository) countErr(err error) error {
	if isInvalidUUID(err) {
		return domain.ErrInvalidID
	}
	return fmt.Errorf("count claims: %w", err)
}

func (r *LedgerRepository) SaveCapacity(ctx context.Context, res domain.Resource) error {
	var (
		tag pgconn.CommandTag
		err error
	)
	switch v := res.(type) {
	case *domain.Product:
		tag, err = r.exec(ctx, `UPDATE products SET stock = $2, in_stock = $3 WHERE id = $1`,
			v.ID, v.Stock, v.InStock)
	case *domain.Session:
		tag, err = r.exec(ctx, `UPDATE class_sessions SET capacity_current = $2, available = $3 WHERE id = $1`,
			v.ID, v.CapacityCurrent, v.Available)
	default:
		return domain.ErrInvalidKind
	}
	if err != nil {
		return fmt.Errorf("save capacity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrResourceNotFound
	}
	return nil
}
