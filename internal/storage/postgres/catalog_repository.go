package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chefkeenan/Lume/internal/domain"
)

const productColumns = `p.id, p.name, p.stock, p.price, p.in_stock, p.valid_from, p.valid_until, p.created_at`

const sessionColumns = `s.id, s.title, s.category, s.instructor, s.room, s.days, s.time_slot,
	s.capacity_max, s.capacity_current, s.price, s.available, s.starts_at,
	s.valid_from, s.valid_until, s.created_at`

func scanProduct(row pgx.Row, extra ...any) (domain.Product, error) {
	var p domain.Product
	dest := []any{&p.ID, &p.Name, &p.Stock, &p.Price, &p.InStock,
		&p.Validity.From, &p.Validity.Until, &p.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var (
		s        domain.Session
		category string
		days     []int16
	)
	err := row.Scan(&s.ID, &s.Title, &category, &s.Instructor, &s.Room, &days, &s.TimeSlot,
		&s.CapacityMax, &s.CapacityCurrent, &s.Price, &s.Available, &s.StartsAt,
		&s.Validity.From, &s.Validity.Until, &s.CreatedAt)
	if err != nil {
		return domain.Session{}, err
	}
	s.Category = domain.SessionCategory(category)
	s.Days = make([]int, len(days))
	for i, d := range days {
		s.Days[i] = int(d)
	}
	return s, nil
}

type CatalogRepository struct {
	conn
}

func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{conn: conn{pool: pool}}
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p domain.Product) error {
	const stmt = `
INSERT INTO products (id, name, stock, price, in_stock, valid_from, valid_until, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.exec(ctx, stmt, p.ID, p.Name, p.Stock, p.Price, p.InStock,
		p.Validity.From, p.Validity.Until, p.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// ListProducts includes the quantity sold so far, for display.
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const query = `
SELECT ` + productColumns + `,
	COALESCE((SELECT SUM(oi.quantity) FROM order_items oi
		WHERE oi.resource_kind = 'product' AND oi.resource_id = p.id), 0)
FROM products p
ORDER BY p.created_at ASC, p.id ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var sold int64
		p, err := scanProduct(rows, &sold)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		p.Sold = int(sold)
		products = append(products, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate products: %w", rows.Err())
	}
	return products, nil
}

func (r *CatalogRepository) CreateSession(ctx context.Context, s domain.Session) error {
	const stmt = `
INSERT INTO class_sessions (id, title, category, instructor, room, days, time_slot,
	capacity_max, capacity_current, price, available, starts_at, valid_from, valid_until, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	days := make([]int16, len(s.Days))
	for i, d := range s.Days {
		days[i] = int16(d)
	}
	_, err := r.exec(ctx, stmt, s.ID, s.Title, string(s.Category), s.Instructor, s.Room, days, s.TimeSlot,
		s.CapacityMax, s.CapacityCurrent, s.Price, s.Available, s.StartsAt,
		s.Validity.From, s.Validity.Until, s.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *CatalogRepository) ListSessions(ctx context.Context) ([]domain.Session, error) {
	const query = `
SELECT ` + sessionColumns + `
FROM class_sessions s
ORDER BY s.starts_at ASC NULLS LAST, s.created_at ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate sessions: %w", rows.Err())
	}
	return sessions, nil
}
