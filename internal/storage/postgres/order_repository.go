package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chefkeenan/Lume/internal/domain"
)

const orderSelect = `
SELECT o.id, o.owner_id, o.kind, o.address, o.notes, o.subtotal, o.shipping_fee, o.total, o.created_at
FROM orders o`

// orderReader loads orders with their items. Checkout and history share it.
type orderReader struct {
	conn
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o       domain.Order
		kind    string
		address []byte
	)
	err := row.Scan(&o.ID, &o.OwnerID, &kind, &address, &o.Notes,
		&o.Subtotal, &o.ShippingFee, &o.Total, &o.CreatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Kind = domain.OrderKind(kind)
	if len(address) > 0 {
		var a domain.Address
		if err := json.Unmarshal(address, &a); err != nil {
			return domain.Order{}, fmt.Errorf("decode address: %w", err)
		}
		o.Address = &a
	}
	return o, nil
}

func (r orderReader) getOrder(ctx context.Context, ownerID, id string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, orderSelect+`
WHERE o.id = $1 AND o.owner_id = $2`, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		if isInvalidUUID(err) {
			return domain.Order{}, domain.ErrInvalidID
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}

	orders := []domain.Order{o}
	if err := r.attachItems(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// attachItems fills Items for every order with a single query.
func (r orderReader) attachItems(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	const query = `
SELECT id, order_id, reservation_id, resource_kind, resource_id, name_snapshot, unit_price, quantity, scheduled_at
FROM order_items
WHERE order_id::text = ANY($1::text[])
ORDER BY order_id, name_snapshot, id`
	rows, err := r.query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it   domain.OrderItem
			kind string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ReservationID, &kind, &it.Resource.ID,
			&it.NameSnapshot, &it.UnitPrice, &it.Quantity, &it.ScheduledAt); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		it.Resource.Kind = domain.ResourceKind(kind)
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	if rows.Err() != nil {
		return fmt.Errorf("iterate order items: %w", rows.Err())
	}
	return nil
}

// CheckoutRepository writes orders and settles the reservations they consume.
type CheckoutRepository struct {
	orderReader
}

func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{orderReader: orderReader{conn: conn{pool: pool}}}
}

func (r *CheckoutRepository) ListSelected(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	const query = reservationSelect + `
WHERE r.owner_id = $1 AND r.selected AND NOT r.is_cancelled AND r.resource_kind = 'product'
ORDER BY r.created_at ASC, r.id ASC`
	rows, err := r.query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list selected reservations: %w", err)
	}
	return collectReservations(rows)
}

// LockReservations locks the owner's rows in id order. Rows that do not
// exist or belong to someone else are simply absent from the result.
func (r *CheckoutRepository) LockReservations(ctx context.Context, ownerID string, ids []string) ([]domain.Reservation, error) {
	const query = reservationSelect + `
WHERE r.owner_id = $1 AND r.id::text = ANY($2::text[])
ORDER BY r.id ASC
FOR UPDATE OF r`
	rows, err := r.query(ctx, query, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("lock reservations: %w", err)
	}
	return collectReservations(rows)
}

func (r *CheckoutRepository) GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error) {
	return r.getOrder(ctx, ownerID, id)
}

func (r *CheckoutRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	var address any
	if order.Address != nil {
		b, err := json.Marshal(order.Address)
		if err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
		address = string(b)
	}

	const orderStmt = `
INSERT INTO orders (id, owner_id, kind, address, notes, subtotal, shipping_fee, total, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)`
	if _, err := r.exec(ctx, orderStmt, order.ID, order.OwnerID, string(order.Kind), address, order.Notes,
		order.Subtotal, order.ShippingFee, order.Total, order.CreatedAt); err != nil {
		return fmt.Errorf("create order: %w", err)
	}

	const itemStmt = `
INSERT INTO order_items (id, order_id, reservation_id, resource_kind, resource_id, name_snapshot, unit_price, quantity, scheduled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, it := range order.Items {
		_, err := r.exec(ctx, itemStmt, it.ID, order.ID, it.ReservationID, string(it.Resource.Kind),
			it.Resource.ID, it.NameSnapshot, it.UnitPrice, it.Quantity, it.ScheduledAt)
		if err != nil {
			if isUniqueViolation(err) && constraintName(err) == "order_items_reservation_unique" {
				return domain.ErrAlreadyCheckedOut
			}
			if isInvalidUUID(err) {
				return domain.ErrInvalidID
			}
			return fmt.Errorf("create order item: %w", err)
		}
	}
	return nil
}

func (r *CheckoutRepository) MarkCheckedOut(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.exec(ctx, `UPDATE reservations SET checked_out_at = $2 WHERE id::text = ANY($1::text[])`, ids, at)
	if err != nil {
		return fmt.Errorf("mark checked out: %w", err)
	}
	return nil
}

// DeleteReservations removes settled cart lines. Order items keep their
// snapshots and lose only the back reference.
func (r *CheckoutRepository) DeleteReservations(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.exec(ctx, `DELETE FROM reservations WHERE resource_kind = 'product' AND id::text = ANY($1::text[])`, ids)
	if err != nil {
		return fmt.Errorf("delete reservations: %w", err)
	}
	return nil
}

// HistoryRepository is the read side of the order ledger.
type HistoryRepository struct {
	orderReader
}

func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{orderReader: orderReader{conn: conn{pool: pool}}}
}

func (r *HistoryRepository) ListOrders(ctx context.Context, ownerID string) ([]domain.Order, error) {
	rows, err := r.query(ctx, orderSelect+`
WHERE o.owner_id = $1
ORDER BY o.created_at DESC, o.id ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate orders: %w", rows.Err())
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *HistoryRepository) GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error) {
	return r.getOrder(ctx, ownerID, id)
}

// ListBookings flattens the owner's booking orders into one entry per item.
func (r *HistoryRepository) ListBookings(ctx context.Context, ownerID string) ([]domain.BookingEntry, error) {
	const query = `
SELECT o.id, oi.id, oi.resource_id, oi.name_snapshot, COALESCE(s.instructor, ''),
	oi.scheduled_at, oi.unit_price, oi.quantity, o.created_at, COALESCE(r.is_cancelled, FALSE)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
LEFT JOIN class_sessions s ON s.id = oi.resource_id
LEFT JOIN reservations r ON r.id = oi.reservation_id
WHERE o.owner_id = $1 AND o.kind = 'booking'
ORDER BY oi.scheduled_at ASC NULLS LAST, o.created_at DESC, oi.id ASC`
	rows, err := r.query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var entries []domain.BookingEntry
	for rows.Next() {
		var e domain.BookingEntry
		if err := rows.Scan(&e.OrderID, &e.ItemID, &e.SessionID, &e.Title, &e.Instructor,
			&e.ScheduledAt, &e.UnitPrice, &e.Quantity, &e.OrderedAt, &e.Cancelled); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		entries = append(entries, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate bookings: %w", rows.Err())
	}
	return entries, nil
}
