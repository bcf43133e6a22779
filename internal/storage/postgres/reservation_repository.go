package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chefkeenan/Lume/internal/domain"
)

// A reservation is checked out when an order item points at it; the join
// is the source of truth, checked_out_at only feeds the open-line index.
const reservationSelect = `
SELECT r.id, r.resource_kind, r.resource_id, r.owner_id, r.quantity, r.selected, r.is_cancelled,
	r.price_snapshot, r.name_snapshot, r.day_selected, r.created_at, oi.id, oi.order_id
FROM reservations r
LEFT JOIN order_items oi ON oi.reservation_id = r.id`

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res  domain.Reservation
		kind string
		day  *int16
	)
	err := row.Scan(&res.ID, &kind, &res.Resource.ID, &res.OwnerID, &res.Quantity, &res.Selected,
		&res.Cancelled, &res.PriceSnapshot, &res.NameSnapshot, &day, &res.CreatedAt,
		&res.OrderItemID, &res.OrderID)
	if err != nil {
		return domain.Reservation{}, err
	}
	res.Resource.Kind = domain.ResourceKind(kind)
	if day != nil {
		d := int(*day)
		res.DaySelected = &d
	}
	return res, nil
}

func collectReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	defer rows.Close()
	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

type ReservationRepository struct {
	conn
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{conn: conn{pool: pool}}
}

func (r *ReservationRepository) FindOpen(ctx context.Context, ownerID string, ref domain.ResourceRef, includeCheckedOut bool) (*domain.Reservation, error) {
	const query = reservationSelect + `
WHERE r.owner_id = $1 AND r.resource_kind = $2 AND r.resource_id = $3
	AND NOT r.is_cancelled
	AND ($4 OR oi.id IS NULL)
ORDER BY (oi.id IS NULL) DESC, r.created_at ASC
LIMIT 1`
	res, err := scanReservation(r.queryRow(ctx, query, ownerID, string(ref.Kind), ref.ID, includeCheckedOut))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("find open reservation: %w", err)
	}
	return &res, nil
}

func (r *ReservationRepository) Get(ctx context.Context, ownerID, id string) (domain.Reservation, error) {
	return r.get(ctx, ownerID, id, "")
}

func (r *ReservationRepository) GetForUpdate(ctx context.Context, ownerID, id string) (domain.Reservation, error) {
	return r.get(ctx, ownerID, id, "FOR UPDATE OF r")
}

func (r *ReservationRepository) get(ctx context.Context, ownerID, id, lock string) (domain.Reservation, error) {
	query := reservationSelect + `
WHERE r.id = $1 AND r.owner_id = $2
` + lock
	res, err := scanReservation(r.queryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) Create(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, resource_kind, resource_id, owner_id, quantity, selected, is_cancelled,
	price_snapshot, name_snapshot, day_selected, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	var day *int16
	if res.DaySelected != nil {
		d := int16(*res.DaySelected)
		day = &d
	}
	_, err := r.exec(ctx, stmt, res.ID, string(res.Resource.Kind), res.Resource.ID, res.OwnerID,
		res.Quantity, res.Selected, res.Cancelled, res.PriceSnapshot, res.NameSnapshot, day, res.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReservation
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	tag, err := r.exec(ctx, `UPDATE reservations SET quantity = $2 WHERE id = $1`, id, quantity)
	if err != nil {
		return fmt.Errorf("update reservation quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.exec(ctx, `DELETE FROM reservations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) MarkCancelled(ctx context.Context, id string) error {
	tag, err := r.exec(ctx, `UPDATE reservations SET is_cancelled = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) ListActive(ctx context.Context, ownerID string) ([]domain.Reservation, error) {
	const query = reservationSelect + `
WHERE r.owner_id = $1 AND NOT r.is_cancelled AND oi.id IS NULL
ORDER BY r.created_at ASC, r.id ASC`
	rows, err := r.query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	return collectReservations(rows)
}

func (r *ReservationRepository) SetSelected(ctx context.Context, ownerID, id string, selected bool) error {
	tag, err := r.exec(ctx, `UPDATE reservations SET selected = $3 WHERE id = $1 AND owner_id = $2`,
		id, ownerID, selected)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("set selected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

// SetSelectedAll flips every open cart line of the owner and reports how
// many changed.
func (r *ReservationRepository) SetSelectedAll(ctx context.Context, ownerID string, selected bool) (int, error) {
	const stmt = `
UPDATE reservations r
SET selected = $2
WHERE r.owner_id = $1
	AND r.resource_kind = 'product'
	AND NOT r.is_cancelled
	AND r.selected <> $2
	AND NOT EXISTS (SELECT 1 FROM order_items oi WHERE oi.reservation_id = r.id)`
	tag, err := r.exec(ctx, stmt, ownerID, selected)
	if err != nil {
		return 0, fmt.Errorf("set selected for owner: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
