package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/domain"
	"github.com/chefkeenan/Lume/internal/outbox"
	"github.com/chefkeenan/Lume/internal/tracing"
)

type CheckoutRepository interface {
	// ListSelected returns the owner's selected, non-cancelled cart
	// reservations, checked out or not.
	ListSelected(ctx context.Context, ownerID string) ([]domain.Reservation, error)
	// LockReservations re-reads the given reservations with a row lock.
	LockReservations(ctx context.Context, ownerID string, ids []string) ([]domain.Reservation, error)
	GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error)
	// CreateOrder writes the order and its items. A reservation that is
	// already linked to an item fails with ErrAlreadyCheckedOut.
	CreateOrder(ctx context.Context, order domain.Order) error
	MarkCheckedOut(ctx context.Context, ids []string, at time.Time) error
	DeleteReservations(ctx context.Context, ids []string) error
}

// EventWriter appends to the outbox inside the caller's transaction.
type EventWriter interface {
	Enqueue(ctx context.Context, event outbox.Event) error
}

type noopEvents struct{}

func (noopEvents) Enqueue(context.Context, outbox.Event) error { return nil }

// FinalizeOutcome tells the caller whether a new order was written.
type FinalizeOutcome string

const (
	FinalizeCommitted         FinalizeOutcome = "committed"
	FinalizeAlreadyCheckedOut FinalizeOutcome = "already_checked_out"
)

type FinalizeInput struct {
	OwnerID string
	// ReservationID finalizes one reservation directly. Empty means the
	// owner's current selection.
	ReservationID string
	Address       *domain.Address
	Notes         string
}

type FinalizeResult struct {
	Order   domain.Order
	Outcome FinalizeOutcome
}

// CheckoutService converts reservations into immutable orders. A finalize
// either commits the order, its items, the capacity write-back and the
// reservation links together, or writes nothing.
type CheckoutService struct {
	tx       TxRunner
	ledger   *CapacityLedger
	reserves ReservationRepository
	repo     CheckoutRepository
	clock    clock.Clock
	log      *slog.Logger
	events   EventWriter
	counters DisplayCounter
	shipping decimal.Decimal
}

type CheckoutServiceOption func(*CheckoutService)

func WithCheckoutLogger(log *slog.Logger) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithShippingFee overrides the flat fee charged on product orders.
func WithShippingFee(fee decimal.Decimal) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if !fee.IsNegative() {
			s.shipping = fee
		}
	}
}

// WithEventWriter records an order.committed event in the same transaction.
func WithEventWriter(w EventWriter) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if w != nil {
			s.events = w
		}
	}
}

func WithCheckoutCounters(c DisplayCounter) CheckoutServiceOption {
	return func(s *CheckoutService) {
		if c != nil {
			s.counters = c
		}
	}
}

func NewCheckoutService(tx TxRunner, ledger *CapacityLedger, reserves ReservationRepository, repo CheckoutRepository, clk clock.Clock, opts ...CheckoutServiceOption) *CheckoutService {
	svc := &CheckoutService{
		tx:       tx,
		ledger:   ledger,
		reserves: reserves,
		repo:     repo,
		clock:    clk,
		log:      discardLogger(),
		events:   noopEvents{},
		counters: noopCounter{},
		shipping: DefaultShippingFee,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Finalize checks out a single reservation or the owner's selection.
func (s *CheckoutService) Finalize(ctx context.Context, in FinalizeInput) (result FinalizeResult, err error) {
	if in.OwnerID == "" {
		return FinalizeResult{}, domain.ErrOwnerRequired
	}

	ctx, span := tracer.Start(ctx, "checkout.finalize",
		trace.WithAttributes(attribute.Bool("checkout.direct", in.ReservationID != "")))
	defer func() { finishSpan(span, err) }()

	now := s.clock.Now()
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		targets, existing, err := s.gather(txCtx, in)
		if err != nil {
			return err
		}
		if existing != nil {
			result = FinalizeResult{Order: *existing, Outcome: FinalizeAlreadyCheckedOut}
			return nil
		}

		kind := domain.OrderKindFor(targets[0].Resource.Kind)
		var address *domain.Address
		shipping := decimal.Zero
		if kind == domain.OrderKindProduct {
			a, err := normalizeAddress(in.Address)
			if err != nil {
				return err
			}
			address = &a
			shipping = s.shipping
		}

		refs := make([]domain.ResourceRef, 0, len(targets))
		ids := make([]string, 0, len(targets))
		for _, r := range targets {
			refs = append(refs, r.Resource)
			ids = append(ids, r.ID)
		}
		// Pending holds of other owners must not block seats this owner
		// already holds, so only confirmed claims count here.
		locked, err := s.ledger.LockAll(txCtx, refs, LockOptions{ConfirmedOnly: true})
		if err != nil {
			return err
		}

		rows, err := s.repo.LockReservations(txCtx, in.OwnerID, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return domain.ErrReservationNotFound
		}
		for _, r := range rows {
			// A concurrent finalize won between our read and our lock.
			if r.CheckedOut() {
				order, err := s.repo.GetOrder(txCtx, in.OwnerID, *r.OrderID)
				if err != nil {
					return err
				}
				result = FinalizeResult{Order: order, Outcome: FinalizeAlreadyCheckedOut}
				return nil
			}
			if r.Cancelled {
				return domain.ErrReservationNotFound
			}
		}

		order := domain.Order{
			ID:        newUUID(),
			OwnerID:   in.OwnerID,
			Kind:      kind,
			Address:   address,
			Notes:     in.Notes,
			CreatedAt: now,
		}
		for _, r := range rows {
			res := locked[r.Resource]
			if err := res.Bookable(now); err != nil {
				return fmt.Errorf("%s %s: %w", r.Resource.Kind, r.Resource.ID, err)
			}
			if err := res.Decrement(r.Quantity); err != nil {
				return err
			}
			reservationID := r.ID
			order.Items = append(order.Items, domain.OrderItem{
				ID:            newUUID(),
				OrderID:       order.ID,
				ReservationID: &reservationID,
				Resource:      r.Resource,
				NameSnapshot:  r.NameSnapshot,
				UnitPrice:     r.PriceSnapshot,
				Quantity:      r.Quantity,
				ScheduledAt:   res.ScheduledAt(),
			})
		}
		order.Recalculate(shipping)

		if err := s.repo.CreateOrder(txCtx, order); err != nil {
			return err
		}
		for _, ref := range SortedRefs(refs) {
			res := locked[ref]
			if res.Remaining() == 0 {
				res.MarkUnavailable()
			}
			if err := s.ledger.Write(txCtx, res); err != nil {
				return err
			}
			publishRemaining(txCtx, s.tx, s.counters, s.log, ref, res.Remaining())
		}
		if err := s.repo.MarkCheckedOut(txCtx, ids, now); err != nil {
			return err
		}
		if err := s.enqueue(txCtx, order); err != nil {
			return err
		}

		if kind == domain.OrderKindProduct {
			s.tx.AfterCommit(txCtx, func(ctx context.Context) {
				if err := s.repo.DeleteReservations(ctx, ids); err != nil {
					// Linked rows stay hidden from the active view; the next
					// selection finalize retries the delete.
					s.log.Warn("post-commit cart cleanup failed", "order_id", order.ID, "err", err)
				}
			})
		}

		result = FinalizeResult{Order: order, Outcome: FinalizeCommitted}
		return nil
	})
	if err != nil {
		if domain.IsCapacity(err) {
			s.log.Info("checkout rejected", "owner_id", in.OwnerID, "err", err)
		}
		return FinalizeResult{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", result.Order.ID),
		attribute.String("checkout.outcome", string(result.Outcome)),
	)
	if result.Outcome == FinalizeCommitted {
		s.log.Info("order committed",
			"order_id", result.Order.ID,
			"owner_id", in.OwnerID,
			"kind", result.Order.Kind,
			"items", len(result.Order.Items),
			"total", result.Order.Total.StringFixed(2),
		)
	}
	return result, nil
}

// gather resolves the target set. When every target is already checked out
// it returns the existing order instead.
func (s *CheckoutService) gather(ctx context.Context, in FinalizeInput) ([]domain.Reservation, *domain.Order, error) {
	if in.ReservationID != "" {
		r, err := s.reserves.Get(ctx, in.OwnerID, in.ReservationID)
		if err != nil {
			return nil, nil, err
		}
		if r.CheckedOut() {
			order, err := s.repo.GetOrder(ctx, in.OwnerID, *r.OrderID)
			if err != nil {
				return nil, nil, err
			}
			return nil, &order, nil
		}
		if r.Cancelled {
			return nil, nil, domain.ErrReservationNotFound
		}
		return []domain.Reservation{r}, nil, nil
	}

	selected, err := s.repo.ListSelected(ctx, in.OwnerID)
	if err != nil {
		return nil, nil, err
	}
	var open []domain.Reservation
	var linkedOrder *string
	for _, r := range selected {
		if r.CheckedOut() {
			linkedOrder = r.OrderID
			continue
		}
		open = append(open, r)
	}
	if linkedOrder != nil {
		// Leftovers of a checkout whose cleanup has not run yet.
		s.tx.AfterCommit(ctx, func(ctx context.Context) {
			s.cleanupLinked(ctx, selected)
		})
	}
	if len(open) > 0 {
		return open, nil, nil
	}
	if linkedOrder != nil {
		order, err := s.repo.GetOrder(ctx, in.OwnerID, *linkedOrder)
		if err != nil {
			return nil, nil, err
		}
		return nil, &order, nil
	}
	return nil, nil, domain.ErrEmptySelection
}

func (s *CheckoutService) cleanupLinked(ctx context.Context, rs []domain.Reservation) {
	ids := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.CheckedOut() && r.Resource.Kind.CartStyle() {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := s.repo.DeleteReservations(ctx, ids); err != nil {
		s.log.Warn("cart cleanup retry failed", "err", err)
	}
}

type orderCommittedPayload struct {
	OrderID   string           `json:"order_id"`
	OwnerID   string           `json:"owner_id"`
	Kind      domain.OrderKind `json:"kind"`
	Subtotal  decimal.Decimal  `json:"subtotal"`
	Shipping  decimal.Decimal  `json:"shipping_fee"`
	Total     decimal.Decimal  `json:"total"`
	Items     []orderLine      `json:"items"`
	CreatedAt time.Time        `json:"created_at"`
}

type orderLine struct {
	ResourceKind domain.ResourceKind `json:"resource_kind"`
	ResourceID   string              `json:"resource_id"`
	Name         string              `json:"name"`
	UnitPrice    decimal.Decimal     `json:"unit_price"`
	Quantity     int                 `json:"quantity"`
}

func (s *CheckoutService) enqueue(ctx context.Context, order domain.Order) error {
	payload := orderCommittedPayload{
		OrderID:   order.ID,
		OwnerID:   order.OwnerID,
		Kind:      order.Kind,
		Subtotal:  order.Subtotal,
		Shipping:  order.ShippingFee,
		Total:     order.Total,
		CreatedAt: order.CreatedAt,
	}
	for _, it := range order.Items {
		payload.Items = append(payload.Items, orderLine{
			ResourceKind: it.Resource.Kind,
			ResourceID:   it.Resource.ID,
			Name:         it.NameSnapshot,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	err = s.events.Enqueue(ctx, outbox.Event{
		AggregateType: "order",
		AggregateID:   order.ID,
		Type:          outbox.TypeOrderCommitted,
		Payload:       body,
		Headers:       map[string]string{"owner_id": order.OwnerID},
		Traceparent:   tracing.Traceparent(ctx),
		CreatedAt:     order.CreatedAt,
		Status:        outbox.StatusPending,
	})
	if err != nil {
		return fmt.Errorf("enqueue order event: %w", err)
	}
	return nil
}
