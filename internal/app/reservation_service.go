package app

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/domain"
	"github.com/chefkeenan/Lume/internal/labels"
)

type ReservationRepository interface {
	// FindOpen returns the owner's non-cancelled reservation for ref, or nil.
	// Checked-out reservations are only considered when includeCheckedOut is set.
	FindOpen(ctx context.Context, ownerID string, ref domain.ResourceRef, includeCheckedOut bool) (*domain.Reservation, error)
	Get(ctx context.Context, ownerID, id string) (domain.Reservation, error)
	GetForUpdate(ctx context.Context, ownerID, id string) (domain.Reservation, error)
	Create(ctx context.Context, r domain.Reservation) error
	UpdateQuantity(ctx context.Context, id string, quantity int) error
	Delete(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, id string) error
	ListActive(ctx context.Context, ownerID string) ([]domain.Reservation, error)
	SetSelected(ctx context.Context, ownerID, id string, selected bool) error
	SetSelectedAll(ctx context.Context, ownerID string, selected bool) (int, error)
}

// ReservationService creates and edits an owner's pending reservations.
// Every capacity check runs under the resource row lock.
type ReservationService struct {
	tx       TxRunner
	ledger   *CapacityLedger
	repo     ReservationRepository
	clock    clock.Clock
	log      *slog.Logger
	counters DisplayCounter
	summary  summarizer
}

func NewReservationService(tx TxRunner, ledger *CapacityLedger, repo ReservationRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		tx:       tx,
		ledger:   ledger,
		repo:     repo,
		clock:    clk,
		log:      discardLogger(),
		counters: noopCounter{},
		summary:  summarizer{shipping: DefaultShippingFee},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

func WithReservationLogger(log *slog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithReservationCounters refreshes display counters after each commit.
func WithReservationCounters(c DisplayCounter) ReservationServiceOption {
	return func(s *ReservationService) {
		if c != nil {
			s.counters = c
		}
	}
}

// WithReservationShipping sets the flat fee shown in cart summaries.
func WithReservationShipping(fee decimal.Decimal) ReservationServiceOption {
	return func(s *ReservationService) {
		if !fee.IsNegative() {
			s.summary.shipping = fee
		}
	}
}

type ReserveInput struct {
	OwnerID     string
	Resource    domain.ResourceRef
	Quantity    int
	DaySelected *int
}

type ReserveResult struct {
	Reservation domain.Reservation
	Outcome     domain.ReserveOutcome
	// Capped is set when a merge was cut down to the remaining stock.
	Capped bool
}

func (in ReserveInput) validate() error {
	if in.OwnerID == "" {
		return domain.ErrOwnerRequired
	}
	if !in.Resource.Kind.Valid() {
		return domain.ErrInvalidKind
	}
	if in.Resource.ID == "" {
		return domain.NewValidationError("resource_id", "required")
	}
	if in.Quantity <= 0 {
		return domain.NewValidationError("quantity", "must be greater than zero")
	}
	if in.DaySelected != nil {
		if in.Resource.Kind != domain.KindSession {
			return domain.NewValidationError("day_selected", "only applies to sessions")
		}
		if !labels.ValidWeekday(*in.DaySelected) {
			return domain.NewValidationError("day_selected", "must be between 0 (Monday) and 5 (Saturday)")
		}
	}
	return nil
}

// Reserve claims quantity units of a resource for the owner. Products merge
// into the owner's open cart line; a second booking for the same session
// returns the existing one with OutcomeDuplicate.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (result ReserveResult, err error) {
	if err := in.validate(); err != nil {
		return ReserveResult{}, err
	}

	ctx, span := tracer.Start(ctx, "reservation.reserve", refAttrs(in.Resource),
		trace.WithAttributes(attribute.Int("reservation.quantity", in.Quantity)))
	defer func() { finishSpan(span, err) }()

	now := s.clock.Now()
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.ledger.LockAndRead(txCtx, in.Resource, LockOptions{})
		if err != nil {
			return err
		}
		if err := res.Bookable(now); err != nil {
			return err
		}
		if sess, ok := res.(*domain.Session); ok && in.DaySelected != nil && len(sess.Days) > 0 && !sess.HasDay(*in.DaySelected) {
			return domain.NewValidationError("day_selected", "session does not run on "+labels.WeekdayName(*in.DaySelected))
		}

		cart := in.Resource.Kind.CartStyle()
		existing, err := s.repo.FindOpen(txCtx, in.OwnerID, in.Resource, !cart)
		if err != nil {
			return err
		}
		if existing != nil {
			if !cart {
				result = ReserveResult{Reservation: *existing, Outcome: domain.OutcomeDuplicate}
				return nil
			}
			return s.merge(txCtx, res, *existing, in.Quantity, &result)
		}

		remaining := res.Remaining()
		if in.Quantity > remaining {
			return &domain.CapacityError{Ref: in.Resource, Requested: in.Quantity, Remaining: remaining}
		}

		r := domain.Reservation{
			ID:            newUUID(),
			Resource:      in.Resource,
			OwnerID:       in.OwnerID,
			Quantity:      in.Quantity,
			Selected:      cart,
			PriceSnapshot: res.UnitPrice(),
			NameSnapshot:  res.DisplayName(),
			DaySelected:   in.DaySelected,
			CreatedAt:     now,
		}
		if !cart {
			r.NameSnapshot = labels.BookingTitle(res.DisplayName(), in.DaySelected)
		}
		if err := s.repo.Create(txCtx, r); err != nil {
			return err
		}
		if !cart {
			publishRemaining(txCtx, s.tx, s.counters, s.log, in.Resource, remaining-in.Quantity)
		}
		result = ReserveResult{Reservation: r, Outcome: domain.OutcomeCreated}
		return nil
	})
	if err != nil {
		if domain.IsCapacity(err) {
			s.log.Debug("reservation rejected", "owner_id", in.OwnerID, "kind", in.Resource.Kind, "resource_id", in.Resource.ID, "err", err)
		}
		return ReserveResult{}, err
	}
	span.SetAttributes(attribute.String("reservation.outcome", string(result.Outcome)))
	return result, nil
}

// merge adds qty to an open cart line, capped at the stock left. A line
// already at or above the stock left is rejected, never shrunk.
func (s *ReservationService) merge(ctx context.Context, res domain.Resource, existing domain.Reservation, qty int, out *ReserveResult) error {
	remaining := res.Remaining()
	if remaining <= existing.Quantity {
		return &domain.CapacityError{Ref: existing.Resource, Requested: qty, Remaining: 0}
	}
	total := existing.Quantity + qty
	capped := false
	if total > remaining {
		total = remaining
		capped = true
	}
	if total != existing.Quantity {
		if err := s.repo.UpdateQuantity(ctx, existing.ID, total); err != nil {
			return err
		}
	}
	existing.Quantity = total
	*out = ReserveResult{Reservation: existing, Outcome: domain.OutcomeMerged, Capped: capped}
	return nil
}

type AdjustResult struct {
	Reservation domain.Reservation
	// Released is set when the new quantity removed the reservation.
	Released bool
}

// AdjustQuantity re-validates a reservation at a new quantity. A quantity of
// zero or less releases it. A rejected change leaves the row untouched.
func (s *ReservationService) AdjustQuantity(ctx context.Context, ownerID, id string, quantity int) (result AdjustResult, err error) {
	if ownerID == "" {
		return AdjustResult{}, domain.ErrOwnerRequired
	}
	if quantity <= 0 {
		if err := s.Release(ctx, ownerID, id); err != nil {
			return AdjustResult{}, err
		}
		return AdjustResult{Released: true}, nil
	}

	ctx, span := tracer.Start(ctx, "reservation.adjust",
		trace.WithAttributes(attribute.String("reservation.id", id), attribute.Int("reservation.quantity", quantity)))
	defer func() { finishSpan(span, err) }()

	now := s.clock.Now()
	err = s.tx.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.Get(txCtx, ownerID, id)
		if err != nil {
			return err
		}
		if err := editable(current); err != nil {
			return err
		}

		// Resource lock first, then the reservation row, same as finalize.
		res, err := s.ledger.LockAndRead(txCtx, current.Resource, LockOptions{Exclude: []string{current.ID}})
		if err != nil {
			return err
		}
		current, err = s.repo.GetForUpdate(txCtx, ownerID, id)
		if err != nil {
			return err
		}
		if err := editable(current); err != nil {
			return err
		}
		if quantity > current.Quantity {
			if err := res.Bookable(now); err != nil {
				return err
			}
		}
		remaining := res.Remaining()
		if quantity > remaining {
			return &domain.CapacityError{Ref: current.Resource, Requested: quantity, Remaining: remaining}
		}
		if err := s.repo.UpdateQuantity(txCtx, current.ID, quantity); err != nil {
			return err
		}
		if !current.Resource.Kind.CartStyle() {
			publishRemaining(txCtx, s.tx, s.counters, s.log, current.Resource, remaining-quantity)
		}
		current.Quantity = quantity
		result = AdjustResult{Reservation: current}
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}
	return result, nil
}

func editable(r domain.Reservation) error {
	if r.CheckedOut() {
		return domain.ErrAlreadyCheckedOut
	}
	if r.Cancelled {
		return domain.ErrReservationNotFound
	}
	return nil
}

// Release deletes an unfinalized reservation. Capacity needs no adjustment
// since claims are always recounted from live rows.
func (s *ReservationService) Release(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrOwnerRequired
	}
	return s.tx.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetForUpdate(txCtx, ownerID, id)
		if err != nil {
			return err
		}
		if r.CheckedOut() {
			return domain.ErrAlreadyCheckedOut
		}
		return s.repo.Delete(txCtx, r.ID)
	})
}

// Cancel is the owner-initiated cancellation. Cart lines are released;
// session bookings are flagged cancelled, which frees their seat even after
// checkout.
func (s *ReservationService) Cancel(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return domain.ErrOwnerRequired
	}
	current, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if current.Resource.Kind.CartStyle() {
		return s.Release(ctx, ownerID, id)
	}
	if current.Cancelled {
		return nil
	}

	return s.tx.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.ledger.LockAndRead(txCtx, current.Resource, LockOptions{Exclude: []string{current.ID}})
		if err != nil {
			return err
		}
		r, err := s.repo.GetForUpdate(txCtx, ownerID, id)
		if err != nil {
			return err
		}
		if r.Cancelled {
			return nil
		}
		if err := s.repo.MarkCancelled(txCtx, r.ID); err != nil {
			return err
		}

		if r.CheckedOut() {
			confirmed, err := s.ledger.ConfirmedCount(txCtx, r.Resource)
			if err != nil {
				return err
			}
			if sess, ok := res.(*domain.Session); ok {
				claims := sess.Claims()
				claims.Confirmed = confirmed
				sess.SetClaims(claims)
				sess.CapacityCurrent = confirmed
				sess.Reopen()
			}
			if err := s.ledger.Write(txCtx, res); err != nil {
				return err
			}
		}
		publishRemaining(txCtx, s.tx, s.counters, s.log, r.Resource, res.Remaining())
		s.log.Info("booking cancelled", "owner_id", ownerID, "reservation_id", r.ID, "checked_out", r.CheckedOut())
		return nil
	})
}

// ActiveView is the owner's open reservations plus the cart summary.
type ActiveView struct {
	Reservations []domain.Reservation
	Summary      SelectionSummary
}

// ListActive returns reservations that are neither cancelled nor checked out.
func (s *ReservationService) ListActive(ctx context.Context, ownerID string) (ActiveView, error) {
	if ownerID == "" {
		return ActiveView{}, domain.ErrOwnerRequired
	}
	items, err := s.repo.ListActive(ctx, ownerID)
	if err != nil {
		return ActiveView{}, err
	}
	return ActiveView{Reservations: items, Summary: s.summary.summarize(items)}, nil
}
