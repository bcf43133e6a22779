package app

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chefkeenan/Lume/internal/domain"
)

// DefaultShippingFee is the flat fee charged on product orders.
var DefaultShippingFee = decimal.RequireFromString("10000.00")

// SelectionSummary totals the selected cart lines.
type SelectionSummary struct {
	Count       int
	Quantity    int
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
}

type summarizer struct {
	shipping decimal.Decimal
}

// summarize only counts selected cart lines that are still open. Shipping is
// charged once there is anything to ship.
func (z summarizer) summarize(items []domain.Reservation) SelectionSummary {
	sum := SelectionSummary{Subtotal: decimal.Zero, ShippingFee: decimal.Zero}
	for _, r := range items {
		if !r.Resource.Kind.CartStyle() || !r.Selected || !r.Active() {
			continue
		}
		sum.Count++
		sum.Quantity += r.Quantity
		sum.Subtotal = sum.Subtotal.Add(r.LineTotal())
	}
	if sum.Count > 0 {
		sum.ShippingFee = z.shipping
	}
	sum.Total = sum.Subtotal.Add(sum.ShippingFee)
	return sum
}

// SelectionService flips the selected flag on cart reservations. Session
// bookings never take part: each one is checked out on its own.
type SelectionService struct {
	repo    ReservationRepository
	summary summarizer
}

func NewSelectionService(repo ReservationRepository, shipping decimal.Decimal) *SelectionService {
	if shipping.IsNegative() {
		shipping = DefaultShippingFee
	}
	return &SelectionService{repo: repo, summary: summarizer{shipping: shipping}}
}

// Toggle sets the selected flag on one reservation.
func (s *SelectionService) Toggle(ctx context.Context, ownerID, id string, selected bool) (domain.Reservation, error) {
	if ownerID == "" {
		return domain.Reservation{}, domain.ErrOwnerRequired
	}
	r, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !r.Resource.Kind.CartStyle() {
		return domain.Reservation{}, domain.NewValidationError("reservation_id", "only cart reservations can be selected")
	}
	if err := editable(r); err != nil {
		return domain.Reservation{}, err
	}
	if r.Selected == selected {
		return r, nil
	}
	if err := s.repo.SetSelected(ctx, ownerID, id, selected); err != nil {
		return domain.Reservation{}, err
	}
	r.Selected = selected
	return r, nil
}

// SelectAll selects every open cart reservation and returns how many changed.
func (s *SelectionService) SelectAll(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, domain.ErrOwnerRequired
	}
	return s.repo.SetSelectedAll(ctx, ownerID, true)
}

func (s *SelectionService) UnselectAll(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, domain.ErrOwnerRequired
	}
	return s.repo.SetSelectedAll(ctx, ownerID, false)
}

// Summary totals what the next selection checkout would charge.
func (s *SelectionService) Summary(ctx context.Context, ownerID string) (SelectionSummary, error) {
	if ownerID == "" {
		return SelectionSummary{}, domain.ErrOwnerRequired
	}
	items, err := s.repo.ListActive(ctx, ownerID)
	if err != nil {
		return SelectionSummary{}, err
	}
	return s.summary.summarize(items), nil
}
