package http

import (
	"context"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/domain"
)

type stubReservations struct {
	reserve func(in app.ReserveInput) (app.ReserveResult, error)
	adjust  func(owner, id string, qty int) (app.AdjustResult, error)
	release func(owner, id string) error
	cancel  func(owner, id string) error
	active  app.ActiveView
}

func (s *stubReservations) Reserve(_ context.Context, in app.ReserveInput) (app.ReserveResult, error) {
	return s.reserve(in)
}

func (s *stubReservations) AdjustQuantity(_ context.Context, owner, id string, qty int) (app.AdjustResult, error) {
	return s.adjust(owner, id, qty)
}

func (s *stubReservations) Release(_ context.Context, owner, id string) error {
	return s.release(owner, id)
}

func (s *stubReservations) Cancel(_ context.Context, owner, id string) error {
	return s.cancel(owner, id)
}

func (s *stubReservations) ListActive(context.Context, string) (app.ActiveView, error) {
	return s.active, nil
}

type stubSelection struct {
	toggled  map[string]bool
	selected *bool
	changed  int
	summary  app.SelectionSummary
	err      error
}

func (s *stubSelection) Toggle(_ context.Context, owner, id string, selected bool) (domain.Reservation, error) {
	if s.err != nil {
		return domain.Reservation{}, s.err
	}
	if s.toggled == nil {
		s.toggled = map[string]bool{}
	}
	s.toggled[id] = selected
	return domain.Reservation{ID: id, OwnerID: owner, Selected: selected}, nil
}

func (s *stubSelection) SelectAll(context.Context, string) (int, error) {
	v := true
	s.selected = &v
	return s.changed, s.err
}

func (s *stubSelection) UnselectAll(context.Context, string) (int, error) {
	v := false
	s.selected = &v
	return s.changed, s.err
}

func (s *stubSelection) Summary(context.Context, string) (app.SelectionSummary, error) {
	return s.summary, s.err
}

type stubCheckout struct {
	got    app.FinalizeInput
	result app.FinalizeResult
	err    error
}

func (s *stubCheckout) Finalize(_ context.Context, in app.FinalizeInput) (app.FinalizeResult, error) {
	s.got = in
	return s.result, s.err
}

type stubHistory struct {
	orders   []domain.Order
	bookings []domain.BookingEntry
}

func (s *stubHistory) ListOrders(_ context.Context, owner string) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range s.orders {
		if o.OwnerID == owner {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubHistory) GetOrder(_ context.Context, owner, id string) (domain.Order, error) {
	for _, o := range s.orders {
		if o.ID == id && o.OwnerID == owner {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrOrderNotFound
}

func (s *stubHistory) ListBookings(context.Context, string) ([]domain.BookingEntry, error) {
	return s.bookings, nil
}

type stubCatalog struct {
	products       []domain.Product
	sessions       []domain.Session
	createdProduct app.CreateProductInput
	createdSession app.CreateSessionInput
}

func (s *stubCatalog) CreateProduct(_ context.Context, in app.CreateProductInput) (domain.Product, error) {
	s.createdProduct = in
	if in.Name == "" {
		return domain.Product{}, domain.NewValidationError("name", "required")
	}
	return domain.Product{ID: "p-new", Name: in.Name, Stock: in.Stock, Price: in.Price, InStock: in.Stock > 0}, nil
}

func (s *stubCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	return s.products, nil
}

func (s *stubCatalog) CreateSession(_ context.Context, in app.CreateSessionInput) (domain.Session, error) {
	s.createdSession = in
	return domain.Session{
		ID:          "s-new",
		Title:       in.Title,
		Category:    in.Category,
		Days:        in.Days,
		CapacityMax: in.CapacityMax,
		Price:       in.Price,
		Available:   true,
		StartsAt:    in.StartsAt,
	}, nil
}

func (s *stubCatalog) ListSessions(context.Context) ([]domain.Session, error) {
	return s.sessions, nil
}

type stubRemaining map[string]int

func (s stubRemaining) Remaining(_ context.Context, ref domain.ResourceRef) (int, bool, error) {
	n, ok := s[ref.ID]
	return n, ok, nil
}
