package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResourceKind selects the concrete resource variant. Products are
// cart-style, sessions are booking-style.
type ResourceKind string

const (
	KindProduct ResourceKind = "product"
	KindSession ResourceKind = "session"
)

func (k ResourceKind) Valid() bool {
	return k == KindProduct || k == KindSession
}

// CartStyle reports whether reservations of this kind merge and take part
// in the selection set.
func (k ResourceKind) CartStyle() bool {
	return k == KindProduct
}

// ResourceRef identifies a resource row.
type ResourceRef struct {
	Kind ResourceKind
	ID   string
}

// Less orders refs by id, then kind. Finalize locks resources in this order.
func (r ResourceRef) Less(other ResourceRef) bool {
	if r.ID != other.ID {
		return r.ID < other.ID
	}
	return r.Kind < other.Kind
}

// Claims is consumption recomputed from live reservation and order item rows.
type Claims struct {
	Confirmed int
	Pending   int
}

// Window is an optional validity interval. Zero bounds are open.
type Window struct {
	From  *time.Time
	Until *time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.Until != nil && !t.Before(*w.Until) {
		return false
	}
	return true
}

// Resource is the capacity capability shared by products and sessions.
// Values are only meaningful while the row lock that produced them is held.
type Resource interface {
	Ref() ResourceRef
	DisplayName() string
	UnitPrice() decimal.Decimal
	// Bookable returns ErrResourceExpired when the resource cannot take new
	// claims at now.
	Bookable(now time.Time) error
	SetClaims(c Claims)
	Remaining() int
	Decrement(qty int) error
	MarkUnavailable()
	// ScheduledAt is the occurrence snapshotted onto order items, if any.
	ScheduledAt() *time.Time
}

var (
	_ Resource = (*Product)(nil)
	_ Resource = (*Session)(nil)
)

// Product is stock-counted inventory. Stock is the remaining capacity.
type Product struct {
	ID        string
	Name      string
	Stock     int
	Price     decimal.Decimal
	InStock   bool
	Validity  Window
	CreatedAt time.Time

	// Sold is derived from order items for display.
	Sold int
}

func (p *Product) Ref() ResourceRef { return ResourceRef{Kind: KindProduct, ID: p.ID} }
func (p *Product) DisplayName() string { return p.Name }
func (p *Product) UnitPrice() decimal.Decimal { return p.Price }
func (p *Product) ScheduledAt() *time.Time { return nil }
func (p *Product) SetClaims(c Claims) { p.Sold = c.Confirmed }
func (p *Product) MarkUnavailable() { p.InStock = false }

func (p *Product) Bookable(now time.Time) error {
	if !p.Validity.Contains(now) {
		return ErrResourceExpired
	}
	// Sold out is a capacity failure, not an expiry.
	if !p.InStock && p.Stock > 0 {
		return ErrResourceExpired
	}
	return nil
}

// Remaining is the unsold stock. Cart lines do not hold stock, so the
// at-most-N-reservations bound holds for sessions only; finalize decides
// which product carts get the stock.
func (p *Product) Remaining() int {
	if !p.InStock || p.Stock < 0 {
		return 0
	}
	return p.Stock
}

func (p *Product) Decrement(qty int) error {
	if qty > p.Remaining() {
		return &CapacityError{Ref: p.Ref(), Requested: qty, Remaining: p.Remaining()}
	}
	p.Stock -= qty
	p.Sold += qty
	return nil
}

type SessionCategory string

const (
	CategoryDaily  SessionCategory = "daily"
	CategoryWeekly SessionCategory = "weekly"
)

// Session is a class session with a seat pool.
type Session struct {
	ID          string
	Title       string
	Category    SessionCategory
	Instructor  string
	Room        string
	Days        []int
	TimeSlot    string
	CapacityMax int
	// CapacityCurrent is a cached display counter, never a decision input.
	CapacityCurrent int
	Price           decimal.Decimal
	Available       bool
	StartsAt        *time.Time
	Validity        Window
	CreatedAt       time.Time

	claims Claims
}

func (s *Session) Ref() ResourceRef { return ResourceRef{Kind: KindSession, ID: s.ID} }
func (s *Session) DisplayName() string { return s.Title }
func (s *Session) UnitPrice() decimal.Decimal { return s.Price }
func (s *Session) ScheduledAt() *time.Time { return s.StartsAt }
func (s *Session) SetClaims(c Claims) { s.claims = c }
func (s *Session) Claims() Claims { return s.claims }
func (s *Session) MarkUnavailable() { s.Available = false }

// Reopen switches a sold-out session back on once a seat is free again.
// Finalize is the only writer that turns Available off.
func (s *Session) Reopen() {
	if s.Remaining() > 0 {
		s.Available = true
	}
}

func (s *Session) Bookable(now time.Time) error {
	if !s.Validity.Contains(now) {
		return ErrResourceExpired
	}
	if s.StartsAt != nil && !s.StartsAt.After(now) {
		return ErrResourceExpired
	}
	if !s.Available && s.Remaining() > 0 {
		return ErrResourceExpired
	}
	return nil
}

func (s *Session) Remaining() int {
	left := s.CapacityMax - s.claims.Confirmed - s.claims.Pending
	if left < 0 {
		return 0
	}
	return left
}

func (s *Session) Decrement(qty int) error {
	if qty > s.Remaining() {
		return &CapacityError{Ref: s.Ref(), Requested: qty, Remaining: s.Remaining()}
	}
	s.claims.Confirmed += qty
	s.CapacityCurrent = s.claims.Confirmed
	return nil
}

// HasDay reports whether day is one of the session's weekdays.
func (s *Session) HasDay(day int) bool {
	for _, d := range s.Days {
		if d == day {
			return true
		}
	}
	return false
}
