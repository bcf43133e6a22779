package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reservation is a pending claim by one owner against one resource.
type Reservation struct {
	ID            string
	Resource      ResourceRef
	OwnerID       string
	Quantity      int
	Selected      bool
	Cancelled     bool
	PriceSnapshot decimal.Decimal
	NameSnapshot  string
	// DaySelected is the weekday a session booking was made for, or nil.
	DaySelected *int
	CreatedAt   time.Time

	// OrderItemID is set once the reservation has been checked out.
	OrderItemID *string
	OrderID     *string
}

// CheckedOut reports whether the reservation is linked to an order item.
func (r Reservation) CheckedOut() bool {
	return r.OrderItemID != nil
}

// Active reports whether the reservation still counts as a pending claim.
func (r Reservation) Active() bool {
	return !r.Cancelled && !r.CheckedOut()
}

// LineTotal is the snapshot price times quantity.
func (r Reservation) LineTotal() decimal.Decimal {
	return r.PriceSnapshot.Mul(decimal.NewFromInt(int64(r.Quantity)))
}

// ReserveOutcome tells the caller how Reserve resolved.
type ReserveOutcome string

const (
	OutcomeCreated   ReserveOutcome = "created"
	OutcomeMerged    ReserveOutcome = "merged"
	OutcomeDuplicate ReserveOutcome = "duplicate"
)
