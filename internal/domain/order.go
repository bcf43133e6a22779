package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderKind string

const (
	OrderKindProduct OrderKind = "product"
	OrderKindBooking OrderKind = "booking"
)

// OrderKindFor returns the order kind produced by checking out kind.
func OrderKindFor(kind ResourceKind) OrderKind {
	if kind == KindSession {
		return OrderKindBooking
	}
	return OrderKindProduct
}

// Address is the shipping snapshot captured with a product order.
type Address struct {
	ReceiverName  string `json:"receiver_name,omitempty"`
	ReceiverPhone string `json:"receiver_phone,omitempty"`
	Line1         string `json:"address_line1" validate:"required,max=200"`
	Line2         string `json:"address_line2,omitempty" validate:"max=200"`
	City          string `json:"city" validate:"required,max=100"`
	Province      string `json:"province" validate:"required,max=100"`
	PostalCode    string `json:"postal_code" validate:"required,max=20"`
	Country       string `json:"country" validate:"required,max=60"`
}

// Order is immutable once committed.
type Order struct {
	ID          string
	OwnerID     string
	Kind        OrderKind
	Address     *Address
	Notes       string
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Total       decimal.Decimal
	CreatedAt   time.Time
	Items       []OrderItem
}

// OrderItem freezes what was bought at checkout time.
type OrderItem struct {
	ID            string
	OrderID       string
	ReservationID *string
	Resource      ResourceRef
	NameSnapshot  string
	UnitPrice     decimal.Decimal
	Quantity      int
	ScheduledAt   *time.Time
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Recalculate recomputes subtotal and total from the items.
func (o *Order) Recalculate(shipping decimal.Decimal) {
	subtotal := decimal.Zero
	for _, it := range o.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	o.Subtotal = subtotal
	o.ShippingFee = shipping
	o.Total = subtotal.Add(shipping)
}

// BookingStatus is derived when reading booking history.
type BookingStatus string

const (
	BookingUpcoming  BookingStatus = "upcoming"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// BookingEntry is one checked-out session seat in a user's history.
type BookingEntry struct {
	OrderID     string
	ItemID      string
	SessionID   string
	Title       string
	Instructor  string
	ScheduledAt *time.Time
	UnitPrice   decimal.Decimal
	Quantity    int
	OrderedAt   time.Time
	Cancelled   bool
	Status      BookingStatus
}
