package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/domain"
	"github.com/chefkeenan/Lume/internal/labels"
)

// money is rendered both as an exact amount and as a rupiah label.
type money struct {
	Amount  string `json:"amount"`
	Display string `json:"display"`
}

func moneyOf(d decimal.Decimal) money {
	return money{Amount: d.StringFixed(2), Display: labels.FormatRupiah(d)}
}

type reservationResponse struct {
	ID           string    `json:"id"`
	ResourceKind string    `json:"resource_kind"`
	ResourceID   string    `json:"resource_id"`
	Name         string    `json:"name"`
	Quantity     int       `json:"quantity"`
	Selected     bool      `json:"selected"`
	UnitPrice    money     `json:"unit_price"`
	LineTotal    money     `json:"line_total"`
	DaySelected  *int      `json:"day_selected,omitempty"`
	DayName      string    `json:"day_name,omitempty"`
	OrderID      *string   `json:"order_id,omitempty"`
	Cancelled    bool      `json:"cancelled"`
	CreatedAt    time.Time `json:"created_at"`
}

func toReservation(r domain.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:           r.ID,
		ResourceKind: string(r.Resource.Kind),
		ResourceID:   r.Resource.ID,
		Name:         r.NameSnapshot,
		Quantity:     r.Quantity,
		Selected:     r.Selected,
		UnitPrice:    moneyOf(r.PriceSnapshot),
		LineTotal:    moneyOf(r.LineTotal()),
		DaySelected:  r.DaySelected,
		OrderID:      r.OrderID,
		Cancelled:    r.Cancelled,
		CreatedAt:    r.CreatedAt,
	}
	if r.DaySelected != nil {
		resp.DayName = labels.WeekdayName(*r.DaySelected)
	}
	return resp
}

type summaryResponse struct {
	Count       int   `json:"count"`
	Quantity    int   `json:"quantity"`
	Subtotal    money `json:"subtotal"`
	ShippingFee money `json:"shipping_fee"`
	Total       money `json:"total"`
}

func toSummary(s app.SelectionSummary) summaryResponse {
	return summaryResponse{
		Count:       s.Count,
		Quantity:    s.Quantity,
		Subtotal:    moneyOf(s.Subtotal),
		ShippingFee: moneyOf(s.ShippingFee),
		Total:       moneyOf(s.Total),
	}
}

type orderItemResponse struct {
	ID            string     `json:"id"`
	ReservationID *string    `json:"reservation_id,omitempty"`
	ResourceKind  string     `json:"resource_kind"`
	ResourceID    string     `json:"resource_id"`
	Name          string     `json:"name"`
	UnitPrice     money      `json:"unit_price"`
	Quantity      int        `json:"quantity"`
	LineTotal     money      `json:"line_total"`
	ScheduledAt   *time.Time `json:"scheduled_at,omitempty"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	Kind        string              `json:"kind"`
	Address     *domain.Address     `json:"address,omitempty"`
	Notes       string              `json:"notes,omitempty"`
	Items       []orderItemResponse `json:"items"`
	Subtotal    money               `json:"subtotal"`
	ShippingFee money               `json:"shipping_fee"`
	Total       money               `json:"total"`
	CreatedAt   time.Time           `json:"created_at"`
}

func toOrder(o domain.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		Kind:        string(o.Kind),
		Address:     o.Address,
		Notes:       o.Notes,
		Items:       make([]orderItemResponse, 0, len(o.Items)),
		Subtotal:    moneyOf(o.Subtotal),
		ShippingFee: moneyOf(o.ShippingFee),
		Total:       moneyOf(o.Total),
		CreatedAt:   o.CreatedAt,
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ID:            it.ID,
			ReservationID: it.ReservationID,
			ResourceKind:  string(it.Resource.Kind),
			ResourceID:    it.Resource.ID,
			Name:          it.NameSnapshot,
			UnitPrice:     moneyOf(it.UnitPrice),
			Quantity:      it.Quantity,
			LineTotal:     moneyOf(it.LineTotal()),
			ScheduledAt:   it.ScheduledAt,
		})
	}
	return resp
}

type bookingResponse struct {
	OrderID     string     `json:"order_id"`
	ItemID      string     `json:"item_id"`
	SessionID   string     `json:"session_id"`
	Title       string     `json:"title"`
	Instructor  string     `json:"instructor,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Price       money      `json:"price"`
	Quantity    int        `json:"quantity"`
	OrderedAt   time.Time  `json:"ordered_at"`
	Status      string     `json:"status"`
}

func toBooking(b domain.BookingEntry) bookingResponse {
	return bookingResponse{
		OrderID:     b.OrderID,
		ItemID:      b.ItemID,
		SessionID:   b.SessionID,
		Title:       b.Title,
		Instructor:  b.Instructor,
		ScheduledAt: b.ScheduledAt,
		Price:       moneyOf(b.UnitPrice),
		Quantity:    b.Quantity,
		OrderedAt:   b.OrderedAt,
		Status:      string(b.Status),
	}
}

type productResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Stock      int        `json:"stock"`
	Sold       int        `json:"sold"`
	Price      money      `json:"price"`
	InStock    bool       `json:"in_stock"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

func toProduct(p domain.Product) productResponse {
	return productResponse{
		ID:         p.ID,
		Name:       p.Name,
		Stock:      p.Stock,
		Sold:       p.Sold,
		Price:      moneyOf(p.Price),
		InStock:    p.InStock,
		ValidFrom:  p.Validity.From,
		ValidUntil: p.Validity.Until,
	}
}

type sessionResponse struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	Instructor      string     `json:"instructor,omitempty"`
	Room            string     `json:"room,omitempty"`
	Days            []int      `json:"days"`
	DayNames        []string   `json:"day_names"`
	TimeSlot        string     `json:"time_slot,omitempty"`
	CapacityMax     int        `json:"capacity_max"`
	CapacityCurrent int        `json:"capacity_current"`
	Remaining       *int       `json:"remaining,omitempty"`
	Price           money      `json:"price"`
	Available       bool       `json:"available"`
	StartsAt        *time.Time `json:"starts_at,omitempty"`
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
}

func toSession(s domain.Session) sessionResponse {
	days := s.Days
	if days == nil {
		days = []int{}
	}
	return sessionResponse{
		ID:              s.ID,
		Title:           s.Title,
		Category:        string(s.Category),
		Instructor:      s.Instructor,
		Room:            s.Room,
		Days:            days,
		DayNames:        labels.WeekdayNames(days),
		TimeSlot:        s.TimeSlot,
		CapacityMax:     s.CapacityMax,
		CapacityCurrent: s.CapacityCurrent,
		Price:           moneyOf(s.Price),
		Available:       s.Available,
		StartsAt:        s.StartsAt,
		ValidFrom:       s.Validity.From,
		ValidUntil:      s.Validity.Until,
	}
}
