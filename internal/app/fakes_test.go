package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefkeenan/Lume/internal/domain"
	"github.com/chefkeenan/Lume/internal/outbox"
)

// fakeStore is an in-memory stand-in for every repository. Transactions
// are serialised on txMu, which models the row locks coarsely, and a failed
// transaction restores the snapshot taken when it began.
type fakeStore struct {
	txMu sync.Mutex

	mu           sync.Mutex
	products     map[string]domain.Product
	sessions     map[string]domain.Session
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	events       []outbox.Event

	// failCreateOrder makes the next CreateOrder fail once.
	failCreateOrder error
}

type fakeTxKey struct{}

type fakeTx struct {
	hooks []func(ctx context.Context)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products:     map[string]domain.Product{},
		sessions:     map[string]domain.Session{},
		reservations: map[string]domain.Reservation{},
		orders:       map[string]domain.Order{},
	}
}

type fakeSnapshot struct {
	products     map[string]domain.Product
	sessions     map[string]domain.Session
	reservations map[string]domain.Reservation
	orders       map[string]domain.Order
	events       []outbox.Event
}

func (f *fakeStore) snapshot() fakeSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := fakeSnapshot{
		products:     make(map[string]domain.Product, len(f.products)),
		sessions:     make(map[string]domain.Session, len(f.sessions)),
		reservations: make(map[string]domain.Reservation, len(f.reservations)),
		orders:       make(map[string]domain.Order, len(f.orders)),
		events:       append([]outbox.Event(nil), f.events...),
	}
	for k, v := range f.products {
		s.products[k] = v
	}
	for k, v := range f.sessions {
		s.sessions[k] = v
	}
	for k, v := range f.reservations {
		s.reservations[k] = v
	}
	for k, v := range f.orders {
		s.orders[k] = v
	}
	return s
}

func (f *fakeStore) restore(s fakeSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = s.products
	f.sessions = s.sessions
	f.reservations = s.reservations
	f.orders = s.orders
	f.events = s.events
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		return fn(ctx)
	}
	f.txMu.Lock()
	snap := f.snapshot()
	tx := &fakeTx{}
	err := fn(context.WithValue(ctx, fakeTxKey{}, tx))
	if err != nil {
		f.restore(snap)
	}
	f.txMu.Unlock()
	if err != nil {
		return err
	}
	for _, hook := range tx.hooks {
		hook(ctx)
	}
	return nil
}

func (f *fakeStore) AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	tx, ok := ctx.Value(fakeTxKey{}).(*fakeTx)
	if !ok {
		fn(ctx)
		return
	}
	tx.hooks = append(tx.hooks, fn)
}

func inTx(ctx context.Context) bool {
	_, ok := ctx.Value(fakeTxKey{}).(*fakeTx)
	return ok
}

// seeding helpers

func (f *fakeStore) addProduct(p domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

func (f *fakeStore) addSession(s domain.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeStore) addReservation(r domain.Reservation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[r.ID] = r
}

func (f *fakeStore) product(id string) domain.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id]
}

func (f *fakeStore) session(id string) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeStore) reservation(id string) (domain.Reservation, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	return r, ok
}

func (f *fakeStore) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeStore) liveClaims(owner string, ref domain.ResourceRef) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, r := range f.reservations {
		if r.Resource == ref && !r.Cancelled && (owner == "" || r.OwnerID == owner) {
			total += r.Quantity
		}
	}
	return total
}

// LedgerRepository

func (f *fakeStore) LockResource(ctx context.Context, ref domain.ResourceRef) (domain.Resource, error) {
	if !inTx(ctx) {
		return nil, domain.ErrNoTransaction
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch ref.Kind {
	case domain.KindProduct:
		p, ok := f.products[ref.ID]
		if !ok {
			return nil, domain.ErrResourceNotFound
		}
		return &p, nil
	case domain.KindSession:
		s, ok := f.sessions[ref.ID]
		if !ok {
			return nil, domain.ErrResourceNotFound
		}
		s.Days = append([]int(nil), s.Days...)
		return &s, nil
	}
	return nil, domain.ErrInvalidKind
}

func (f *fakeStore) CountClaims(_ context.Context, ref domain.ResourceRef, exclude []string) (domain.Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	skip := map[string]bool{}
	for _, id := range exclude {
		skip[id] = true
	}
	var c domain.Claims
	if ref.Kind == domain.KindProduct {
		for _, o := range f.orders {
			for _, it := range o.Items {
				if it.Resource == ref {
					c.Confirmed += it.Quantity
				}
			}
		}
		return c, nil
	}
	for _, r := range f.reservations {
		if r.Resource != ref || r.Cancelled {
			continue
		}
		if r.CheckedOut() {
			c.Confirmed += r.Quantity
		} else if !skip[r.ID] {
			c.Pending += r.Quantity
		}
	}
	return c, nil
}

func (f *fakeStore) SaveCapacity(_ context.Context, res domain.Resource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := res.(type) {
	case *domain.Product:
		p := f.products[v.ID]
		p.Stock = v.Stock
		p.InStock = v.InStock
		f.products[v.ID] = p
	case *domain.Session:
		s := f.sessions[v.ID]
		s.CapacityCurrent = v.CapacityCurrent
		s.Available = v.Available
		f.sessions[v.ID] = s
	}
	return nil
}

// ReservationRepository

func (f *fakeStore) FindOpen(_ context.Context, ownerID string, ref domain.ResourceRef, includeCheckedOut bool) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.OwnerID != ownerID || r.Resource != ref || r.Cancelled {
			continue
		}
		if r.CheckedOut() && !includeCheckedOut {
			continue
		}
		found := r
		return &found, nil
	}
	return nil, nil
}

func (f *fakeStore) Get(_ context.Context, ownerID, id string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.OwnerID != ownerID {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return r, nil
}

func (f *fakeStore) GetForUpdate(ctx context.Context, ownerID, id string) (domain.Reservation, error) {
	return f.Get(ctx, ownerID, id)
}

func (f *fakeStore) Create(_ context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations[r.ID] = r
	return nil
}

func (f *fakeStore) UpdateQuantity(_ context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	r.Quantity = quantity
	f.reservations[id] = r
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reservations[id]; !ok {
		return domain.ErrReservationNotFound
	}
	delete(f.reservations, id)
	return nil
}

func (f *fakeStore) MarkCancelled(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reservations[id]
	r.Cancelled = true
	f.reservations[id] = r
	return nil
}

func sortReservations(rs []domain.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}

func (f *fakeStore) ListActive(_ context.Context, ownerID string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.OwnerID == ownerID && r.Active() {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (f *fakeStore) SetSelected(_ context.Context, ownerID, id string, selected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.OwnerID != ownerID {
		return domain.ErrReservationNotFound
	}
	r.Selected = selected
	f.reservations[id] = r
	return nil
}

func (f *fakeStore) SetSelectedAll(_ context.Context, ownerID string, selected bool) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id, r := range f.reservations {
		if r.OwnerID != ownerID || !r.Active() || !r.Resource.Kind.CartStyle() || r.Selected == selected {
			continue
		}
		r.Selected = selected
		f.reservations[id] = r
		n++
	}
	return n, nil
}

// CheckoutRepository

func (f *fakeStore) ListSelected(_ context.Context, ownerID string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.OwnerID == ownerID && r.Selected && !r.Cancelled && r.Resource.Kind.CartStyle() {
			out = append(out, r)
		}
	}
	sortReservations(out)
	return out, nil
}

func (f *fakeStore) LockReservations(_ context.Context, ownerID string, ids []string) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, id := range ids {
		if r, ok := f.reservations[id]; ok && r.OwnerID == ownerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetOrder(_ context.Context, ownerID, id string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok || o.OwnerID != ownerID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order domain.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failCreateOrder; err != nil {
		f.failCreateOrder = nil
		return err
	}
	for _, it := range order.Items {
		if it.ReservationID == nil {
			continue
		}
		for _, o := range f.orders {
			for _, existing := range o.Items {
				if existing.ReservationID != nil && *existing.ReservationID == *it.ReservationID {
					return domain.ErrAlreadyCheckedOut
				}
			}
		}
	}
	f.orders[order.ID] = order
	return nil
}

func (f *fakeStore) MarkCheckedOut(_ context.Context, ids []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		r := f.reservations[id]
		for _, o := range f.orders {
			for _, it := range o.Items {
				if it.ReservationID != nil && *it.ReservationID == id {
					itemID, orderID := it.ID, o.ID
					r.OrderItemID = &itemID
					r.OrderID = &orderID
				}
			}
		}
		f.reservations[id] = r
	}
	return nil
}

func (f *fakeStore) DeleteReservations(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.reservations, id)
	}
	return nil
}

// HistoryRepository

func (f *fakeStore) ListOrders(_ context.Context, ownerID string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListBookings(_ context.Context, ownerID string) ([]domain.BookingEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.BookingEntry
	for _, o := range f.orders {
		if o.OwnerID != ownerID || o.Kind != domain.OrderKindBooking {
			continue
		}
		for _, it := range o.Items {
			e := domain.BookingEntry{
				OrderID:     o.ID,
				ItemID:      it.ID,
				SessionID:   it.Resource.ID,
				Title:       it.NameSnapshot,
				Instructor:  f.sessions[it.Resource.ID].Instructor,
				ScheduledAt: it.ScheduledAt,
				UnitPrice:   it.UnitPrice,
				Quantity:    it.Quantity,
				OrderedAt:   o.CreatedAt,
			}
			if it.ReservationID != nil {
				e.Cancelled = f.reservations[*it.ReservationID].Cancelled
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// CatalogRepository

func (f *fakeStore) CreateProduct(_ context.Context, p domain.Product) error {
	f.addProduct(p)
	return nil
}

func (f *fakeStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for _, p := range f.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s domain.Session) error {
	f.addSession(s)
	return nil
}

func (f *fakeStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// EventWriter

func (f *fakeStore) Enqueue(_ context.Context, ev outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

type fakeCounters struct {
	mu     sync.Mutex
	values map[domain.ResourceRef]int
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{values: map[domain.ResourceRef]int{}}
}

func (c *fakeCounters) StoreRemaining(_ context.Context, ref domain.ResourceRef, remaining int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[ref] = remaining
	return nil
}

func (c *fakeCounters) get(ref domain.ResourceRef) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[ref]
	return v, ok
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
