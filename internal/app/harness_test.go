package app

import (
	"testing"
	"time"

	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/domain"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	store        *fakeStore
	clock        *clock.Manual
	counters     *fakeCounters
	ledger       *CapacityLedger
	reservations *ReservationService
	selection    *SelectionService
	checkout     *CheckoutService
	history      *HistoryService
	catalog      *CatalogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newFakeStore()
	clk := clock.NewManual(testNow)
	counters := newFakeCounters()
	ledger := NewCapacityLedger(store)
	return &harness{
		store:        store,
		clock:        clk,
		counters:     counters,
		ledger:       ledger,
		reservations: NewReservationService(store, ledger, store, clk, WithReservationCounters(counters)),
		selection:    NewSelectionService(store, DefaultShippingFee),
		checkout: NewCheckoutService(store, ledger, store, store, clk,
			WithEventWriter(store), WithCheckoutCounters(counters)),
		history: NewHistoryService(store, clk, time.UTC),
		catalog: NewCatalogService(store, clk),
	}
}

func productRef(id string) domain.ResourceRef {
	return domain.ResourceRef{Kind: domain.KindProduct, ID: id}
}

func sessionRef(id string) domain.ResourceRef {
	return domain.ResourceRef{Kind: domain.KindSession, ID: id}
}

func seedProduct(h *harness, id string, stock int, price string) {
	h.store.addProduct(domain.Product{
		ID:      id,
		Name:    "Product " + id,
		Stock:   stock,
		Price:   money(price),
		InStock: stock > 0,
	})
}

func seedSession(h *harness, id string, capacity int, price string) {
	starts := testNow.Add(48 * time.Hour)
	h.store.addSession(domain.Session{
		ID:          id,
		Title:       "Yoga Flow - Mon",
		Category:    domain.CategoryWeekly,
		Instructor:  "Coach A",
		Days:        []int{0, 2},
		CapacityMax: capacity,
		Price:       money(price),
		Available:   true,
		StartsAt:    &starts,
	})
}

func validAddress() *domain.Address {
	return &domain.Address{
		ReceiverName: "Keenan",
		Line1:        "Jl. Margonda Raya 1",
		City:         "Depok",
		Province:     "Jawa Barat",
		PostalCode:   "16424",
		Country:      "Indonesia",
	}
}

func intPtr(v int) *int { return &v }
