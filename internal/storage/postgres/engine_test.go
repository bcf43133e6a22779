package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/clock"
	"github.com/chefkeenan/Lume/internal/domain"
	"github.com/chefkeenan/Lume/internal/storage/postgres"
	"github.com/chefkeenan/Lume/internal/testutil"
)

type engine struct {
	pool         *pgxpool.Pool
	reservations *app.ReservationService
	checkout     *app.CheckoutService
	history      *app.HistoryService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	tx := postgres.NewTxManager(pool)
	clk := clock.NewSystem()
	ledger := app.NewCapacityLedger(postgres.NewLedgerRepository(pool))
	reserves := postgres.NewReservationRepository(pool)
	return &engine{
		pool:         pool,
		reservations: app.NewReservationService(tx, ledger, reserves, clk),
		checkout: app.NewCheckoutService(tx, ledger, reserves, postgres.NewCheckoutRepository(pool), clk,
			app.WithEventWriter(postgres.NewOutboxStore(pool))),
		history: app.NewHistoryService(postgres.NewHistoryRepository(pool), clk, time.UTC),
	}
}

func (e *engine) count(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, e.pool.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}

func testAddress() *domain.Address {
	return &domain.Address{
		ReceiverName: "Keenan",
		Line1:        "Jl. Margonda Raya 1",
		City:         "Depok",
		Province:     "Jawa Barat",
		PostalCode:   "16424",
		Country:      "Indonesia",
	}
}

func TestEngine_LastSeatGoesToOneOwner(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sessionID := testutil.InsertSession(t, ctx, e.pool, "Pilates Core", 1, "75000", time.Now().Add(72*time.Hour))
	ref := domain.ResourceRef{Kind: domain.KindSession, ID: sessionID}

	const owners = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  int
		rejected int
	)
	for i := 0; i < owners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.reservations.Reserve(ctx, app.ReserveInput{
				OwnerID:  fmt.Sprintf("owner-%d", i),
				Resource: ref,
				Quantity: 1,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, domain.ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, owners-1, rejected)
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM reservations WHERE resource_id = $1 AND NOT is_cancelled`, sessionID))
}

func TestEngine_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	productID := testutil.InsertProduct(t, ctx, e.pool, "Yoga Mat", 3, "150000")
	ref := domain.ResourceRef{Kind: domain.KindProduct, ID: productID}

	const owners = 6
	for i := 0; i < owners; i++ {
		_, err := e.reservations.Reserve(ctx, app.ReserveInput{
			OwnerID:  fmt.Sprintf("owner-%d", i),
			Resource: ref,
			Quantity: 1,
		})
		require.NoError(t, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for i := 0; i < owners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.checkout.Finalize(ctx, app.FinalizeInput{
				OwnerID: fmt.Sprintf("owner-%d", i),
				Address: testAddress(),
			})
			if err != nil {
				if !errors.Is(err, domain.ErrCapacityExceeded) && !errors.Is(err, domain.ErrResourceExpired) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			mu.Lock()
			if res.Outcome == app.FinalizeCommitted {
				committed++
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, committed)
	assert.Equal(t, 3, e.count(t, `SELECT COALESCE(SUM(quantity), 0) FROM order_items WHERE resource_id = $1`, productID))
	assert.Equal(t, 0, e.count(t, `SELECT stock FROM products WHERE id = $1`, productID))
	assert.Equal(t, 3, e.count(t, `SELECT COUNT(*) FROM outbox`))
}

func TestEngine_DuplicateFinalizeWritesOneOrder(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sessionID := testutil.InsertSession(t, ctx, e.pool, "Pilates Core", 5, "75000", time.Now().Add(72*time.Hour))

	day := 0
	r, err := e.reservations.Reserve(ctx, app.ReserveInput{
		OwnerID:     "owner-1",
		Resource:    domain.ResourceRef{Kind: domain.KindSession, ID: sessionID},
		Quantity:    1,
		DaySelected: &day,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]app.FinalizeResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.checkout.Finalize(ctx, app.FinalizeInput{OwnerID: "owner-1", ReservationID: r.Reservation.ID})
			if assert.NoError(t, err) {
				results[i] = res
			}
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, res := range results {
		if res.Outcome == app.FinalizeCommitted {
			committed++
		}
		assert.Equal(t, results[0].Order.ID, res.Order.ID)
	}
	assert.Equal(t, 1, committed)
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 1, e.count(t, `SELECT capacity_current FROM class_sessions WHERE id = $1`, sessionID))

	bookings, err := e.history.ListBookings(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, "Pilates Core (Monday)", bookings[0].Title)
	assert.Equal(t, domain.BookingUpcoming, bookings[0].Status)
}

func TestEngine_FailedCheckoutLeavesNoTrace(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	plenty := testutil.InsertProduct(t, ctx, e.pool, "Yoga Block", 10, "50000")
	scarce := testutil.InsertProduct(t, ctx, e.pool, "Yoga Strap", 2, "40000")

	for _, id := range []string{plenty, scarce} {
		_, err := e.reservations.Reserve(ctx, app.ReserveInput{
			OwnerID:  "owner-1",
			Resource: domain.ResourceRef{Kind: domain.KindProduct, ID: id},
			Quantity: 2,
		})
		require.NoError(t, err)
	}
	// someone else buys one strap first
	_, err := e.pool.Exec(ctx, `UPDATE products SET stock = 1 WHERE id = $1`, scarce)
	require.NoError(t, err)

	_, err = e.checkout.Finalize(ctx, app.FinalizeInput{OwnerID: "owner-1", Address: testAddress()})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)

	assert.Equal(t, 0, e.count(t, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 0, e.count(t, `SELECT COUNT(*) FROM outbox`))
	assert.Equal(t, 10, e.count(t, `SELECT stock FROM products WHERE id = $1`, plenty))
	assert.Equal(t, 2, e.count(t, `SELECT COUNT(*) FROM reservations WHERE owner_id = 'owner-1' AND checked_out_at IS NULL`))
}

func TestEngine_CancelledBookingFreesLastSeat(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	sessionID := testutil.InsertSession(t, ctx, e.pool, "Pilates Core", 1, "75000", time.Now().Add(72*time.Hour))
	ref := domain.ResourceRef{Kind: domain.KindSession, ID: sessionID}

	r, err := e.reservations.Reserve(ctx, app.ReserveInput{OwnerID: "alice", Resource: ref, Quantity: 1})
	require.NoError(t, err)
	_, err = e.checkout.Finalize(ctx, app.FinalizeInput{OwnerID: "alice", ReservationID: r.Reservation.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, e.count(t, `SELECT COUNT(*) FROM class_sessions WHERE id = $1 AND available`, sessionID))

	require.NoError(t, e.reservations.Cancel(ctx, "alice", r.Reservation.ID))
	assert.Equal(t, 1, e.count(t, `SELECT COUNT(*) FROM class_sessions WHERE id = $1 AND available`, sessionID))
	assert.Equal(t, 0, e.count(t, `SELECT capacity_current FROM class_sessions WHERE id = $1`, sessionID))

	next, err := e.reservations.Reserve(ctx, app.ReserveInput{OwnerID: "bob", Resource: ref, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCreated, next.Outcome)
}
