package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Services groups the dependencies the router dispatches to. Remaining and
// DB are optional.
type Services struct {
	Reservations ReservationAPI
	Selection    SelectionAPI
	Checkout     CheckoutAPI
	History      HistoryAPI
	Catalog      CatalogAPI
	Remaining    RemainingReader
	DB           Pinger
}

// NewRouter builds the full HTTP surface wrapped in CORS and request logging.
func NewRouter(svc Services, log *slog.Logger, corsOrigins []string) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	r := chi.NewRouter()
	r.NotFound(NotFoundHandler().ServeHTTP)
	r.MethodNotAllowed(MethodNotAllowedHandler().ServeHTTP)

	r.Get("/health", HandleHealth(svc.DB))

	r.Group(func(r chi.Router) {
		r.Use(RequireOwner)

		r.Post("/reservations", HandleReserve(svc.Reservations, log))
		r.Get("/reservations", HandleListReservations(svc.Reservations, log))
		r.Patch("/reservations/{id}", HandleAdjustReservation(svc.Reservations, log))
		r.Delete("/reservations/{id}", HandleReleaseReservation(svc.Reservations, log))
		r.Post("/reservations/{id}/cancel", HandleCancelReservation(svc.Reservations, log))

		r.Get("/selection", HandleSelectionSummary(svc.Selection, log))
		r.Post("/selection/all", HandleSelectAll(svc.Selection, log, true))
		r.Delete("/selection/all", HandleSelectAll(svc.Selection, log, false))
		r.Put("/selection/{id}", HandleToggleSelection(svc.Selection, log))

		r.Post("/checkout", HandleCheckout(svc.Checkout, log))
		r.Post("/checkout/{id}", HandleCheckout(svc.Checkout, log))

		r.Get("/orders", HandleListOrders(svc.History, log))
		r.Get("/orders/{id}", HandleGetOrder(svc.History, log))
		r.Get("/bookings", HandleListBookings(svc.History, log))
	})

	if svc.Catalog != nil {
		r.Handle("/admin/products", HandleAdminProducts(svc.Catalog, log))
		r.Handle("/admin/sessions", HandleAdminSessions(svc.Catalog, svc.Remaining, log))
	}

	return RequestLogger(CORS(corsOrigins, r), log)
}
