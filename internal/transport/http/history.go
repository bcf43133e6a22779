package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chefkeenan/Lume/internal/domain"
)

type HistoryAPI interface {
	ListOrders(ctx context.Context, ownerID string) ([]domain.Order, error)
	GetOrder(ctx context.Context, ownerID, id string) (domain.Order, error)
	ListBookings(ctx context.Context, ownerID string) ([]domain.BookingEntry, error)
}

func HandleListOrders(svc HistoryAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := svc.ListOrders(r.Context(), ownerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		resp := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, toOrder(o))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetOrder(svc HistoryAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := svc.GetOrder(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrder(order))
	}
}

func HandleListBookings(svc HistoryAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.ListBookings(r.Context(), ownerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		resp := make([]bookingResponse, 0, len(entries))
		for _, e := range entries {
			resp = append(resp, toBooking(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
