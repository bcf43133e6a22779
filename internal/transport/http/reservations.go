package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/domain"
)

// ReservationAPI is what the reservation endpoints need from the coordinator.
type ReservationAPI interface {
	Reserve(ctx context.Context, in app.ReserveInput) (app.ReserveResult, error)
	AdjustQuantity(ctx context.Context, ownerID, id string, quantity int) (app.AdjustResult, error)
	Release(ctx context.Context, ownerID, id string) error
	Cancel(ctx context.Context, ownerID, id string) error
	ListActive(ctx context.Context, ownerID string) (app.ActiveView, error)
}

type reserveRequest struct {
	ResourceKind string `json:"resource_kind"`
	ResourceID   string `json:"resource_id"`
	Quantity     *int   `json:"quantity"`
	DaySelected  *int   `json:"day_selected"`
}

type reserveResponse struct {
	Reservation reservationResponse `json:"reservation"`
	Outcome     string              `json:"outcome"`
	Capped      bool                `json:"capped,omitempty"`
}

// HandleReserve creates or merges a reservation. New rows answer 201; merges
// and duplicates answer 200 with the existing row.
func HandleReserve(svc ReservationAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reserveRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ResourceKind == "" || req.ResourceID == "" {
			writeErrorBody(w, http.StatusBadRequest, errorResponse{
				Error: "resource_kind and resource_id are required",
				Code:  codeMissingRequiredField,
				Field: "resource_kind,resource_id",
			})
			return
		}
		qty := 1
		if req.Quantity != nil {
			qty = *req.Quantity
		}

		res, err := svc.Reserve(r.Context(), app.ReserveInput{
			OwnerID:     ownerFrom(r.Context()),
			Resource:    domain.ResourceRef{Kind: domain.ResourceKind(req.ResourceKind), ID: req.ResourceID},
			Quantity:    qty,
			DaySelected: req.DaySelected,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		status := http.StatusOK
		if res.Outcome == domain.OutcomeCreated {
			status = http.StatusCreated
		}
		writeJSON(w, status, reserveResponse{
			Reservation: toReservation(res.Reservation),
			Outcome:     string(res.Outcome),
			Capped:      res.Capped,
		})
	}
}

type activeResponse struct {
	Reservations []reservationResponse `json:"reservations"`
	Summary      summaryResponse       `json:"summary"`
}

func HandleListReservations(svc ReservationAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := svc.ListActive(r.Context(), ownerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		resp := activeResponse{
			Reservations: make([]reservationResponse, 0, len(view.Reservations)),
			Summary:      toSummary(view.Summary),
		}
		for _, res := range view.Reservations {
			resp.Reservations = append(resp.Reservations, toReservation(res))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type adjustRequest struct {
	Quantity *int `json:"quantity"`
}

type adjustResponse struct {
	Reservation *reservationResponse `json:"reservation,omitempty"`
	Released    bool                 `json:"released"`
}

func HandleAdjustReservation(svc ReservationAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req adjustRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Quantity == nil {
			writeErrorBody(w, http.StatusBadRequest, errorResponse{
				Error: "quantity is required",
				Code:  codeMissingRequiredField,
				Field: "quantity",
			})
			return
		}

		res, err := svc.AdjustQuantity(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), *req.Quantity)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		resp := adjustResponse{Released: res.Released}
		if !res.Released {
			view := toReservation(res.Reservation)
			resp.Reservation = &view
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleReleaseReservation(svc ReservationAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Release(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleCancelReservation cancels a booking. Repeating it is harmless.
func HandleCancelReservation(svc ReservationAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Cancel(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
