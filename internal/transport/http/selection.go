package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/domain"
)

type SelectionAPI interface {
	Toggle(ctx context.Context, ownerID, id string, selected bool) (domain.Reservation, error)
	SelectAll(ctx context.Context, ownerID string) (int, error)
	UnselectAll(ctx context.Context, ownerID string) (int, error)
	Summary(ctx context.Context, ownerID string) (app.SelectionSummary, error)
}

type toggleRequest struct {
	Selected *bool `json:"selected"`
}

func HandleToggleSelection(svc SelectionAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toggleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Selected == nil {
			writeErrorBody(w, http.StatusBadRequest, errorResponse{
				Error: "selected is required",
				Code:  codeMissingRequiredField,
				Field: "selected",
			})
			return
		}

		res, err := svc.Toggle(r.Context(), ownerFrom(r.Context()), chi.URLParam(r, "id"), *req.Selected)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservation(res))
	}
}

type bulkSelectionResponse struct {
	Changed int             `json:"changed"`
	Summary summaryResponse `json:"summary"`
}

// HandleSelectAll selects (or, with selected=false, unselects) every open
// cart line and returns the fresh summary.
func HandleSelectAll(svc SelectionAPI, log *slog.Logger, selected bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerFrom(r.Context())
		var (
			n   int
			err error
		)
		if selected {
			n, err = svc.SelectAll(r.Context(), owner)
		} else {
			n, err = svc.UnselectAll(r.Context(), owner)
		}
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		sum, err := svc.Summary(r.Context(), owner)
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, bulkSelectionResponse{Changed: n, Summary: toSummary(sum)})
	}
}

func HandleSelectionSummary(svc SelectionAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sum, err := svc.Summary(r.Context(), ownerFrom(r.Context()))
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toSummary(sum))
	}
}
