package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/domain"
)

type CheckoutAPI interface {
	Finalize(ctx context.Context, in app.FinalizeInput) (app.FinalizeResult, error)
}

type checkoutRequest struct {
	Address *domain.Address `json:"address"`
	Notes   string          `json:"notes"`
}

type checkoutResponse struct {
	Order   orderResponse `json:"order"`
	Outcome string        `json:"outcome"`
}

// HandleCheckout finalizes the owner's selection, or the reservation named
// in the path when there is one. A repeated finalize answers 200 with the
// order written the first time.
func HandleCheckout(svc CheckoutAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkoutRequest
		if !decodeOptionalJSON(w, r, &req) {
			return
		}

		res, err := svc.Finalize(r.Context(), app.FinalizeInput{
			OwnerID:       ownerFrom(r.Context()),
			ReservationID: chi.URLParam(r, "id"),
			Address:       req.Address,
			Notes:         req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, log, err)
			return
		}

		status := http.StatusOK
		if res.Outcome == app.FinalizeCommitted {
			status = http.StatusCreated
		}
		writeJSON(w, status, checkoutResponse{Order: toOrder(res.Order), Outcome: string(res.Outcome)})
	}
}
