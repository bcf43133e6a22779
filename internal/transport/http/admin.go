package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chefkeenan/Lume/internal/app"
	"github.com/chefkeenan/Lume/internal/domain"
)

// CatalogAPI is the minimal interface needed for the admin catalog endpoints.
type CatalogAPI interface {
	CreateProduct(ctx context.Context, in app.CreateProductInput) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	CreateSession(ctx context.Context, in app.CreateSessionInput) (domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
}

// RemainingReader returns the last published remaining capacity, if any.
type RemainingReader interface {
	Remaining(ctx context.Context, ref domain.ResourceRef) (int, bool, error)
}

type createProductRequest struct {
	Name       string          `json:"name"`
	Stock      int             `json:"stock"`
	Price      decimal.Decimal `json:"price"`
	ValidFrom  string          `json:"valid_from"`
	ValidUntil string          `json:"valid_until"`
}

type createSessionRequest struct {
	Title       string          `json:"title"`
	Category    string          `json:"category"`
	Instructor  string          `json:"instructor"`
	Room        string          `json:"room"`
	Days        []int           `json:"days"`
	TimeSlot    string          `json:"time_slot"`
	CapacityMax int             `json:"capacity_max"`
	Price       decimal.Decimal `json:"price"`
	StartsAt    string          `json:"starts_at"`
	ValidFrom   string          `json:"valid_from"`
	ValidUntil  string          `json:"valid_until"`
}

// HandleAdminProducts returns an HTTP handler for product creation/listing.
func HandleAdminProducts(svc CatalogAPI, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			products, err := svc.ListProducts(r.Context())
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			resp := make([]productResponse, 0, len(products))
			for _, p := range products {
				resp = append(resp, toProduct(p))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createProductRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			times, err := parseTimes(map[string]string{"valid_from": req.ValidFrom, "valid_until": req.ValidUntil})
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			p, err := svc.CreateProduct(r.Context(), app.CreateProductInput{
				Name:       req.Name,
				Stock:      req.Stock,
				Price:      req.Price,
				ValidFrom:  times["valid_from"],
				ValidUntil: times["valid_until"],
			})
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			writeJSON(w, http.StatusCreated, toProduct(p))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// HandleAdminSessions returns an HTTP handler for session creation/listing.
// Listings include the cached remaining count when counters is set.
func HandleAdminSessions(svc CatalogAPI, counters RemainingReader, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sessions, err := svc.ListSessions(r.Context())
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			resp := make([]sessionResponse, 0, len(sessions))
			for _, s := range sessions {
				view := toSession(s)
				if counters != nil {
					n, ok, err := counters.Remaining(r.Context(), s.Ref())
					if err != nil {
						log.WarnContext(r.Context(), "remaining counter read failed", "session_id", s.ID, "err", err)
					} else if ok {
						view.Remaining = &n
					}
				}
				resp = append(resp, view)
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createSessionRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			times, err := parseTimes(map[string]string{
				"starts_at":   req.StartsAt,
				"valid_from":  req.ValidFrom,
				"valid_until": req.ValidUntil,
			})
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			s, err := svc.CreateSession(r.Context(), app.CreateSessionInput{
				Title:       req.Title,
				Category:    domain.SessionCategory(req.Category),
				Instructor:  req.Instructor,
				Room:        req.Room,
				Days:        req.Days,
				TimeSlot:    req.TimeSlot,
				CapacityMax: req.CapacityMax,
				Price:       req.Price,
				StartsAt:    times["starts_at"],
				ValidFrom:   times["valid_from"],
				ValidUntil:  times["valid_until"],
			})
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}
			writeJSON(w, http.StatusCreated, toSession(s))
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

// parseTimes parses optional RFC 3339 fields. Empty values stay nil.
func parseTimes(fields map[string]string) (map[string]*time.Time, error) {
	out := make(map[string]*time.Time, len(fields))
	for name, raw := range fields {
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, domain.NewValidationError(name, "must be an RFC 3339 timestamp")
		}
		out[name] = &t
	}
	return out, nil
}
