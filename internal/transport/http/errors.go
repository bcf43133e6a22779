package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chefkeenan/Lume/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeMissingRequiredField = "missing_required_field"
	codeValidationFailed     = "validation_failed"
	codeInvalidID            = "invalid_id"
	codeInvalidKind          = "invalid_resource_kind"
	codeOwnerRequired        = "owner_required"
	codeResourceNotFound     = "resource_not_found"
	codeReservationNotFound  = "reservation_not_found"
	codeOrderNotFound        = "order_not_found"
	codeCapacityExceeded     = "capacity_exceeded"
	codeResourceExpired      = "resource_expired"
	codeDuplicate            = "duplicate_reservation"
	codeEmptySelection       = "empty_selection"
	codeAlreadyCheckedOut    = "already_checked_out"
	codeForbidden            = "forbidden"
	codeUnavailable          = "unavailable"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeErrorBody(w, status, errorResponse{Error: msg, Code: code})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(body)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// statusFor maps a service error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	var verr domain.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Message == "required" {
			return http.StatusBadRequest, codeMissingRequiredField
		}
		return http.StatusBadRequest, codeValidationFailed
	case errors.Is(err, domain.ErrOwnerRequired):
		return http.StatusUnauthorized, codeOwnerRequired
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, codeInvalidID
	case errors.Is(err, domain.ErrInvalidKind):
		return http.StatusBadRequest, codeInvalidKind
	case errors.Is(err, domain.ErrResourceNotFound):
		return http.StatusNotFound, codeResourceNotFound
	case errors.Is(err, domain.ErrReservationNotFound):
		return http.StatusNotFound, codeReservationNotFound
	case errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound, codeOrderNotFound
	case errors.Is(err, domain.ErrCapacityExceeded):
		return http.StatusConflict, codeCapacityExceeded
	case errors.Is(err, domain.ErrResourceExpired):
		return http.StatusConflict, codeResourceExpired
	case errors.Is(err, domain.ErrDuplicateReservation):
		return http.StatusConflict, codeDuplicate
	case errors.Is(err, domain.ErrAlreadyCheckedOut):
		return http.StatusConflict, codeAlreadyCheckedOut
	case errors.Is(err, domain.ErrEmptySelection):
		return http.StatusUnprocessableEntity, codeEmptySelection
	}
	return http.StatusInternalServerError, codeInternalError
}

// writeServiceError renders err for the client. Unmapped errors are logged
// and reported as a bare internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, code, "internal error")
		return
	}

	body := errorResponse{Error: err.Error(), Code: code}
	var verr domain.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}
	writeErrorBody(w, status, body)
}
