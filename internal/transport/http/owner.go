package http

import (
	"context"
	"net/http"
	"strings"
)

// OwnerHeader carries the caller's identity. Authentication happens upstream.
const OwnerHeader = "X-Owner-ID"

type ownerKey struct{}

// RequireOwner rejects requests without an owner id and stores it in the
// request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeError(w, http.StatusUnauthorized, codeOwnerRequired, OwnerHeader+" header required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}
