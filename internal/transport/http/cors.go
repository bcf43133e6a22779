package http

import (
	"net/http"
	"strconv"
	"strings"
)

// corsMethods covers every verb the router mounts: PATCH adjusts a cart line
// and DELETE releases it or clears the selection.
var corsMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// corsHeaders are the request headers a browser client may send. Every
// owner-scoped route needs OwnerHeader.
var corsHeaders = []string{"Content-Type", OwnerHeader}

const corsMaxAge = 600

type corsPolicy struct {
	any     bool
	origins map[string]struct{}
	methods map[string]struct{}
}

func newCORSPolicy(origins []string) corsPolicy {
	p := corsPolicy{
		origins: make(map[string]struct{}, len(origins)),
		methods: make(map[string]struct{}, len(corsMethods)),
	}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	for _, m := range corsMethods {
		p.methods[m] = struct{}{}
	}
	return p
}

func (p corsPolicy) allowsOrigin(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p corsPolicy) allowsMethod(method string) bool {
	_, ok := p.methods[strings.ToUpper(strings.TrimSpace(method))]
	return ok
}

// CORS answers preflights for the configured origins and tags actual
// responses with the matching Allow-Origin. Requests without an Origin pass
// straight through. A preflight from an unknown origin, or for a verb the
// router never serves, gets 403.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	policy := newCORSPolicy(allowedOrigins)
	methods := strings.Join(corsMethods, ", ")
	headers := strings.Join(corsHeaders, ", ")
	maxAge := strconv.Itoa(corsMaxAge)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		requested := r.Header.Get("Access-Control-Request-Method")
		preflight := r.Method == http.MethodOptions && requested != ""

		if !policy.allowsOrigin(origin) {
			if preflight {
				writeError(w, http.StatusForbidden, codeForbidden, "origin not allowed")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		if policy.any {
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}

		if !preflight {
			next.ServeHTTP(w, r)
			return
		}

		h.Add("Vary", "Access-Control-Request-Method")
		h.Add("Vary", "Access-Control-Request-Headers")
		if !policy.allowsMethod(requested) {
			writeError(w, http.StatusForbidden, codeForbidden, "method not allowed for cross-origin requests")
			return
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Max-Age", maxAge)
		w.WriteHeader(http.StatusNoContent)
	})
}
