// Package middleware provides HTTP middleware for the consultation API.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	corsMethods = "GET, POST, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Idempotency-Key"
	corsMaxAge  = 600 // seconds
)

type originPolicy struct {
	any    bool
	listed map[string]bool
}

func newOriginPolicy(origins []string) originPolicy {
	p := originPolicy{listed: make(map[string]bool, len(origins))}
	for _, o := range origins {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.any = true
		default:
			p.listed[o] = true
		}
	}
	return p
}

// allow reports whether origin may call the API, and whether it may do so
// with the client cookie.
func (p originPolicy) allow(origin string) (ok, credentials bool) {
	switch {
	case origin == "":
		return false, false
	case p.listed[origin]:
		return true, true
	default:
		return p.any, false
	}
}

// CORS admits cross-origin calls from allowedOrigins. "*" admits every
// origin without credentials; only listed origins may send the client cookie.
// Preflights are answered here and never reach next.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	policy := newOriginPolicy(allowedOrigins)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			ok, credentials := policy.allow(origin)
			if ok {
				h.Set("Access-Control-Allow-Origin", origin)
				if credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if ok {
					h.Set("Access-Control-Allow-Methods", corsMethods)
					h.Set("Access-Control-Allow-Headers", corsHeaders)
					h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
