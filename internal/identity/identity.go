// Package identity provides anonymous per-device client identity.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"time"

	"github.com/ashureev/campaign-consult/internal/session"
)

const (
	ClientCookieName   = "consult_client_id"
	clientCookieMaxAge = 30 * 24 * time.Hour
)

type contextKey int

const clientIDKey contextKey = iota

var clientIDPattern = regexp.MustCompile(`^anon_[a-f0-9]{32}$`)

// ClientIDFromContext extracts the anonymous client ID from the request context.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClientID returns ctx carrying id.
func WithClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey, id)
}

func generateClientID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate client id: %w", err)
	}
	return "anon_" + hex.EncodeToString(buf), nil
}

func isValidClientID(id string) bool {
	return clientIDPattern.MatchString(id)
}

func setClientCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     ClientCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(clientCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(clientCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateClientID(w http.ResponseWriter, r *http.Request, isDev bool) (string, error) {
	if c, err := r.Cookie(ClientCookieName); err == nil && isValidClientID(c.Value) {
		setClientCookie(w, c.Value, isDev)
		return c.Value, nil
	}

	id, err := generateClientID()
	if err != nil {
		return "", err
	}
	setClientCookie(w, id, isDev)
	return id, nil
}

// Middleware injects an anonymous per-device client ID, issuing a cookie on first visit.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := getOrCreateClientID(w, r, isDev)
			if err != nil {
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClientID(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Client describes the caller of r for session bookkeeping.
func Client(r *http.Request, channel string) session.Client {
	return session.Client{
		ID:        ClientIDFromContext(r.Context()),
		RemoteIP:  IPFromRequest(r),
		UserAgent: r.UserAgent(),
		Channel:   channel,
	}
}
