package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/identity"
	"github.com/ashureev/campaign-consult/internal/metrics"
)

// limiterIdleTTL is how long an unused client limiter is kept.
const limiterIdleTTL = 10 * time.Minute

// RateLimiter limits requests per client with a token bucket each.
type RateLimiter struct {
	limiters *cache.Cache
	rps      rate.Limit
	burst    int
	metrics  *metrics.Metrics
}

// NewRateLimiter allows rps requests per second per client with the given burst.
// Idle limiters are only dropped by Prune.
func NewRateLimiter(rps float64, burst int, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(limiterIdleTTL, 0),
		rps:      rate.Limit(rps),
		burst:    burst,
		metrics:  m,
	}
}

// clientKey prefers the anonymous client id and falls back to the remote IP.
// An id minted for this very request is ignored, otherwise a client that drops
// its cookie would get a fresh bucket every time.
func clientKey(r *http.Request) string {
	if id := identity.ClientIDFromContext(r.Context()); id != "" {
		if c, err := r.Cookie(identity.ClientCookieName); err == nil && c.Value == id {
			return id
		}
	}
	return "ip:" + identity.IPFromRequest(r)
}

func (l *RateLimiter) limiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Get(key); ok {
		lim := v.(*rate.Limiter)
		l.limiters.Set(key, lim, cache.DefaultExpiration)
		return lim
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	if err := l.limiters.Add(key, lim, cache.DefaultExpiration); err != nil {
		// Lost a race with another request from the same client.
		if v, ok := l.limiters.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return lim
}

// Allow reports whether a request from key may proceed now, and if not, how
// long the client should wait.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	r := l.limiter(key).Reserve()
	if !r.OK() {
		return false, time.Second
	}
	if d := r.Delay(); d > 0 {
		r.Cancel()
		return false, d
	}
	return true, 0
}

// Prune drops limiters of clients that have gone quiet.
func (l *RateLimiter) Prune() {
	l.limiters.DeleteExpired()
}

// Len returns the number of tracked clients.
func (l *RateLimiter) Len() int {
	return l.limiters.ItemCount()
}

// Middleware rejects requests over the limit with 429 RATE_LIMITED.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		ok, wait := l.Allow(key)
		if !ok {
			l.metrics.RateLimitHit()
			cErr := apperrors.NewRateLimited(key)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			w.WriteHeader(cErr.Status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": cErr.Message, "code": string(cErr.Code)})
			return
		}
		next.ServeHTTP(w, r)
	})
}
