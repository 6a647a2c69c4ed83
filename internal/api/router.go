package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/campaign-consult/internal/consult"
	"github.com/ashureev/campaign-consult/internal/identity"
	"github.com/ashureev/campaign-consult/internal/middleware"
	"github.com/ashureev/campaign-consult/internal/store"
)

// RouterConfig holds everything the HTTP surface serves.
type RouterConfig struct {
	Service        *consult.Service
	Repo           store.Repository // nil disables /api/briefs
	Health         *HealthHandler
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	IsDevelopment  bool

	Metrics http.Handler // served on /metrics
	Stream  http.Handler // served on /ws/consultations
	SPA     http.Handler // catch-all for the embedded frontend
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment))

	if cfg.Health != nil {
		cfg.Health.RegisterHealth(r)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		if cfg.Limiter != nil {
			r.Use(cfg.Limiter.Middleware)
		}
		NewConsultationHandler(cfg.Service).RegisterRoutes(r)
		if cfg.Repo != nil {
			NewBriefHandler(cfg.Repo).RegisterRoutes(r)
		}
		if cfg.Stream != nil {
			r.Handle("/ws/consultations", cfg.Stream)
		}
	})

	if cfg.SPA != nil {
		r.Handle("/*", cfg.SPA)
	}
	return r
}
