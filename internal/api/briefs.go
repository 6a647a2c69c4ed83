package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/store"
)

// BriefHandler serves the archive of finalized briefs.
type BriefHandler struct {
	repo store.Repository
}

// NewBriefHandler creates a brief handler.
func NewBriefHandler(repo store.Repository) *BriefHandler {
	return &BriefHandler{repo: repo}
}

// RegisterRoutes registers brief routes.
func (h *BriefHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/briefs", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})
}

// List returns archived briefs, newest first.
func (h *BriefHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		Fail(w, err)
		return
	}
	briefs, err := h.repo.ListBriefs(r.Context(), limit, offset)
	if err != nil {
		Fail(w, apperrors.NewInternal(err))
		return
	}
	if briefs == nil {
		briefs = []store.BriefSummary{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"briefs": briefs,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns one archived brief with its transcript.
func (h *BriefHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	b, err := h.repo.GetBrief(r.Context(), id)
	if err != nil {
		Fail(w, apperrors.NewInternal(err))
		return
	}
	if b == nil {
		Fail(w, apperrors.NewNotFound(id))
		return
	}
	JSON(w, http.StatusOK, b)
}
