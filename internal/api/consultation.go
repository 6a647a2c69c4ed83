package api

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"github.com/ashureev/campaign-consult/internal/consult"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/identity"
)

// IdempotencyHeader lets clients retry a turn without applying it twice.
const IdempotencyHeader = "Idempotency-Key"

const (
	defaultBriefPage = 20
	maxBriefPage     = 100
)

// ConsultationHandler serves the consultation endpoints.
type ConsultationHandler struct {
	svc *consult.Service
}

// NewConsultationHandler creates a consultation handler.
func NewConsultationHandler(svc *consult.Service) *ConsultationHandler {
	return &ConsultationHandler{svc: svc}
}

// RegisterRoutes registers consultation routes.
func (h *ConsultationHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/consultations", func(r chi.Router) {
		r.Post("/", h.Start)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Status)
			r.Delete("/", h.Cancel)
			r.Post("/turns", h.Reply)
			r.Get("/summary", h.Summary)
			r.Get("/analytics", h.Analytics)
		})
	})
	r.Get("/api/stats", h.Stats)
}

type startRequest struct {
	Message string `json:"message"`
}

type replyRequest struct {
	Answer         *string `json:"answer"`
	IdempotencyKey string  `json:"idempotency_key,omitempty"`
}

// Start opens a consultation and returns the first question.
func (h *ConsultationHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(w, r, &req); err != nil {
		Fail(w, err)
		return
	}
	out, err := h.svc.Start(r.Context(), req.Message, identity.Client(r, "http"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusCreated, out)
}

// Reply applies one answer. The Idempotency-Key header takes precedence over
// the body field.
func (h *ConsultationHandler) Reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := decode(w, r, &req); err != nil {
		Fail(w, err)
		return
	}
	if req.Answer == nil {
		Fail(w, apperrors.NewInvalidRequest("answer is required"))
		return
	}
	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	out, err := h.svc.Reply(r.Context(), chi.URLParam(r, "id"), *req.Answer, key)
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

// Status describes a consultation without changing it.
func (h *ConsultationHandler) Status(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Status(chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, out)
}

// Summary returns the brief summary as markdown, or as HTML with ?format=html.
func (h *ConsultationHandler) Summary(w http.ResponseWriter, r *http.Request) {
	md, err := h.svc.Summary(chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(md))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(renderMarkdown(md)))
	default:
		Fail(w, apperrors.NewInvalidRequest("format must be markdown or html"))
	}
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(md) + "</pre>")
	}
	return template.HTML(buf.String())
}

// Analytics describes one consultation.
func (h *ConsultationHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Analytics(chi.URLParam(r, "id"))
	if err != nil {
		Fail(w, err)
		return
	}
	JSON(w, http.StatusOK, a)
}

// Cancel ends a consultation.
func (h *ConsultationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Cancel(chi.URLParam(r, "id")); err != nil {
		Fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats describes all live consultations.
func (h *ConsultationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.svc.Stats())
}

// pageParams parses ?limit and ?offset.
func pageParams(r *http.Request) (limit, offset int, err error) {
	limit, offset = defaultBriefPage, 0
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return 0, 0, apperrors.NewInvalidRequest("limit must be a positive integer")
		}
		if limit > maxBriefPage {
			limit = maxBriefPage
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, apperrors.NewInvalidRequest("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}
