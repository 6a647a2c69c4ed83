package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashureev/campaign-consult/internal/consult"
	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/handoff"
	"github.com/ashureev/campaign-consult/internal/metrics"
	"github.com/ashureev/campaign-consult/internal/middleware"
	"github.com/ashureev/campaign-consult/internal/session"
	"github.com/ashureev/campaign-consult/internal/store"
)

var happyAnswers = []string{
	"artisan espresso bar downtown",
	"young professionals aged 25-35 who love specialty coffee",
	"around $2000 per month",
	"instagram and email",
}

type testServer struct {
	*httptest.Server
	repo *store.SQLiteStore
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "briefs.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	m := metrics.New()
	svc := consult.NewService(consult.ServiceConfig{
		Sessions:  session.NewManager(session.Config{Progress: consult.Completion, Metrics: m}),
		Publisher: handoff.NewArchive(repo, true),
		Metrics:   m,
	})
	h := NewRouter(RouterConfig{
		Service:        svc,
		Repo:           repo,
		Health:         NewHealthHandler(map[string]Pinger{"database": repo}, 0),
		Limiter:        limiter,
		AllowedOrigins: []string{"*"},
		IsDevelopment:  true,
		Metrics:        m.Handler(),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeOutcome(t *testing.T, resp *http.Response) consult.Outcome {
	t.Helper()
	var out consult.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func answerBody(a string) string {
	b, _ := json.Marshal(map[string]string{"answer": a})
	return string(b)
}

func TestConsultationOverHTTP(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	resp := s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decodeOutcome(t, resp)
	require.Equal(t, domain.StageGathering, out.Stage)
	require.NotNil(t, out.NextQuestion)
	id := out.SessionID
	require.True(t, strings.HasPrefix(id, session.IDPrefix), id)

	for _, a := range happyAnswers {
		resp = s.do(t, http.MethodPost, "/api/consultations/"+id+"/turns", answerBody(a), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out = decodeOutcome(t, resp)
	}
	require.Equal(t, domain.StageCompleted, out.Stage)
	require.Equal(t, 100, out.ProgressPercentage)

	resp = s.do(t, http.MethodGet, "/api/consultations/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, domain.StageCompleted, decodeOutcome(t, resp).Stage)

	resp = s.do(t, http.MethodGet, "/api/consultations/"+id+"/summary", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")

	resp = s.do(t, http.MethodGet, "/api/consultations/"+id+"/summary?format=html", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var html bytes.Buffer
	_, err := html.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, html.String(), "<h1>Campaign brief</h1>")

	resp = s.do(t, http.MethodGet, "/api/consultations/"+id+"/analytics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var a session.Analytics
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&a))
	require.Equal(t, len(happyAnswers), a.TurnCount)

	resp = s.do(t, http.MethodPost, "/api/consultations/"+id+"/turns", answerBody("one more"), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/briefs", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Briefs []store.BriefSummary `json:"briefs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Briefs, 1)
	require.Equal(t, id, list.Briefs[0].SessionID)

	resp = s.do(t, http.MethodGet, "/api/briefs/"+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b domain.Brief
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	require.Len(t, b.Transcript, len(happyAnswers))
}

func TestReplyIsIdempotent(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	out := decodeOutcome(t, s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil))
	path := "/api/consultations/" + out.SessionID + "/turns"
	hdr := map[string]string{IdempotencyHeader: "turn-1"}

	first := decodeOutcome(t, s.do(t, http.MethodPost, path, answerBody(happyAnswers[0]), hdr))
	again := decodeOutcome(t, s.do(t, http.MethodPost, path, answerBody(happyAnswers[0]), hdr))
	require.Equal(t, first, again)

	status := decodeOutcome(t, s.do(t, http.MethodGet, "/api/consultations/"+out.SessionID, "", nil))
	require.Equal(t, first.NextQuestion, status.NextQuestion)
}

func TestConsultationErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	out := decodeOutcome(t, s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil))
	id := out.SessionID

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"empty message", http.MethodPost, "/api/consultations", `{"message":"  "}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"malformed body", http.MethodPost, "/api/consultations", `{"message":`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown field", http.MethodPost, "/api/consultations", `{"msg":"hi"}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing answer", http.MethodPost, "/api/consultations/" + id + "/turns", `{}`, http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown session", http.MethodPost, "/api/consultations/consultation_nope/turns", answerBody("hi"), http.StatusNotFound, "NOT_FOUND"},
		{"unknown summary", http.MethodGet, "/api/consultations/consultation_nope/summary", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad format", http.MethodGet, "/api/consultations/" + id + "/summary?format=pdf", "", http.StatusBadRequest, "INVALID_REQUEST"},
		{"unknown brief", http.MethodGet, "/api/briefs/consultation_nope", "", http.StatusNotFound, "NOT_FOUND"},
		{"bad limit", http.MethodGet, "/api/briefs?limit=-1", "", http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.body, nil)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			var body map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestEmptyAnswerIsAccepted(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	out := decodeOutcome(t, s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil))
	resp := s.do(t, http.MethodPost, "/api/consultations/"+out.SessionID+"/turns", answerBody(""), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	next := decodeOutcome(t, resp)
	require.Equal(t, domain.StageGathering, next.Stage)
	require.NotNil(t, next.NextQuestion)
}

func TestCancelConsultation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	out := decodeOutcome(t, s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil))
	resp := s.do(t, http.MethodDelete, "/api/consultations/"+out.SessionID, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/consultations/"+out.SessionID, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st session.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, 0, st.Active)
	require.EqualValues(t, 1, st.Created)
}

func TestRateLimitedRoutes(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, middleware.NewRateLimiter(0.001, 1, nil))

	resp := s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.do(t, http.MethodPost, "/api/consultations", `{"message":"promote my coffee shop"}`, nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Health and metrics are not throttled.
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/health", "", nil).StatusCode)
		require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/metrics", "", nil).StatusCode)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantStatus int
		wantState  string
	}{
		{"no deps", nil, http.StatusOK, "healthy"},
		{"nil dep skipped", map[string]Pinger{"redis": nil}, http.StatusOK, "healthy"},
		{"redis down", map[string]Pinger{"redis": failingPinger{}}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			NewHealthHandler(tt.checks, 0).Health(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantState {
				t.Errorf("status = %q, want %q", body.Status, tt.wantState)
			}
			if body.Checks["api"] != "ok" {
				t.Errorf("api check = %q", body.Checks["api"])
			}
		})
	}
}

func TestRenderMarkdownEscapesRawHTML(t *testing.T) {
	t.Parallel()

	got := string(renderMarkdown("# Brief\n\n<script>alert(1)</script>\n"))
	if !strings.Contains(got, "<h1>Brief</h1>") {
		t.Errorf("missing heading in %q", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("raw HTML passed through: %q", got)
	}
}
