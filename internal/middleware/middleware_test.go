package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashureev/campaign-consult/internal/identity"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		allowed     []string
		origin      string
		preflight   bool
		wantOrigin  string
		wantCreds   bool
		wantMethods bool
		wantStatus  int
	}{
		{"wildcard", []string{"*"}, "https://app.example", false, "https://app.example", false, false, http.StatusOK},
		{"listed", []string{"https://app.example"}, "https://app.example", false, "https://app.example", true, false, http.StatusOK},
		{"listed beside wildcard", []string{"*", " https://app.example "}, "https://app.example", false, "https://app.example", true, false, http.StatusOK},
		{"rejected", []string{"https://app.example"}, "https://evil.example", false, "", false, false, http.StatusOK},
		{"no origin", []string{"*"}, "", false, "", false, false, http.StatusOK},
		{"preflight", []string{"*"}, "https://app.example", true, "https://app.example", false, true, http.StatusNoContent},
		{"rejected preflight", []string{"https://app.example"}, "https://evil.example", true, "", false, false, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			method := http.MethodGet
			if tt.preflight {
				method = http.MethodOptions
			}
			req := httptest.NewRequest(method, "/api/consultations", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			rec := httptest.NewRecorder()
			CORS(tt.allowed)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Access-Control-Allow-Credentials") == "true"; got != tt.wantCreds {
				t.Errorf("Allow-Credentials = %v, want %v", got, tt.wantCreds)
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods") != ""; got != tt.wantMethods {
				t.Errorf("Allow-Methods set = %v, want %v", got, tt.wantMethods)
			}
			if rec.Header().Get("Vary") != "Origin" {
				t.Errorf("Vary = %q, want Origin", rec.Header().Get("Vary"))
			}
		})
	}
}

func TestCORSPassesPlainOptions(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodOptions, "/api/health", nil)
	rec := httptest.NewRecorder()
	CORS([]string{"*"})(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want the handler's 200", rec.Code)
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0.001, 2, nil)
	h := rl.Middleware(okHandler)

	do := func(client string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/consultations", nil)
		req.AddCookie(&http.Cookie{Name: identity.ClientCookieName, Value: client})
		req = req.WithContext(identity.WithClientID(req.Context(), client))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := do("anon_a"); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do("anon_a")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if rec := do("anon_b"); rec.Code != http.StatusOK {
		t.Errorf("other client status = %d, want 200", rec.Code)
	}
	if rl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rl.Len())
	}
}

func TestRateLimiterFallsBackToIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:4000"
	if got := clientKey(req); got != "ip:198.51.100.4" {
		t.Errorf("clientKey() = %q", got)
	}

	// A freshly minted id without a matching cookie is not trusted.
	req = req.WithContext(identity.WithClientID(req.Context(), "anon_0123456789abcdef0123456789abcdef"))
	if got := clientKey(req); got != "ip:198.51.100.4" {
		t.Errorf("clientKey() with new id = %q", got)
	}
}
