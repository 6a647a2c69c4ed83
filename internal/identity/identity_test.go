package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareIssuesAndReusesCookie(t *testing.T) {
	t.Parallel()

	var seen string
	h := Middleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !isValidClientID(seen) {
		t.Fatalf("client id = %q", seen)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != ClientCookieName || cookies[0].Value != seen {
		t.Fatalf("cookies = %+v", cookies)
	}
	if cookies[0].Secure {
		t.Error("cookie is Secure in development")
	}

	first := seen
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: first})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != first {
		t.Errorf("client id = %q, want reused %q", seen, first)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "forged"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "forged" || !isValidClientID(seen) {
		t.Errorf("client id = %q, want a fresh id for an invalid cookie", seen)
	}
}

func TestClient(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/api/consultations", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("User-Agent", "curl/8.0")
	req = req.WithContext(WithClientID(req.Context(), "anon_x"))

	c := Client(req, "http")
	if c.ID != "anon_x" || c.RemoteIP != "203.0.113.7" || c.UserAgent != "curl/8.0" || c.Channel != "http" {
		t.Errorf("Client() = %+v", c)
	}
}
