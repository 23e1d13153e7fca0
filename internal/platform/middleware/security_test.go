package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveSecurity(t *testing.T, req *http.Request, skip ...string) *httptest.ResponseRecorder {
	t.Helper()
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	resp := httptest.NewRecorder()
	Security(skip...)(handler).ServeHTTP(resp, req)
	return resp
}

func TestSecurityMiddlewareSetsHeaders(t *testing.T) {
	resp := serveSecurity(t, httptest.NewRequest(http.MethodGet, "/profile", nil))

	for _, kv := range securityHeaders {
		if got := resp.Header().Get(kv[0]); got != kv[1] {
			t.Errorf("%s: expected %q, got %q", kv[0], kv[1], got)
		}
	}
	if got := resp.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected X-Frame-Options DENY, got %q", got)
	}
	if got := resp.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("expected no HSTS over plain HTTP, got %q", got)
	}
}

func TestSecurityMiddlewareSetsHSTSBehindProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")

	resp := serveSecurity(t, req)

	if got := resp.Header().Get("Strict-Transport-Security"); got != hstsValue {
		t.Errorf("expected HSTS %q, got %q", hstsValue, got)
	}
}

func TestSecurityMiddlewareSkipsPaths(t *testing.T) {
	resp := serveSecurity(t, httptest.NewRequest(http.MethodGet, "/api-docs/index.html", nil), "/api-docs")

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Cache-Control"); got != "" {
		t.Errorf("expected no security headers on skipped path, got Cache-Control %q", got)
	}
}
