package apikey

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func guarded(key string) http.Handler {
	return Middleware(key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestEmptyKeyDisablesGuard(t *testing.T) {
	handler := guarded("")

	req := httptest.NewRequest("GET", "/admin/merchants", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestValidKey(t *testing.T) {
	handler := guarded("ops-secret")

	req := httptest.NewRequest("GET", "/admin/merchants", nil)
	req.Header.Set(HeaderAPIKey, "ops-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	handler := guarded("ops-secret")

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.Header.Set("Authorization", "Bearer ops-secret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestRejectsMissingOrWrongKey(t *testing.T) {
	handler := guarded("ops-secret")

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no key", func(r *http.Request) {}},
		{"wrong key", func(r *http.Request) { r.Header.Set(HeaderAPIKey, "guess") }},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer guess") }},
		{"basic auth ignored", func(r *http.Request) { r.SetBasicAuth("ops", "ops-secret") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin/merchants", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("code = %d, want 401", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}
