package idempotency

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func countingHandler(calls *int, status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func TestNoKeyPassesThrough(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	calls := 0
	handler := Middleware(store, time.Hour)(countingHandler(&calls, http.StatusOK, `{"txn_id":"tx_1"}`))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/exchange", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("X-Idempotency-Replay") != "" {
			t.Error("unexpected replay header without a key")
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryReplaysFirstResponse(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	calls := 0
	handler := Middleware(store, time.Hour)(countingHandler(&calls, http.StatusOK, `{"txn_id":"tx_42"}`))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/use", nil)
		req.Header.Set(HeaderKey, "pos7-order-1009")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("attempt %d: code = %d", i, rec.Code)
		}
		if rec.Body.String() != `{"txn_id":"tx_42"}` {
			t.Fatalf("attempt %d: body = %s", i, rec.Body.String())
		}
		replay := rec.Header().Get("X-Idempotency-Replay")
		if i == 0 && replay != "" {
			t.Error("first attempt marked as replay")
		}
		if i > 0 && replay != "true" {
			t.Errorf("attempt %d missing replay header", i)
		}
	}
	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestKeyScopedToMethodAndPath(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	calls := 0
	handler := Middleware(store, time.Hour)(countingHandler(&calls, http.StatusOK, "ok"))

	req := httptest.NewRequest("POST", "/api/exchange", nil)
	req.Header.Set(HeaderKey, "pos7-order-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// Same key against another endpoint must execute, not replay.
	req = httptest.NewRequest("POST", "/api/use", nil)
	req.Header.Set(HeaderKey, "pos7-order-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
	if rec.Header().Get("X-Idempotency-Replay") != "" {
		t.Error("replay leaked across endpoints")
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	calls := 0
	handler := Middleware(store, time.Hour)(countingHandler(&calls, http.StatusBadGateway, "gateway down"))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/api/exchange", nil)
		req.Header.Set(HeaderKey, "pos7-order-2")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Header().Get("X-Idempotency-Replay") != "" {
			t.Errorf("attempt %d: error response replayed", i)
		}
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}

func TestReplayPreservesHeaders(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	handler := Middleware(store, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"txn_id":"tx_9"}`))
	}))

	first := httptest.NewRequest("POST", "/api/topup", nil)
	first.Header.Set(HeaderKey, "pos2-topup-77")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	retry := httptest.NewRequest("POST", "/api/topup", nil)
	retry.Header.Set(HeaderKey, "pos2-topup-77")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, retry)

	if rec.Code != http.StatusCreated {
		t.Errorf("code = %d, want 201", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestReplayExpiresWithTTL(t *testing.T) {
	store := NewMemoryStore()
	defer store.Stop()
	calls := 0
	handler := Middleware(store, 50*time.Millisecond)(countingHandler(&calls, http.StatusOK, "ok"))

	req := httptest.NewRequest("POST", "/api/exchange", nil)
	req.Header.Set(HeaderKey, "pos1-order-3")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	time.Sleep(80 * time.Millisecond)

	req = httptest.NewRequest("POST", "/api/exchange", nil)
	req.Header.Set(HeaderKey, "pos1-order-3")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Idempotency-Replay") != "" {
		t.Error("expired entry replayed")
	}
	if calls != 2 {
		t.Errorf("handler calls = %d, want 2", calls)
	}
}
