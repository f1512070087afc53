package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

func seedPending(t *testing.T, store storage.Store, merchantID int64, date time.Time, satang int64) {
	t.Helper()
	created, _, err := store.CreateSettlement(context.Background(), &storage.Settlement{
		MerchantID:     merchantID,
		SettlementDate: date,
		Amount:         money.FromSatang(satang),
		Status:         storage.SettlementPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("settlement not created")
	}
}

func TestCheckAlertsOnOverdue(t *testing.T) {
	var alerts int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&alerts, 1)
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		lastBody.Store(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := storage.NewMemoryStore()
	old := time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC)
	seedPending(t, store, 1, old, 150000)
	seedPending(t, store, 2, old.AddDate(0, 0, 1), 50000)

	w := NewCustodyWatchdog(store, Options{AlertURL: srv.URL, OverdueAfter: time.Hour}, nil, zerolog.Nop())
	w.Check(context.Background())

	if n := atomic.LoadInt32(&alerts); n != 1 {
		t.Fatalf("alerts = %d, want 1", n)
	}
	body := lastBody.Load().(map[string]any)
	content, _ := body["content"].(string)
	if !strings.Contains(content, "2024-11-28") || !strings.Contains(content, "2000.00") {
		t.Errorf("alert content = %q", content)
	}

	// A second scan inside the 24h window stays quiet.
	w.Check(context.Background())
	if n := atomic.LoadInt32(&alerts); n != 1 {
		t.Errorf("alerts after rescan = %d, want 1", n)
	}
}

func TestCheckQuietWhenNothingOverdue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no alert expected")
	}))
	defer srv.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, 1, time.Now().UTC(), 10000)

	w := NewCustodyWatchdog(store, Options{AlertURL: srv.URL, OverdueAfter: 24 * time.Hour}, nil, zerolog.Nop())
	w.Check(context.Background())
}

func TestCustomBodyTemplate(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 256)
		n, _ := r.Body.Read(buf)
		got.Store(string(buf[:n]))
	}))
	defer srv.Close()

	store := storage.NewMemoryStore()
	seedPending(t, store, 1, time.Date(2024, 11, 28, 0, 0, 0, 0, time.UTC), 10000)

	w := NewCustodyWatchdog(store, Options{
		AlertURL:     srv.URL,
		OverdueAfter: time.Hour,
		BodyTemplate: `{"text":"{{.Count}} overdue since {{.OldestDate}}"}`,
	}, nil, zerolog.Nop())
	w.Check(context.Background())

	if s, _ := got.Load().(string); s != `{"text":"1 overdue since 2024-11-28"}` {
		t.Errorf("body = %q", s)
	}
}
