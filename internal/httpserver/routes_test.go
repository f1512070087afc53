package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/config"
	"github.com/FoodCourtHub/server/internal/escrow"
	"github.com/FoodCourtHub/server/internal/idempotency"
	"github.com/FoodCourtHub/server/internal/settlement"
	"github.com/FoodCourtHub/server/internal/signage"
	"github.com/FoodCourtHub/server/internal/storage"
	"github.com/FoodCourtHub/server/internal/webhook"
)

// paidFlipper mirrors the production wiring: a matched webhook flips the
// store's signage slot.
type paidFlipper struct {
	coordinator *signage.Coordinator
}

func (f paidFlipper) PaymentReceived(merchantID int64, _ webhook.Event) {
	f.coordinator.MarkPaid(merchantID)
}

type testHub struct {
	router chi.Router
	store  storage.Store
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.RateLimit.Enabled = false
	cfg.Server.PublicBaseURL = "https://hub.example.com"

	store := storage.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	log := zerolog.Nop()
	coordinator := signage.NewCoordinator()
	idem := idempotency.NewMemoryStore()
	t.Cleanup(idem.Stop)

	router := chi.NewRouter()
	ConfigureRouter(router, Dependencies{
		Config:      cfg,
		Store:       store,
		Escrow:      escrow.NewEngine(store, log),
		Settlements: settlement.NewService(store, log),
		Signage:     coordinator,
		Webhooks:    webhook.NewProcessor(store, paidFlipper{coordinator}, nil, log),
		Idempotency: idem,
		Logger:      log,
	})
	return &testHub{router: router, store: store}
}

func (h *testHub) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON response %q", method, path, rec.Body.String())
		}
	}
	return rec, decoded
}

func (h *testHub) createStore(t *testing.T) map[string]any {
	t.Helper()
	rec, body := h.do(t, http.MethodPost, "/api/stores", map[string]any{
		"name":            "Noodle Stand",
		"tax_id":          "0105556000751",
		"group_id":        1,
		"site_id":         1,
		"default_menu_id": 1,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create store: %d %s", rec.Code, rec.Body.String())
	}
	return body
}

func TestMintDebitBalance(t *testing.T) {
	hub := newTestHub(t)
	hub.createStore(t)

	rec, body := hub.do(t, http.MethodPost, "/api/counter/exchange", map[string]any{
		"amount":         1000.00,
		"payment_method": "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("exchange: %d %s", rec.Code, rec.Body.String())
	}
	code, _ := body["foodcourt_id"].(string)
	if code == "" {
		t.Fatalf("exchange returned no code: %v", body)
	}

	rec, body = hub.do(t, http.MethodPost, "/api/payment-hub/use", map[string]any{
		"foodcourt_id": code,
		"store_id":     1,
		"amount":       250.00,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("use: %d %s", rec.Code, rec.Body.String())
	}
	if got := body["remaining_balance"]; got != "750.00" {
		t.Errorf("remaining_balance = %v, want 750.00", got)
	}

	rec, body = hub.do(t, http.MethodGet, "/api/counter/balance/"+code, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("balance: %d", rec.Code)
	}
	if body["current_balance"] != "750.00" || body["status"] != "active" {
		t.Errorf("balance = %v/%v, want 750.00/active", body["current_balance"], body["status"])
	}
}

func TestDebitToZeroThenInsufficient(t *testing.T) {
	hub := newTestHub(t)
	hub.createStore(t)

	_, body := hub.do(t, http.MethodPost, "/api/counter/exchange", map[string]any{
		"amount":         100.00,
		"payment_method": "cash",
	})
	code := body["foodcourt_id"].(string)

	rec, body := hub.do(t, http.MethodPost, "/api/payment-hub/use", map[string]any{
		"foodcourt_id": code,
		"store_id":     1,
		"amount":       100.00,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("use: %d %s", rec.Code, rec.Body.String())
	}
	if body["remaining_balance"] != "0.00" || body["status"] != "used" {
		t.Errorf("after full debit: %v", body)
	}

	rec, _ = hub.do(t, http.MethodPost, "/api/payment-hub/use", map[string]any{
		"foodcourt_id": code,
		"store_id":     1,
		"amount":       1.00,
	})
	if rec.Code < 400 || rec.Code >= 500 {
		t.Errorf("debit of used token = %d, want 4xx", rec.Code)
	}
}

func TestRefundAfterPartialUse(t *testing.T) {
	hub := newTestHub(t)
	hub.createStore(t)

	_, body := hub.do(t, http.MethodPost, "/api/counter/exchange", map[string]any{
		"amount":         1000.00,
		"payment_method": "cash",
	})
	code := body["foodcourt_id"].(string)

	hub.do(t, http.MethodPost, "/api/payment-hub/use", map[string]any{
		"foodcourt_id": code, "store_id": 1, "amount": 250.00,
	})

	rec, body := hub.do(t, http.MethodPost, "/api/counter/refund", map[string]any{
		"foodcourt_id": code,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("refund: %d %s", rec.Code, rec.Body.String())
	}
	if body["refund_amount"] != "750.00" {
		t.Errorf("refund_amount = %v, want 750.00", body["refund_amount"])
	}

	rec, _ = hub.do(t, http.MethodGet, "/api/counter/balance/"+code, nil)
	var bal map[string]any
	json.Unmarshal(rec.Body.Bytes(), &bal)
	if bal["status"] != "refunded" || bal["current_balance"] != "0.00" {
		t.Errorf("post-refund balance = %v", bal)
	}

	rec, _ = hub.do(t, http.MethodPost, "/api/counter/refund", map[string]any{
		"foodcourt_id": code,
	})
	if rec.Code < 400 || rec.Code >= 500 {
		t.Errorf("second refund = %d, want 4xx", rec.Code)
	}
}

func TestKBankWebhookIdempotentAndSettlement(t *testing.T) {
	hub := newTestHub(t)
	created := hub.createStore(t)
	token, _ := created["token"].(string)
	if len(token) != 20 {
		t.Fatalf("token = %q, want 20 digits", token)
	}

	// Arm the signage slot so the callback has something to flip.
	rec, _ := hub.do(t, http.MethodPost, "/api/signage/set-display", map[string]any{
		"store_id": 1,
		"qr_image": "data:image/png;base64,AAAA",
		"amount":   50.00,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("set-display: %d", rec.Code)
	}

	day := time.Now().UTC().Format("2006-01-02")
	payload := map[string]any{
		"reference1":      token,
		"totalAmount":     40.00,
		"transactionId":   "TXN1",
		"transactionDate": day + "T10:00:00Z",
	}
	rec, body := hub.do(t, http.MethodPost, "/api/payment-callback/webhook/kbank", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("kbank webhook: %d %s", rec.Code, rec.Body.String())
	}
	if body["outcome"] != "matched" {
		t.Errorf("outcome = %v, want matched", body["outcome"])
	}

	// Replay must not create a second row.
	rec, body = hub.do(t, http.MethodPost, "/api/payment-callback/webhook/kbank", payload)
	if rec.Code != http.StatusOK || body["outcome"] != "duplicate" {
		t.Errorf("replay: %d %v", rec.Code, body)
	}

	// Second payment the same day.
	payload["totalAmount"] = 60.00
	payload["transactionId"] = "TXN2"
	rec, _ = hub.do(t, http.MethodPost, "/api/payment-callback/webhook/kbank", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("second webhook: %d", rec.Code)
	}

	rec, body = hub.do(t, http.MethodGet, "/api/payment-callback/report?limit=10", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d", rec.Code)
	}
	if count, _ := body["count"].(float64); count != 2 {
		t.Errorf("report count = %v, want 2", body["count"])
	}

	// The callback flipped the armed slot.
	rec, body = hub.do(t, http.MethodGet, "/api/signage/display?store_id=1", nil)
	if rec.Code != http.StatusOK || body["status"] != "paid" {
		t.Errorf("signage after callback: %d %v", rec.Code, body)
	}

	// Daily roll-up: one settlement of 100.00, idempotent on re-run.
	rec, body = hub.do(t, http.MethodPost,
		fmt.Sprintf("/api/payment-callback/settlements/create-daily?settlement_date=%s", day), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create-daily: %d %s", rec.Code, rec.Body.String())
	}
	if createdCount, _ := body["created"].(float64); createdCount != 1 {
		t.Fatalf("created = %v, want 1", body["created"])
	}
	if body["total"] != "100.00" {
		t.Errorf("settlement total = %v, want 100.00", body["total"])
	}

	rec, body = hub.do(t, http.MethodPost,
		fmt.Sprintf("/api/payment-callback/settlements/create-daily?settlement_date=%s", day), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("create-daily rerun: %d", rec.Code)
	}
	if createdCount, _ := body["created"].(float64); createdCount != 0 {
		t.Errorf("rerun created = %v, want 0", body["created"])
	}
}

func TestSettlementLifecycleOverHTTP(t *testing.T) {
	hub := newTestHub(t)
	created := hub.createStore(t)
	token := created["token"].(string)

	day := time.Now().UTC().Format("2006-01-02")
	hub.do(t, http.MethodPost, "/api/payment-callback/webhook/kbank", map[string]any{
		"reference1":      token,
		"totalAmount":     75.50,
		"transactionId":   "TXN9",
		"transactionDate": day + "T09:30:00Z",
	})
	_, body := hub.do(t, http.MethodPost,
		"/api/payment-callback/settlements/create-daily?settlement_date="+day, nil)
	rows := body["settlements"].([]any)
	if len(rows) != 1 {
		t.Fatalf("settlements = %v", body)
	}
	id := int64(rows[0].(map[string]any)["id"].(float64))

	// Notify before transfer must be rejected.
	rec, _ := hub.do(t, http.MethodPost,
		fmt.Sprintf("/api/payment-callback/settlements/%d/notify", id), nil)
	if rec.Code < 400 || rec.Code >= 500 {
		t.Errorf("notify from pending = %d, want 4xx", rec.Code)
	}

	rec, body = hub.do(t, http.MethodPost,
		fmt.Sprintf("/api/payment-callback/settlements/%d/mark-transferred", id), nil)
	if rec.Code != http.StatusOK || body["status"] != "transferred" {
		t.Fatalf("mark-transferred: %d %v", rec.Code, body)
	}

	rec, body = hub.do(t, http.MethodPost,
		fmt.Sprintf("/api/payment-callback/settlements/%d/notify", id), nil)
	if rec.Code != http.StatusOK || body["status"] != "notified" {
		t.Fatalf("notify: %d %v", rec.Code, body)
	}

	rec, body = hub.do(t, http.MethodGet, "/api/payment-callback/stores/1/settlements-for-receipt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("settlements-for-receipt: %d", rec.Code)
	}
	if count, _ := body["count"].(float64); count != 1 {
		t.Errorf("receipt list count = %v, want 1", body["count"])
	}
}

func TestWebhookOrphanStillRecorded(t *testing.T) {
	hub := newTestHub(t)

	rec, body := hub.do(t, http.MethodPost, "/api/payment-callback/webhook", map[string]any{
		"ref1":           "99999999999999999999",
		"amount":         10.00,
		"slip_reference": "ORPHAN1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("orphan webhook: %d %s", rec.Code, rec.Body.String())
	}
	if body["outcome"] != "orphan" {
		t.Errorf("outcome = %v, want orphan", body["outcome"])
	}
}

func TestMenusAndQuickAmounts(t *testing.T) {
	hub := newTestHub(t)
	store := hub.createStore(t)
	id := int64(store["id"].(float64))

	rec, menu := hub.do(t, http.MethodPost, fmt.Sprintf("/api/stores/%d/menus", id), map[string]any{
		"name":       "Pad Thai",
		"unit_price": 65.00,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create menu: %d %s", rec.Code, rec.Body.String())
	}
	if menu["unit_price"] != "65.00" {
		t.Errorf("unit_price = %v, want 65.00", menu["unit_price"])
	}
	// Inactive items stay off the POS list.
	if rec, _ := hub.do(t, http.MethodPost, fmt.Sprintf("/api/stores/%d/menus", id), map[string]any{
		"name": "Off Menu", "unit_price": 10.00, "active": false,
	}); rec.Code != http.StatusCreated {
		t.Fatalf("create inactive menu: %d", rec.Code)
	}

	rec, body := hub.do(t, http.MethodGet, fmt.Sprintf("/api/stores/%d/menus", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list menus: %d %s", rec.Code, rec.Body.String())
	}
	if count, _ := body["count"].(float64); count != 1 {
		t.Errorf("menu count = %v, want 1", body["count"])
	}

	// Quick amounts come back in display order, with a default baht label.
	for _, qa := range []map[string]any{
		{"amount": 100.00, "display_order": 2},
		{"amount": 40.00, "display_order": 1},
	} {
		if rec, _ := hub.do(t, http.MethodPost, fmt.Sprintf("/api/stores/%d/quick-amounts", id), qa); rec.Code != http.StatusCreated {
			t.Fatalf("create quick amount: %d", rec.Code)
		}
	}
	rec, body = hub.do(t, http.MethodGet, fmt.Sprintf("/api/stores/%d/quick-amounts", id), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list quick amounts: %d %s", rec.Code, rec.Body.String())
	}
	rows, _ := body["quick_amounts"].([]any)
	if len(rows) != 2 {
		t.Fatalf("quick amounts = %d, want 2", len(rows))
	}
	first, _ := rows[0].(map[string]any)
	if first["amount"] != "40.00" || first["label"] != "40 บาท" {
		t.Errorf("first quick amount = %v", first)
	}
}
