package storage

import (
	"context"
	"testing"
	"time"

	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
)

func newTestMerchant(token string) *Merchant {
	return &Merchant{
		Name:          "Som Tam Paradise",
		GroupID:       1,
		SiteID:        10,
		DefaultMenuID: 100,
		Token:         token,
		Active:        true,
	}
}

func TestMerchantTokenUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateMerchant(ctx, newTestMerchant("00100010000100000100")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateMerchant(ctx, newTestMerchant("00100010000100000100")); err != ErrDuplicate {
		t.Fatalf("duplicate token should be rejected, got %v", err)
	}

	m, err := s.GetMerchantByToken(ctx, "00100010000100000100")
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Som Tam Paradise" {
		t.Errorf("unexpected merchant: %+v", m)
	}
	if _, err := s.GetMerchantByToken(ctx, "99999999999999999999"); err != ErrNotFound {
		t.Errorf("unknown token should be ErrNotFound, got %v", err)
	}
}

func TestFindActiveProfileByScope(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	siteID := int64(10)
	groupID := int64(1)

	if _, err := s.CreateBankingProfile(ctx, &BankingProfile{
		Scope: ScopeSite, SiteID: &siteID, ProviderType: "scb", Active: true,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateBankingProfile(ctx, &BankingProfile{
		Scope: ScopeGroup, GroupID: &groupID, ProviderType: "kbank", Active: true,
	}); err != nil {
		t.Fatal(err)
	}

	p, err := s.FindActiveProfile(ctx, ScopeSite, siteID)
	if err != nil {
		t.Fatal(err)
	}
	if p.ProviderType != "scb" {
		t.Errorf("site lookup returned %s", p.ProviderType)
	}

	if _, err := s.FindActiveProfile(ctx, ScopeStore, 5); err != ErrNotFound {
		t.Errorf("missing store profile should be ErrNotFound, got %v", err)
	}

	// Inactive profiles are invisible.
	inactive := int64(77)
	if _, err := s.CreateBankingProfile(ctx, &BankingProfile{
		Scope: ScopeStore, StoreID: &inactive, ProviderType: "omise", Active: false,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.FindActiveProfile(ctx, ScopeStore, inactive); err != ErrNotFound {
		t.Errorf("inactive profile should be invisible, got %v", err)
	}
}

func mintFCID(t *testing.T, s Store, code string, baht string) *FoodCourtID {
	t.Helper()
	amount, err := money.ParseBaht(baht)
	if err != nil {
		t.Fatal(err)
	}
	f, err := s.CreateFCID(context.Background(), &FoodCourtID{
		Code:           code,
		InitialAmount:  amount,
		CurrentBalance: amount,
		Method:         paymentmethod.Cash,
		Status:         FCIDActive,
	}, &CounterTransaction{
		Kind:   CounterExchange,
		Amount: amount,
		Method: paymentmethod.Cash,
		Status: "completed",
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFCIDLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	f := mintFCID(t, s, "FC-20260824-00001", "500.00")
	if f.CurrentBalance != 50000 {
		t.Fatalf("balance = %d, want 50000", f.CurrentBalance)
	}

	if _, err := s.CreateFCID(ctx, &FoodCourtID{Code: f.Code}, nil); err != ErrDuplicate {
		t.Fatalf("duplicate code should be rejected, got %v", err)
	}

	// Debit 120.00 down to 380.00.
	err := s.ApplyDebit(ctx, DebitUpdate{
		Code:            f.Code,
		ExpectedBalance: 50000,
		NewBalance:      38000,
		NewStatus:       FCIDActive,
		StoreTxn:        &StoreTransaction{MerchantID: 1, Amount: 12000, Status: "completed"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// A writer holding the stale balance loses.
	err = s.ApplyDebit(ctx, DebitUpdate{
		Code:            f.Code,
		ExpectedBalance: 50000,
		NewBalance:      26000,
		NewStatus:       FCIDActive,
	})
	if err != ErrStale {
		t.Fatalf("stale debit should return ErrStale, got %v", err)
	}

	got, err := s.GetFCID(ctx, f.Code)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentBalance != 38000 || got.Status != FCIDActive {
		t.Errorf("after debit: %+v", got)
	}

	// Top-up raises both balance and lifetime total.
	err = s.ApplyTopUp(ctx, TopUpUpdate{
		Code:            f.Code,
		ExpectedBalance: 38000,
		NewBalance:      48000,
		NewInitial:      60000,
		CounterTxn:      &CounterTransaction{Kind: CounterTopUp, Amount: 10000, Method: paymentmethod.Cash},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetFCID(ctx, f.Code)
	if got.CurrentBalance != 48000 || got.InitialAmount != 60000 {
		t.Errorf("after topup: %+v", got)
	}

	// Refund zeroes the balance terminally.
	err = s.ApplyRefund(ctx, RefundUpdate{
		Code:            f.Code,
		ExpectedBalance: 48000,
		CounterTxn:      &CounterTransaction{Kind: CounterRefund, Amount: 48000, Method: paymentmethod.Cash},
	})
	if err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetFCID(ctx, f.Code)
	if got.CurrentBalance != 0 || got.Status != FCIDRefunded {
		t.Errorf("after refund: %+v", got)
	}

	if err := s.ApplyDebit(ctx, DebitUpdate{Code: "FC-MISSING", ExpectedBalance: 1}); err != ErrNotFound {
		t.Errorf("debit on missing code should be ErrNotFound, got %v", err)
	}
}

func TestNextReceiptSequencePerDay(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextReceiptSequence(ctx, "20260824")
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("sequence = %d, want %d", got, want)
		}
	}
	got, err := s.NextReceiptSequence(ctx, "20260825")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("new day should restart at 1, got %d", got)
	}
}

func TestInsertBackTransactionIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	merchantID := int64(7)
	paidAt := time.Date(2026, 8, 24, 12, 30, 0, 0, time.UTC)

	bt := &BackTransaction{
		Rail:          "scb",
		Ref1:          "00100010000100000100",
		Amount:        15000,
		PaidAt:        paidAt,
		SlipReference: "SLIP-001",
		MerchantID:    &merchantID,
		Status:        BackMatched,
	}
	created, first, err := s.InsertBackTransaction(ctx, bt, &PaymentTransaction{
		MerchantID:    &merchantID,
		Amount:        15000,
		Method:        paymentmethod.PromptPay,
		Status:        PaymentConfirmed,
		ReceiptNumber: "RCP-20260824-00001",
		Ref1:          bt.Ref1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first insert should create")
	}

	created, second, err := s.InsertBackTransaction(ctx, bt, nil)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("replayed slip should not create")
	}
	if second.ID != first.ID {
		t.Errorf("replay returned row %d, want %d", second.ID, first.ID)
	}

	// A different slip on the same rail is a new row.
	bt2 := *bt
	bt2.SlipReference = "SLIP-002"
	created, _, err = s.InsertBackTransaction(ctx, &bt2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("distinct slip should create")
	}
}

func TestRecentPaidExcludesOrphans(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	merchantID := int64(3)
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	for i, slip := range []string{"A", "B", "C"} {
		bt := &BackTransaction{
			Rail: "kbank", Ref1: "tok", Amount: 10000,
			PaidAt: base.Add(time.Duration(i) * time.Minute), SlipReference: slip,
			MerchantID: &merchantID, Status: BackMatched,
		}
		if _, _, err := s.InsertBackTransaction(ctx, bt, nil); err != nil {
			t.Fatal(err)
		}
	}
	// Orphan row with no merchant.
	if _, _, err := s.InsertBackTransaction(ctx, &BackTransaction{
		Rail: "kbank", Ref1: "unknown", Amount: 5000,
		PaidAt: base, SlipReference: "D", Status: BackReceived,
	}, nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentPaid(ctx, merchantID, base.Add(-time.Second), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].PaidAt.Before(got[i-1].PaidAt) {
			t.Error("rows not in ascending paid_at order")
		}
	}

	// since is an exclusive cursor. Polling again with the last delivered
	// paid_at must not re-deliver the boundary row.
	next, err := s.RecentPaid(ctx, merchantID, got[0].PaidAt, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(next) != 2 {
		t.Fatalf("got %d rows after cursor, want 2", len(next))
	}
	if next[0].SlipReference != "B" {
		t.Errorf("first row after cursor = %s, want B", next[0].SlipReference)
	}
}

func TestQueryBackTransactionsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := int64(1)
	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)

	// Insertion order deliberately disagrees with payment order: a late
	// callback for an earlier payment arrives last.
	for _, row := range []struct {
		slip string
		at   time.Time
	}{
		{"s1", base.Add(2 * time.Hour)},
		{"s2", base.Add(3 * time.Hour)},
		{"s3", base.Add(time.Hour)},
	} {
		if _, _, err := s.InsertBackTransaction(ctx, &BackTransaction{
			Rail: "kbank", Ref1: "tok", Amount: 1000,
			PaidAt: row.at, SlipReference: row.slip,
			MerchantID: &m, Status: BackMatched,
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.QueryBackTransactions(ctx, BackTransactionQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	want := []string{"s2", "s1", "s3"}
	for i, w := range want {
		if got[i].SlipReference != w {
			t.Errorf("row %d = %s, want %s", i, got[i].SlipReference, w)
		}
	}
}

func TestSumBackTransactionsWindow(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m1, m2 := int64(1), int64(2)
	day := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	rows := []struct {
		merchant *int64
		amount   money.Amount
		at       time.Time
		slip     string
	}{
		{&m1, 10000, day.Add(10 * time.Hour), "s1"},
		{&m1, 20000, day.Add(12 * time.Hour), "s2"},
		{&m2, 5000, day.Add(13 * time.Hour), "s3"},
		{nil, 9999, day.Add(14 * time.Hour), "s4"},             // orphan, excluded
		{&m1, 7777, day.Add(24*time.Hour + time.Minute), "s5"}, // next day, excluded
	}
	for _, r := range rows {
		if _, _, err := s.InsertBackTransaction(ctx, &BackTransaction{
			Rail: "scb", Ref1: "tok", Amount: r.amount, PaidAt: r.at,
			SlipReference: r.slip, MerchantID: r.merchant, Status: BackMatched,
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	sums, err := s.SumBackTransactions(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if sums[m1] != 30000 {
		t.Errorf("merchant 1 sum = %d, want 30000", sums[m1])
	}
	if sums[m2] != 5000 {
		t.Errorf("merchant 2 sum = %d, want 5000", sums[m2])
	}
	if len(sums) != 2 {
		t.Errorf("expected 2 merchants, got %d", len(sums))
	}
}

func TestSettlementLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)

	created, set, err := s.CreateSettlement(ctx, &Settlement{
		MerchantID: 4, SettlementDate: day, Amount: 123400, Status: SettlementPending,
	})
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}

	// Second create for the same (merchant, day) is a no-op.
	created, again, err := s.CreateSettlement(ctx, &Settlement{
		MerchantID: 4, SettlementDate: day, Amount: 999999, Status: SettlementPending,
	})
	if err != nil {
		t.Fatal(err)
	}
	if created || again.ID != set.ID || again.Amount != 123400 {
		t.Errorf("re-create should return the original row: created=%v %+v", created, again)
	}

	now := time.Now().UTC()
	got, err := s.TransitionSettlement(ctx, set.ID, SettlementPending, SettlementTransferred, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != SettlementTransferred || got.TransferredAt == nil {
		t.Errorf("after transfer: %+v", got)
	}

	// Repeating the same transition loses the precondition.
	if _, err := s.TransitionSettlement(ctx, set.ID, SettlementPending, SettlementTransferred, now); err != ErrStale {
		t.Errorf("double transfer should be ErrStale, got %v", err)
	}

	got, err = s.TransitionSettlement(ctx, set.ID, SettlementTransferred, SettlementNotified, now)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != SettlementNotified || got.NotifiedAt == nil {
		t.Errorf("after notify: %+v", got)
	}
}

func TestOverdueSettlements(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	old := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	today := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)

	if _, _, err := s.CreateSettlement(ctx, &Settlement{MerchantID: 1, SettlementDate: old, Amount: 100, Status: SettlementPending}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.CreateSettlement(ctx, &Settlement{MerchantID: 2, SettlementDate: today, Amount: 100, Status: SettlementPending}); err != nil {
		t.Fatal(err)
	}
	_, transferred, err := s.CreateSettlement(ctx, &Settlement{MerchantID: 3, SettlementDate: old, Amount: 100, Status: SettlementPending})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransitionSettlement(ctx, transferred.ID, SettlementPending, SettlementTransferred, time.Now()); err != nil {
		t.Fatal(err)
	}

	got, err := s.OverdueSettlements(ctx, old.AddDate(0, 0, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].MerchantID != 1 {
		t.Fatalf("overdue = %+v, want only merchant 1", got)
	}
}

func TestNotificationRetryParking(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.EnqueueNotification(ctx, &Notification{
		DeliveryID:  "dl_1",
		Kind:        "settlement",
		URL:         "https://merchant.example/hook",
		Payload:     []byte(`{}`),
		MaxAttempts: 2,
	})
	if err != nil {
		t.Fatal(err)
	}

	due, err := s.DueNotifications(ctx, time.Now().Add(time.Second), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %d, want 1", len(due))
	}

	if err := s.MarkNotificationFailed(ctx, n.ID, "503", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	due, _ = s.DueNotifications(ctx, time.Now(), 10)
	if len(due) != 0 {
		t.Error("rescheduled entry should not be due yet")
	}

	// Exhausting attempts parks the entry dead.
	if err := s.MarkNotificationFailed(ctx, n.ID, "503", time.Now()); err != nil {
		t.Fatal(err)
	}
	due, _ = s.DueNotifications(ctx, time.Now().Add(2*time.Hour), 10)
	if len(due) != 0 {
		t.Error("dead entry should never be due")
	}
}

func TestExpireFCIDsBefore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	mintFCID(t, s, "FC-20260824-00001", "100.00")
	mintFCID(t, s, "FC-20260824-00002", "200.00")

	n, err := s.ExpireFCIDsBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expired %d, want 2", n)
	}
	active, err := s.ListActiveFCIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Errorf("active after expiry = %d, want 0", len(active))
	}
	got, _ := s.GetFCID(ctx, "FC-20260824-00001")
	if got.Status != FCIDExpired {
		t.Errorf("status = %s, want expired", got.Status)
	}
	if !got.CurrentBalance.IsZero() {
		t.Errorf("balance = %d satang, want 0 after reset", got.CurrentBalance)
	}
}
