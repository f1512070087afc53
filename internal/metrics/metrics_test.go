package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExchange(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveExchange("cash", 10000)
	m.ObserveExchange("cash", 5000)
	m.ObserveExchange("card", 2500)

	if got := promtest.ToFloat64(m.ExchangesTotal.WithLabelValues("cash")); got != 2 {
		t.Errorf("cash exchanges = %v, want 2", got)
	}
	if got := promtest.ToFloat64(m.EscrowAmountTotal.WithLabelValues("exchange")); got != 17500 {
		t.Errorf("exchange satang = %v, want 17500", got)
	}
}

func TestObserveDebitOnlySuccessMovesMoney(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDebit("success", 4000)
	m.ObserveDebit("insufficient_balance", 9000)

	if got := promtest.ToFloat64(m.DebitsTotal.WithLabelValues("insufficient_balance")); got != 1 {
		t.Errorf("failed debits = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.EscrowAmountTotal.WithLabelValues("debit")); got != 4000 {
		t.Errorf("debit satang = %v, want 4000", got)
	}
}

func TestObserveInboundWebhook(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveInboundWebhook("scb", "matched", 12550)
	m.ObserveInboundWebhook("scb", "orphan", 9999)
	m.ObserveInboundWebhook("kbank", "duplicate", 100)

	if got := promtest.ToFloat64(m.WebhooksTotal.WithLabelValues("scb", "matched")); got != 1 {
		t.Errorf("scb matched = %v, want 1", got)
	}
	// Orphans and duplicates never count toward confirmed money.
	if got := promtest.ToFloat64(m.WebhookAmountTotal.WithLabelValues("scb")); got != 12550 {
		t.Errorf("scb satang = %v, want 12550", got)
	}
}

func TestObserveSettlementRun(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSettlementRun(3, 250000)
	m.ObserveSettlementRun(0, 0)

	if got := promtest.ToFloat64(m.SettlementsCreatedTotal); got != 3 {
		t.Errorf("settlements created = %v, want 3", got)
	}
	if got := promtest.ToFloat64(m.SettlementAmountTotal); got != 250000 {
		t.Errorf("settlement satang = %v, want 250000", got)
	}
}

func TestObserveNotification(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveNotification("settlement", "delivered", 200*time.Millisecond)
	m.ObserveNotification("settlement", "retry", time.Second)
	m.ObserveNotification("settlement", "dead", time.Second)

	if got := promtest.ToFloat64(m.NotificationsTotal.WithLabelValues("settlement", "dead")); got != 1 {
		t.Errorf("dead notifications = %v, want 1", got)
	}
}
