package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the payment hub.
type Metrics struct {
	// Escrow metrics
	ExchangesTotal    *prometheus.CounterVec
	DebitsTotal       *prometheus.CounterVec
	EscrowAmountTotal *prometheus.CounterVec
	RefundsTotal      *prometheus.CounterVec
	RefundAmountTotal prometheus.Counter

	// Gateway metrics
	GatewayRequestsTotal *prometheus.CounterVec
	GatewayDuration      *prometheus.HistogramVec

	// Inbound webhook metrics
	WebhooksTotal      *prometheus.CounterVec
	WebhookAmountTotal *prometheus.CounterVec

	// Settlement metrics
	SettlementsCreatedTotal prometheus.Counter
	SettlementAmountTotal   prometheus.Counter
	SettlementsOverdue      prometheus.Gauge

	// Merchant notification metrics
	NotificationsTotal   *prometheus.CounterVec
	NotificationDuration *prometheus.HistogramVec

	// Signage metrics
	SignageSlotsActive prometheus.Gauge
	SignageFlipsTotal  *prometheus.CounterVec

	// Scheduler metrics
	SchedulerRunsTotal *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Rate limiting metrics
	RateLimitHitsTotal *prometheus.CounterVec

	// Database metrics
	DBQueryDuration     *prometheus.HistogramVec
	DBConnectionsActive prometheus.Gauge
}

// New creates and registers all Prometheus metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		ExchangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_exchanges_total",
				Help: "Stored-value tokens minted, by payment method",
			},
			[]string{"method"},
		),
		DebitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_debits_total",
				Help: "Stored-value debit attempts",
			},
			[]string{"status"},
		),
		EscrowAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_escrow_amount_satang_total",
				Help: "Satang moved through the escrow pool",
			},
			[]string{"operation"},
		),
		RefundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_refunds_total",
				Help: "Refund requests by outcome",
			},
			[]string{"status"},
		),
		RefundAmountTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "foodcourt_refund_amount_satang_total",
				Help: "Satang returned to customers",
			},
		),

		GatewayRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_gateway_requests_total",
				Help: "Charge creation attempts per rail",
			},
			[]string{"provider", "status"},
		),
		GatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foodcourt_gateway_duration_seconds",
				Help:    "Rail round-trip time for charge creation",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"provider"},
		),

		WebhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_webhooks_total",
				Help: "Inbound bank confirmations by rail and outcome",
			},
			[]string{"rail", "outcome"},
		),
		WebhookAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_webhook_amount_satang_total",
				Help: "Satang confirmed by inbound webhooks",
			},
			[]string{"rail"},
		),

		SettlementsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "foodcourt_settlements_created_total",
				Help: "Settlement rows created by the daily sweep",
			},
		),
		SettlementAmountTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "foodcourt_settlement_amount_satang_total",
				Help: "Satang swept into settlements",
			},
		),
		SettlementsOverdue: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "foodcourt_settlements_overdue",
				Help: "Pending settlements past the transfer deadline",
			},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_notifications_total",
				Help: "Merchant notification deliveries by outcome",
			},
			[]string{"kind", "status"},
		),
		NotificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foodcourt_notification_duration_seconds",
				Help:    "Merchant notification delivery time",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),

		SignageSlotsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "foodcourt_signage_slots_active",
				Help: "Merchant displays currently showing a QR",
			},
		),
		SignageFlipsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_signage_flips_total",
				Help: "Signage state transitions",
			},
			[]string{"transition"},
		),

		SchedulerRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_scheduler_runs_total",
				Help: "Scheduled job executions by outcome",
			},
			[]string{"job", "status"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_http_requests_total",
				Help: "HTTP requests by route, method and status class",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foodcourt_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"route", "method"},
		),

		RateLimitHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodcourt_rate_limit_hits_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limit_type", "identifier"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "foodcourt_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 1, 2},
			},
			[]string{"operation", "backend"},
		),
		DBConnectionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "foodcourt_db_connections_active",
				Help: "Number of active database connections",
			},
		),
	}
}

// ObserveExchange records a mint and the satang credited.
func (m *Metrics) ObserveExchange(method string, amountSatang int64) {
	m.ExchangesTotal.WithLabelValues(method).Inc()
	m.EscrowAmountTotal.WithLabelValues("exchange").Add(float64(amountSatang))
}

// ObserveDebit records a debit attempt and, on success, the satang spent.
func (m *Metrics) ObserveDebit(status string, amountSatang int64) {
	m.DebitsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.EscrowAmountTotal.WithLabelValues("debit").Add(float64(amountSatang))
	}
}

// ObserveRefund records a refund outcome.
func (m *Metrics) ObserveRefund(status string, amountSatang int64) {
	m.RefundsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		m.RefundAmountTotal.Add(float64(amountSatang))
		m.EscrowAmountTotal.WithLabelValues("refund").Add(float64(amountSatang))
	}
}

// ObserveGatewayRequest records one charge creation attempt.
func (m *Metrics) ObserveGatewayRequest(provider, status string, duration time.Duration) {
	m.GatewayRequestsTotal.WithLabelValues(provider, status).Inc()
	m.GatewayDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// ObserveInboundWebhook records one bank confirmation.
func (m *Metrics) ObserveInboundWebhook(rail, outcome string, amountSatang int64) {
	m.WebhooksTotal.WithLabelValues(rail, outcome).Inc()
	if outcome == "matched" {
		m.WebhookAmountTotal.WithLabelValues(rail).Add(float64(amountSatang))
	}
}

// ObserveSettlementRun records the output of one daily sweep.
func (m *Metrics) ObserveSettlementRun(created int, amountSatang int64) {
	m.SettlementsCreatedTotal.Add(float64(created))
	m.SettlementAmountTotal.Add(float64(amountSatang))
}

// ObserveNotification records one delivery attempt outcome.
func (m *Metrics) ObserveNotification(kind, status string, duration time.Duration) {
	m.NotificationsTotal.WithLabelValues(kind, status).Inc()
	m.NotificationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// ObserveSignageFlip records one display state transition.
func (m *Metrics) ObserveSignageFlip(transition string) {
	m.SignageFlipsTotal.WithLabelValues(transition).Inc()
}

// ObserveSchedulerRun records one job execution.
func (m *Metrics) ObserveSchedulerRun(job, status string) {
	m.SchedulerRunsTotal.WithLabelValues(job, status).Inc()
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(route, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// ObserveRateLimit records a rate limit hit.
func (m *Metrics) ObserveRateLimit(limitType, identifier string) {
	m.RateLimitHitsTotal.WithLabelValues(limitType, identifier).Inc()
}

// ObserveDBQuery records a database query.
func (m *Metrics) ObserveDBQuery(operation, backend string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}
