// Package monitoring watches the custody ledger for settlements that sat
// pending past their transfer deadline and alerts the operations webhook.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/httputil"
	"github.com/FoodCourtHub/server/internal/metrics"
	"github.com/FoodCourtHub/server/internal/storage"
)

// Options configures the custody watchdog.
type Options struct {
	// AlertURL receives overdue alerts (Discord/Slack compatible payload).
	// Empty disables the watchdog.
	AlertURL string
	// Headers are applied to every alert request.
	Headers map[string]string
	// BodyTemplate optionally overrides the default alert body. It is
	// rendered with an Alert value.
	BodyTemplate string
	// CheckInterval between scans. Default 1h.
	CheckInterval time.Duration
	// OverdueAfter is how long a settlement may stay pending before it
	// counts as overdue. Default 24h.
	OverdueAfter time.Duration
	// Timeout for the alert HTTP request. Default 10s.
	Timeout time.Duration
}

// Alert describes one overdue settlement batch.
type Alert struct {
	Count       int       `json:"count"`
	OldestDate  string    `json:"oldest_date"`
	TotalBaht   string    `json:"total_baht"`
	GeneratedAt time.Time `json:"generated_at"`
}

// CustodyWatchdog periodically scans for overdue settlements.
type CustodyWatchdog struct {
	store      storage.Store
	opts       Options
	httpClient *http.Client
	log        zerolog.Logger
	metrics    *metrics.Metrics

	mu          sync.Mutex
	lastAlertAt time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewCustodyWatchdog(store storage.Store, opts Options, m *metrics.Metrics, log zerolog.Logger) *CustodyWatchdog {
	if opts.CheckInterval <= 0 {
		opts.CheckInterval = time.Hour
	}
	if opts.OverdueAfter <= 0 {
		opts.OverdueAfter = 24 * time.Hour
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &CustodyWatchdog{
		store:      store,
		opts:       opts,
		httpClient: httputil.NewClient(opts.Timeout),
		log:        log.With().Str("component", "custody_watchdog").Logger(),
		metrics:    m,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the scan loop. Disabled when no alert URL is configured.
func (w *CustodyWatchdog) Start(ctx context.Context) {
	if w.opts.AlertURL == "" {
		w.log.Info().Msg("custody watchdog disabled, no alert url")
		return
	}

	w.log.Info().
		Dur("check_interval", w.opts.CheckInterval).
		Dur("overdue_after", w.opts.OverdueAfter).
		Msg("custody watchdog started")

	w.wg.Add(1)
	go w.loop(ctx)
}

// Stop waits for the loop to exit. Safe to call when never started.
func (w *CustodyWatchdog) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *CustodyWatchdog) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.CheckInterval)
	defer ticker.Stop()

	w.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

// Check runs one scan. Exposed for tests and manual triggers.
func (w *CustodyWatchdog) Check(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.opts.OverdueAfter)
	overdue, err := w.store.OverdueSettlements(ctx, cutoff)
	if err != nil {
		w.log.Error().Err(err).Msg("overdue scan failed")
		return
	}

	if w.metrics != nil {
		w.metrics.SettlementsOverdue.Set(float64(len(overdue)))
	}
	if len(overdue) == 0 {
		w.clearAlert()
		return
	}

	oldest := overdue[0].SettlementDate
	var total int64
	for _, s := range overdue {
		if s.SettlementDate.Before(oldest) {
			oldest = s.SettlementDate
		}
		total += s.Amount.Satang()
	}

	w.log.Warn().
		Int("count", len(overdue)).
		Time("oldest", oldest).
		Msg("overdue settlements detected")

	if w.shouldAlert() {
		w.sendAlert(ctx, Alert{
			Count:       len(overdue),
			OldestDate:  oldest.Format("2006-01-02"),
			TotalBaht:   fmt.Sprintf("%d.%02d", total/100, total%100),
			GeneratedAt: time.Now().UTC(),
		})
	}
}

// shouldAlert limits alerts to one per 24 hours to avoid spamming ops.
func (w *CustodyWatchdog) shouldAlert() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastAlertAt) > 24*time.Hour
}

func (w *CustodyWatchdog) clearAlert() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastAlertAt = time.Time{}
}

func (w *CustodyWatchdog) sendAlert(ctx context.Context, alert Alert) {
	var body []byte
	var err error

	if w.opts.BodyTemplate != "" {
		body, err = w.renderTemplate(alert)
		if err != nil {
			w.log.Error().Err(err).Msg("alert template error")
			return
		}
	} else {
		body, err = json.Marshal(map[string]any{
			"content": fmt.Sprintf(
				"**Overdue Settlements**\n\n"+
					"Pending past deadline: **%d**\n"+
					"Oldest settlement date: %s\n"+
					"Total held: %s THB\n\n"+
					"Merchants are waiting on transfers.",
				alert.Count, alert.OldestDate, alert.TotalBaht,
			),
		})
		if err != nil {
			w.log.Error().Err(err).Msg("alert marshal error")
			return
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.opts.AlertURL, bytes.NewReader(body))
	if err != nil {
		w.log.Error().Err(err).Msg("alert request error")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range w.opts.Headers {
		req.Header.Set(key, value)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.log.Error().Err(err).Msg("alert send error")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		w.log.Info().Int("status_code", resp.StatusCode).Int("count", alert.Count).Msg("overdue alert sent")
		w.mu.Lock()
		w.lastAlertAt = time.Now()
		w.mu.Unlock()
	} else {
		w.log.Warn().Int("status_code", resp.StatusCode).Msg("overdue alert rejected")
	}
}

func (w *CustodyWatchdog) renderTemplate(alert Alert) ([]byte, error) {
	tmpl, err := template.New("alert").Parse(w.opts.BodyTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, alert); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}
