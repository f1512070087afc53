// Package notify drains the merchant notification queue. Deliveries are
// signed, retried with exponential backoff, and parked as dead after the
// attempt budget runs out.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/auth"
	"github.com/FoodCourtHub/server/internal/circuitbreaker"
	"github.com/FoodCourtHub/server/internal/httputil"
	"github.com/FoodCourtHub/server/internal/metrics"
	"github.com/FoodCourtHub/server/internal/storage"
)

// RetryConfig shapes the backoff between delivery attempts.
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Timeout         time.Duration
}

// DefaultRetryConfig matches the delivery expectations of POS vendors:
// quick first retry, then back off to minutes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 30 * time.Second,
		MaxInterval:     15 * time.Minute,
		Multiplier:      2.0,
		Timeout:         10 * time.Second,
	}
}

// Worker polls the notification queue and delivers due entries.
type Worker struct {
	store        storage.Store
	signer       *auth.Signer
	breakers     *circuitbreaker.Manager
	retryCfg     RetryConfig
	httpClient   *http.Client
	log          zerolog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration
	batchSize    int
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// Options configures the notification worker.
type Options struct {
	Store        storage.Store
	Signer       *auth.Signer
	Breakers     *circuitbreaker.Manager
	RetryConfig  RetryConfig
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	PollInterval time.Duration
	BatchSize    int
}

func NewWorker(opts Options) *Worker {
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = 10
	}
	if opts.RetryConfig.Timeout == 0 {
		opts.RetryConfig = DefaultRetryConfig()
	}
	if opts.Signer == nil {
		opts.Signer = auth.NewSigner("")
	}
	return &Worker{
		store:        opts.Store,
		signer:       opts.Signer,
		breakers:     opts.Breakers,
		retryCfg:     opts.RetryConfig,
		httpClient:   httputil.NewClient(opts.RetryConfig.Timeout),
		log:          opts.Logger.With().Str("component", "notify").Logger(),
		metrics:      opts.Metrics,
		pollInterval: opts.PollInterval,
		batchSize:    opts.BatchSize,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the polling loop.
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop waits for the loop to exit.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.log.Info().Dur("poll_interval", w.pollInterval).Msg("notification worker started")

	for {
		select {
		case <-w.stopChan:
			w.log.Info().Msg("notification worker stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessDue(ctx)
		}
	}
}

// ProcessDue delivers one batch of due notifications. Exposed so the
// scheduler and tests can force a drain without waiting for the ticker.
func (w *Worker) ProcessDue(ctx context.Context) {
	due, err := w.store.DueNotifications(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("dequeue notifications failed")
		return
	}
	for _, n := range due {
		w.deliver(ctx, n)
	}
}

func (w *Worker) deliver(ctx context.Context, n *storage.Notification) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, w.retryCfg.Timeout)
	err := w.send(reqCtx, n)
	cancel()

	if err == nil {
		if markErr := w.store.MarkNotificationDelivered(ctx, n.ID, time.Now().UTC()); markErr != nil {
			w.log.Error().Err(markErr).Str("delivery_id", n.DeliveryID).Msg("mark delivered failed")
		}
		if w.metrics != nil {
			w.metrics.ObserveNotification(n.Kind, "delivered", time.Since(start))
		}
		w.log.Info().
			Str("delivery_id", n.DeliveryID).
			Str("kind", n.Kind).
			Int("attempts", n.Attempts+1).
			Dur("duration", time.Since(start)).
			Msg("notification delivered")
		return
	}

	next := time.Now().UTC().Add(w.backoff(n.Attempts + 1))
	if markErr := w.store.MarkNotificationFailed(ctx, n.ID, err.Error(), next); markErr != nil {
		w.log.Error().Err(markErr).Str("delivery_id", n.DeliveryID).Msg("mark failed failed")
		return
	}

	if n.Attempts+1 >= n.MaxAttempts {
		if w.metrics != nil {
			w.metrics.ObserveNotification(n.Kind, "dead", time.Since(start))
		}
		w.log.Warn().
			Str("delivery_id", n.DeliveryID).
			Str("kind", n.Kind).
			Int("attempts", n.Attempts+1).
			Err(err).
			Msg("notification dead after final attempt")
		return
	}

	if w.metrics != nil {
		w.metrics.ObserveNotification(n.Kind, "retry", time.Since(start))
	}
	w.log.Warn().
		Str("delivery_id", n.DeliveryID).
		Str("kind", n.Kind).
		Int("attempts", n.Attempts+1).
		Time("next_attempt", next).
		Err(err).
		Msg("notification delivery failed, retry scheduled")
}

func (w *Worker) send(ctx context.Context, n *storage.Notification) error {
	do := func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(n.Payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		w.signer.SignRequest(req, n.DeliveryID, n.Payload)

		resp, err := w.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("send request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("received status %d from %s", resp.StatusCode, n.URL)
		}
		return nil, nil
	}

	var err error
	if w.breakers != nil {
		_, err = w.breakers.Execute(circuitbreaker.ServiceNotify, do)
	} else {
		_, err = do()
	}
	return err
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := w.retryCfg.InitialInterval
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * w.retryCfg.Multiplier)
		if d > w.retryCfg.MaxInterval {
			return w.retryCfg.MaxInterval
		}
	}
	return d
}
