package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/cryptowatch"
	"github.com/FoodCourtHub/server/internal/escrow"
	"github.com/FoodCourtHub/server/internal/settlement"
	"github.com/FoodCourtHub/server/internal/storage"
)

// SettlementSweep creates the daily settlement rows for the current local
// day. CreateDaily skips merchants that already have a row, so a repeat
// run is harmless.
func SettlementSweep(svc *settlement.Service, loc *time.Location) JobFunc {
	return func(ctx context.Context) error {
		_, err := svc.CreateDaily(ctx, time.Now().In(loc))
		return err
	}
}

// BalanceReset expires stored-value tokens minted before the current local
// day. When opsURL is set, a summary notification is queued so the counter
// knows how many refund receptacles were swept overnight.
func BalanceReset(engine *escrow.Engine, store storage.Store, loc *time.Location, opsURL string, log zerolog.Logger) JobFunc {
	return func(ctx context.Context) error {
		local := time.Now().In(loc)
		cutoff := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

		expired, err := engine.ExpireStale(ctx, cutoff)
		if err != nil {
			return err
		}
		if expired == 0 || opsURL == "" {
			return nil
		}

		payload, err := json.Marshal(map[string]interface{}{
			"event":      "balance.reset",
			"expired":    expired,
			"reset_date": cutoff.Format("2006-01-02"),
		})
		if err != nil {
			return fmt.Errorf("scheduler: marshal reset summary: %w", err)
		}
		_, err = store.EnqueueNotification(ctx, &storage.Notification{
			DeliveryID:    "dl_" + uuid.NewString(),
			Kind:          "balance_reset",
			URL:           opsURL,
			Payload:       payload,
			MaxAttempts:   5,
			Status:        storage.NotificationQueued,
			NextAttemptAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("scheduler: queue reset summary: %w", err)
		}
		log.Info().Int("expired", expired).Str("reset_date", cutoff.Format("2006-01-02")).
			Msg("balance reset swept")
		return nil
	}
}

// CryptoPoll settles pending on-chain payments.
func CryptoPoll(w *cryptowatch.Watcher) JobFunc {
	return func(ctx context.Context) error {
		_, err := w.Poll(ctx)
		return err
	}
}
