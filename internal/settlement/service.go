// Package settlement rolls matched back transactions into per-merchant
// daily obligations and walks them through pending, transferred, and
// notified.
package settlement

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

const (
	// ReceiptTransactionLimit caps how many recent rows a printed
	// settlement receipt itemizes.
	ReceiptTransactionLimit = 100
	// receiptWindow is how far back the receipt itemization reaches.
	receiptWindow = 24 * time.Hour
	// notifyMaxAttempts bounds delivery retries for merchant callbacks.
	notifyMaxAttempts = 5
)

// Service creates and advances settlements.
type Service struct {
	store storage.Store
	log   zerolog.Logger
}

// NewService builds a settlement service.
func NewService(store storage.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log.With().Str("component", "settlement").Logger()}
}

// CreateDaily sums each merchant's matched back transactions over the
// calendar day of date (UTC) and creates one pending settlement per
// merchant with a nonzero sum. Already-settled (merchant, day) pairs are
// skipped, so the operation is safe to repeat.
func (s *Service) CreateDaily(ctx context.Context, date time.Time) ([]*storage.Settlement, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	sums, err := s.store.SumBackTransactions(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "sum back transactions")
	}

	merchantIDs := make([]int64, 0, len(sums))
	for id := range sums {
		merchantIDs = append(merchantIDs, id)
	}
	sort.Slice(merchantIDs, func(i, j int) bool { return merchantIDs[i] < merchantIDs[j] })

	var created []*storage.Settlement
	for _, merchantID := range merchantIDs {
		amount := sums[merchantID]
		if !amount.IsPositive() {
			continue
		}
		wasCreated, stored, err := s.store.CreateSettlement(ctx, &storage.Settlement{
			MerchantID:     merchantID,
			SettlementDate: day,
			Amount:         amount,
			Status:         storage.SettlementPending,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "create settlement")
		}
		if !wasCreated {
			continue
		}
		created = append(created, stored)
	}
	s.log.Info().Str("date", day.Format("2006-01-02")).Int("created", len(created)).
		Int("merchants", len(merchantIDs)).Msg("daily settlement run")
	return created, nil
}

// MarkTransferred records that the operator paid the merchant. Only a
// pending settlement can transfer.
func (s *Service) MarkTransferred(ctx context.Context, id int64) (*storage.Settlement, error) {
	set, err := s.store.TransitionSettlement(ctx, id, storage.SettlementPending, storage.SettlementTransferred, time.Now().UTC())
	if err != nil {
		return nil, transitionError(err, id, storage.SettlementTransferred)
	}
	s.log.Info().Int64("settlement_id", id).Int64("store_id", set.MerchantID).Msg("settlement transferred")
	return set, nil
}

// NotifyMerchant advances a transferred settlement to notified and queues
// the callback to the merchant. A pending settlement cannot be notified;
// the money moves before the merchant hears about it.
func (s *Service) NotifyMerchant(ctx context.Context, id int64) (*storage.Settlement, error) {
	set, err := s.store.TransitionSettlement(ctx, id, storage.SettlementTransferred, storage.SettlementNotified, time.Now().UTC())
	if err != nil {
		return nil, transitionError(err, id, storage.SettlementNotified)
	}

	merchant, err := s.store.GetMerchant(ctx, set.MerchantID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "load merchant for notification")
	}
	if merchant.CallbackURL != "" {
		payload, err := json.Marshal(map[string]interface{}{
			"event":           "settlement.notified",
			"settlement_id":   set.ID,
			"store_id":        set.MerchantID,
			"settlement_date": set.SettlementDate.Format("2006-01-02"),
			"amount":          set.Amount.BahtString(),
			"transferred_at":  set.TransferredAt,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternalError, err, "marshal settlement notification")
		}
		if _, err := s.store.EnqueueNotification(ctx, &storage.Notification{
			DeliveryID:  "dl_" + uuid.NewString(),
			Kind:        "settlement",
			MerchantID:  &set.MerchantID,
			URL:         merchant.CallbackURL,
			Payload:     payload,
			MaxAttempts: notifyMaxAttempts,
		}); err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "queue settlement notification")
		}
	}
	s.log.Info().Int64("settlement_id", id).Int64("store_id", set.MerchantID).Msg("settlement notified")
	return set, nil
}

// Receipt is the printable settlement summary handed to the merchant.
type Receipt struct {
	Settlement   *storage.Settlement        `json:"settlement"`
	Merchant     *storage.Merchant          `json:"store"`
	Transactions []*storage.BackTransaction `json:"transactions"`
	Truncated    bool                       `json:"truncated"`
}

// ForReceipt loads the settlement with its merchant and the most recent
// paid transactions, oldest first, capped at ReceiptTransactionLimit, and
// stamps the print time.
func (s *Service) ForReceipt(ctx context.Context, id int64) (*Receipt, error) {
	set, err := s.store.GetSettlement(ctx, id)
	if err == storage.ErrNotFound {
		return nil, errors.E(errors.ErrCodeSettlementNotFound, "settlement %d not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "load settlement")
	}
	merchant, err := s.store.GetMerchant(ctx, set.MerchantID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "load merchant")
	}
	since := set.SettlementDate.Add(-receiptWindow)
	txns, err := s.store.RecentPaid(ctx, set.MerchantID, since, ReceiptTransactionLimit+1)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "load recent paid transactions")
	}
	truncated := false
	if len(txns) > ReceiptTransactionLimit {
		txns = txns[:ReceiptTransactionLimit]
		truncated = true
	}
	if err := s.store.MarkSettlementReceiptPrinted(ctx, id, time.Now().UTC()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "stamp receipt print time")
	}
	return &Receipt{Settlement: set, Merchant: merchant, Transactions: txns, Truncated: truncated}, nil
}

// List returns settlements matching q.
func (s *Service) List(ctx context.Context, q storage.SettlementQuery) ([]*storage.Settlement, error) {
	out, err := s.store.ListSettlements(ctx, q)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "list settlements")
	}
	return out, nil
}

// Overdue lists settlements still pending on or before the cutoff day.
func (s *Service) Overdue(ctx context.Context, cutoff time.Time) ([]*storage.Settlement, error) {
	out, err := s.store.OverdueSettlements(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "list overdue settlements")
	}
	return out, nil
}

// Total sums the amounts of a settlement slice.
func Total(sets []*storage.Settlement) money.Amount {
	var total money.Amount
	for _, set := range sets {
		total += set.Amount
	}
	return total
}

func transitionError(err error, id int64, to storage.SettlementStatus) error {
	switch err {
	case storage.ErrNotFound:
		return errors.E(errors.ErrCodeSettlementNotFound, "settlement %d not found", id)
	case storage.ErrStale:
		return errors.E(errors.ErrCodeIllegalTransition, "settlement %d cannot move to %s from its current status", id, to)
	default:
		return errors.Wrap(errors.ErrCodeDatabaseError, err, "transition settlement")
	}
}
