package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
	"github.com/FoodCourtHub/server/internal/storage"
)

// PaidNotifier receives the "payment landed" signal so live surfaces (the
// signage coordinator) can flip their state. Implementations must not block.
type PaidNotifier interface {
	PaymentReceived(merchantID int64, ev Event)
}

// Archiver keeps raw callback payloads for dispute evidence. Failures
// are logged, never surfaced: losing an archive copy is recoverable,
// bouncing a bank delivery is not.
type Archiver interface {
	Archive(ctx context.Context, rail, slipRef string, payload []byte) error
}

// Processor turns normalized events into durable back transactions.
type Processor struct {
	store    storage.Store
	notifier PaidNotifier
	archive  Archiver
	log      zerolog.Logger
}

// NewProcessor builds a Processor. notifier and archive may be nil.
func NewProcessor(store storage.Store, notifier PaidNotifier, archive Archiver, log zerolog.Logger) *Processor {
	return &Processor{
		store:    store,
		notifier: notifier,
		archive:  archive,
		log:      log.With().Str("component", "webhook").Logger(),
	}
}

// Process persists ev and returns the stored row. A ref1 that matches no
// merchant still persists, unattributed, so no bank-confirmed payment is
// ever dropped; such orphans never reach settlements or recent-paid
// queries. Replays of the same slip return the prior row with
// created=false and change nothing.
func (p *Processor) Process(ctx context.Context, ev Event) (*storage.BackTransaction, bool, error) {
	if p.archive != nil && len(ev.Raw) > 0 {
		if err := p.archive.Archive(ctx, ev.Rail, ev.SlipReference, ev.Raw); err != nil {
			p.log.Warn().Err(err).Str("rail", ev.Rail).Msg("webhook archive write failed")
		}
	}

	bt := &storage.BackTransaction{
		Rail:          ev.Rail,
		Ref1:          ev.Ref1,
		Ref2:          ev.Ref2,
		Ref3:          ev.Ref3,
		Amount:        ev.Amount,
		PaidAt:        ev.PaidAt,
		SlipReference: ev.SlipReference,
		BankAccount:   ev.BankAccount,
		Status:        storage.BackReceived,
		RawPayload:    ev.Raw,
	}

	var pt *storage.PaymentTransaction
	merchant, err := p.store.GetMerchantByToken(ctx, ev.Ref1)
	switch err {
	case nil:
		bt.MerchantID = &merchant.ID
		bt.Status = storage.BackMatched
		receipt, rerr := p.receiptNumber(ctx, ev)
		if rerr != nil {
			return nil, false, rerr
		}
		pt = &storage.PaymentTransaction{
			MerchantID:    &merchant.ID,
			Amount:        ev.Amount,
			Method:        paymentmethod.PromptPay,
			Status:        storage.PaymentConfirmed,
			ReceiptNumber: receipt,
			Ref1:          ev.Ref1,
			Ref2:          ev.Ref2,
			Ref3:          ev.Ref3,
			BankAccount:   ev.BankAccount,
		}
	case storage.ErrNotFound:
		// The money moved even though the ref1 matches nothing, so the
		// receipt row is still written, unattributed, for the audit trail.
		receipt, rerr := p.receiptNumber(ctx, ev)
		if rerr != nil {
			return nil, false, rerr
		}
		pt = &storage.PaymentTransaction{
			Amount:        ev.Amount,
			Method:        paymentmethod.PromptPay,
			Status:        storage.PaymentConfirmed,
			ReceiptNumber: receipt,
			Ref1:          ev.Ref1,
			Ref2:          ev.Ref2,
			Ref3:          ev.Ref3,
			BankAccount:   ev.BankAccount,
		}
		p.log.Warn().Str("rail", ev.Rail).Str("ref1", logger.TruncateRef(ev.Ref1)).
			Msg("webhook ref1 matches no merchant, storing orphan")
	default:
		return nil, false, errors.Wrap(errors.ErrCodeDatabaseError, err, "lookup merchant by token")
	}

	created, stored, err := p.store.InsertBackTransaction(ctx, bt, pt)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeDatabaseError, err, "persist back transaction")
	}
	if !created {
		p.log.Info().Str("rail", ev.Rail).Str("slip", ev.SlipReference).
			Int64("id", stored.ID).Msg("duplicate webhook delivery, returning prior row")
		return stored, false, nil
	}

	p.log.Info().Str("rail", ev.Rail).Str("ref1", logger.TruncateRef(ev.Ref1)).
		Int64("amount", int64(ev.Amount)).Int64("id", stored.ID).Msg("recorded back transaction")

	if p.notifier != nil && stored.MerchantID != nil {
		p.notifier.PaymentReceived(*stored.MerchantID, ev)
	}
	return stored, true, nil
}

// receiptNumber derives a receipt from the slip reference when one exists,
// keeping bank statements and receipts correlatable; otherwise it draws
// from the daily counter.
func (p *Processor) receiptNumber(ctx context.Context, ev Event) (string, error) {
	if ev.SlipReference != "" {
		return fmt.Sprintf("RCP-%s-%s", ev.Rail, ev.SlipReference), nil
	}
	day := time.Now().UTC().Format("20060102")
	seq, err := p.store.NextReceiptSequence(ctx, day)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDatabaseError, err, "allocate receipt number")
	}
	return fmt.Sprintf("RCP-%s-%05d", day, seq), nil
}
