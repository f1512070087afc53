// Package escrow is the stored-value core: minting FCID tokens at the
// exchange counter, debiting them at store checkouts, topping up, and
// refunding the remainder. Every balance movement goes through a
// compare-and-swap against storage so concurrent spends of the same bearer
// token cannot double-spend.
package escrow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
	"github.com/FoodCourtHub/server/internal/storage"
)

const (
	// maxSwapRetries bounds re-reads when a conditional balance update
	// loses to a concurrent writer.
	maxSwapRetries = 3
	// maxMintRetries bounds code regeneration on the (rare) collision of a
	// generated FCID code.
	maxMintRetries = 5
	// codeRandomDigits is the width of the random numeric suffix in an
	// FCID code.
	codeRandomDigits = 5
)

// Engine runs the stored-value lifecycle against a Store.
type Engine struct {
	store storage.Store
	log   zerolog.Logger
}

// NewEngine builds an escrow engine.
func NewEngine(store storage.Store, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log.With().Str("component", "escrow").Logger()}
}

// MintRequest describes an exchange-counter mint.
type MintRequest struct {
	Amount        money.Amount
	Method        paymentmethod.Method
	Details       *paymentmethod.Details
	CustomerPhone string
	CounterID     string
	CounterUserID string
}

// Mint creates a new active FCID carrying the paid amount, along with its
// exchange counter transaction. A zero amount mints an empty receptacle
// waiting to be topped up. When a customer phone is supplied the token is
// bound to that customer, creating the customer record on first sight.
func (e *Engine) Mint(ctx context.Context, req MintRequest) (*storage.FoodCourtID, error) {
	if req.Amount.IsNegative() {
		return nil, errors.E(errors.ErrCodeInvalidAmount, "mint amount cannot be negative")
	}
	if !paymentmethod.Valid(req.Method) {
		return nil, errors.E(errors.ErrCodeInvalidField, "unknown payment method %q", req.Method)
	}
	if err := req.Details.Validate(req.Method); err != nil {
		return nil, err
	}

	var customerID *int64
	if req.CustomerPhone != "" {
		c, err := e.findOrCreateCustomer(ctx, req.CustomerPhone)
		if err != nil {
			return nil, err
		}
		customerID = &c.ID
	}

	mint := &storage.CounterTransaction{
		Kind:          storage.CounterExchange,
		CounterID:     req.CounterID,
		CounterUserID: req.CounterUserID,
		Amount:        req.Amount,
		Method:        req.Method,
		Details:       req.Details,
		Status:        "completed",
	}

	for attempt := 0; attempt < maxMintRetries; attempt++ {
		code, err := e.newCode(ctx)
		if err != nil {
			return nil, err
		}
		f, err := e.store.CreateFCID(ctx, &storage.FoodCourtID{
			Code:           code,
			InitialAmount:  req.Amount,
			CurrentBalance: req.Amount,
			Method:         req.Method,
			Status:         storage.FCIDActive,
			CustomerID:     customerID,
		}, mint)
		if err == storage.ErrDuplicate {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "create foodcourt id")
		}
		e.log.Info().Str("fcid", f.Code).Int64("amount", int64(f.InitialAmount)).
			Str("method", f.Method.String()).Msg("minted foodcourt id")
		return f, nil
	}
	return nil, errors.E(errors.ErrCodeInternalError, "could not allocate a unique foodcourt id code")
}

func (e *Engine) findOrCreateCustomer(ctx context.Context, phone string) (*storage.Customer, error) {
	c, err := e.store.GetCustomerByPhone(ctx, phone)
	if err == nil {
		return c, nil
	}
	if err != storage.ErrNotFound {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "lookup customer")
	}
	c, err = e.store.CreateCustomer(ctx, &storage.Customer{Phone: phone})
	if err == storage.ErrDuplicate {
		// Lost the race to another counter; the existing record wins.
		return e.store.GetCustomerByPhone(ctx, phone)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "create customer")
	}
	e.log.Info().Int64("customer_id", c.ID).
		Str("phone", logger.RedactPhone(c.Phone)).Msg("registered customer")
	return c, nil
}

// newCode generates FC-YYYYMMDD-NNNNN with a crypto-random suffix.
func (e *Engine) newCode(_ context.Context) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeRandomDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternalError, err, "generate fcid code")
	}
	return fmt.Sprintf("FC-%s-%0*d", time.Now().UTC().Format("20060102"), codeRandomDigits, n.Int64()), nil
}

// DebitRequest describes a store checkout against an FCID.
type DebitRequest struct {
	Code       string
	MerchantID int64
	Amount     money.Amount
}

// Debit spends from an active FCID at a store. The final satang flips the
// token to used. A customer-bound token also gets a receipt row with a
// fresh receipt number; anonymous tokens record only the store ledger
// entry and the returned receipt is nil. Concurrent debits are serialized
// by the conditional swap; a loser re-reads and retries, so two
// simultaneous spends that together exceed the balance cannot both succeed.
func (e *Engine) Debit(ctx context.Context, req DebitRequest) (*storage.FoodCourtID, *storage.PaymentTransaction, error) {
	if !req.Amount.IsPositive() {
		return nil, nil, errors.E(errors.ErrCodeInvalidAmount, "debit amount must be positive")
	}

	for attempt := 0; ; attempt++ {
		f, err := e.getFCID(ctx, req.Code)
		if err != nil {
			return nil, nil, err
		}
		if f.Status != storage.FCIDActive {
			return nil, nil, statusError(f.Status)
		}
		if req.Amount > f.CurrentBalance {
			return nil, nil, errors.E(errors.ErrCodeInsufficientBalance,
				"balance %s is less than charge %s", f.CurrentBalance.BahtString(), req.Amount.BahtString()).
				WithDetail("current_balance", int64(f.CurrentBalance)).
				WithDetail("requested", int64(req.Amount))
		}

		newBalance, err := f.CurrentBalance.Sub(req.Amount)
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeInvalidAmount, err, "compute new balance")
		}
		newStatus := storage.FCIDActive
		if newBalance.IsZero() {
			newStatus = storage.FCIDUsed
		}

		var pt *storage.PaymentTransaction
		if f.CustomerID != nil {
			receipt, err := e.nextReceiptNumber(ctx)
			if err != nil {
				return nil, nil, err
			}
			code := f.Code
			pt = &storage.PaymentTransaction{
				CustomerID:    f.CustomerID,
				MerchantID:    &req.MerchantID,
				Amount:        req.Amount,
				Method:        f.Method,
				Status:        storage.PaymentConfirmed,
				ReceiptNumber: receipt,
				FCIDCode:      &code,
			}
		}
		err = e.store.ApplyDebit(ctx, storage.DebitUpdate{
			Code:            f.Code,
			ExpectedBalance: f.CurrentBalance,
			NewBalance:      newBalance,
			NewStatus:       newStatus,
			StoreTxn: &storage.StoreTransaction{
				MerchantID: req.MerchantID,
				Amount:     req.Amount,
				Status:     "completed",
			},
			PaymentTxn: pt,
		})
		if err == storage.ErrStale {
			if attempt+1 >= maxSwapRetries {
				return nil, nil, errors.E(errors.ErrCodeConcurrentUpdate,
					"foodcourt id %s is being updated concurrently", f.Code)
			}
			continue
		}
		if err != nil {
			return nil, nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "apply debit")
		}

		f.CurrentBalance = newBalance
		f.Status = newStatus
		ev := e.log.Info().Str("fcid", f.Code).Int64("store_id", req.MerchantID).
			Int64("amount", int64(req.Amount))
		if pt != nil {
			ev = ev.Str("receipt", pt.ReceiptNumber)
		}
		ev.Msg("debited foodcourt id")
		return f, pt, nil
	}
}

// TopUpRequest describes a counter-side balance top-up.
type TopUpRequest struct {
	Code          string
	Amount        money.Amount
	Method        paymentmethod.Method
	Details       *paymentmethod.Details
	CounterID     string
	CounterUserID string
}

// TopUp adds value to an active FCID. Both the balance and the lifetime
// total rise; refund ceilings follow the balance, not the lifetime total.
func (e *Engine) TopUp(ctx context.Context, req TopUpRequest) (*storage.FoodCourtID, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.E(errors.ErrCodeInvalidAmount, "topup amount must be positive")
	}
	if !paymentmethod.Valid(req.Method) {
		return nil, errors.E(errors.ErrCodeInvalidField, "unknown payment method %q", req.Method)
	}
	if err := req.Details.Validate(req.Method); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		f, err := e.getFCID(ctx, req.Code)
		if err != nil {
			return nil, err
		}
		if f.Status != storage.FCIDActive {
			return nil, statusError(f.Status)
		}

		newBalance, err := f.CurrentBalance.Add(req.Amount)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidAmount, err, "compute new balance")
		}
		newInitial, err := f.InitialAmount.Add(req.Amount)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidAmount, err, "compute lifetime total")
		}

		err = e.store.ApplyTopUp(ctx, storage.TopUpUpdate{
			Code:            f.Code,
			ExpectedBalance: f.CurrentBalance,
			NewBalance:      newBalance,
			NewInitial:      newInitial,
			CounterTxn: &storage.CounterTransaction{
				Kind:          storage.CounterTopUp,
				CounterID:     req.CounterID,
				CounterUserID: req.CounterUserID,
				Amount:        req.Amount,
				Method:        req.Method,
				Details:       req.Details,
				Status:        "completed",
			},
		})
		if err == storage.ErrStale {
			if attempt+1 >= maxSwapRetries {
				return nil, errors.E(errors.ErrCodeConcurrentUpdate,
					"foodcourt id %s is being updated concurrently", f.Code)
			}
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "apply topup")
		}

		f.CurrentBalance = newBalance
		f.InitialAmount = newInitial
		e.log.Info().Str("fcid", f.Code).Int64("amount", int64(req.Amount)).Msg("topped up foodcourt id")
		return f, nil
	}
}

// RefundRequest describes a counter-side refund of the remaining balance.
type RefundRequest struct {
	Code          string
	CounterID     string
	CounterUserID string
}

// Refund returns the entire remaining balance and retires the token.
// Refunds are all-or-nothing; a token with zero balance has nothing to
// refund and a used or refunded token is terminal.
func (e *Engine) Refund(ctx context.Context, req RefundRequest) (money.Amount, error) {
	for attempt := 0; ; attempt++ {
		f, err := e.getFCID(ctx, req.Code)
		if err != nil {
			return 0, err
		}
		switch f.Status {
		case storage.FCIDActive:
			// refundable
		case storage.FCIDRefunded:
			return 0, errors.E(errors.ErrCodeAlreadyRefunded, "foodcourt id %s is already refunded", f.Code)
		default:
			return 0, statusError(f.Status)
		}
		if f.CurrentBalance.IsZero() {
			return 0, errors.E(errors.ErrCodeZeroBalance, "foodcourt id %s has no balance to refund", f.Code)
		}

		refunded := f.CurrentBalance
		err = e.store.ApplyRefund(ctx, storage.RefundUpdate{
			Code:            f.Code,
			ExpectedBalance: f.CurrentBalance,
			CounterTxn: &storage.CounterTransaction{
				Kind:          storage.CounterRefund,
				CounterID:     req.CounterID,
				CounterUserID: req.CounterUserID,
				Amount:        refunded,
				Method:        f.Method,
				Status:        "completed",
			},
		})
		if err == storage.ErrStale {
			if attempt+1 >= maxSwapRetries {
				return 0, errors.E(errors.ErrCodeConcurrentUpdate,
					"foodcourt id %s is being updated concurrently", f.Code)
			}
			continue
		}
		if err != nil {
			return 0, errors.Wrap(errors.ErrCodeDatabaseError, err, "apply refund")
		}

		e.log.Info().Str("fcid", f.Code).Int64("amount", int64(refunded)).Msg("refunded foodcourt id")
		return refunded, nil
	}
}

// Balance returns the token with its current state and ledger history.
func (e *Engine) Balance(ctx context.Context, code string) (*storage.FoodCourtID, []*storage.PaymentTransaction, error) {
	f, err := e.getFCID(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	history, err := e.store.ListPaymentTransactionsByFCID(ctx, code)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "list fcid history")
	}
	return f, history, nil
}

// ExpireStale flips tokens minted before cutoff from active to expired,
// clearing any residual balance, and returns how many were affected. Run
// by the daily reset job; unspent satang does not survive the reset.
func (e *Engine) ExpireStale(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := e.store.ExpireFCIDsBefore(ctx, cutoff)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeDatabaseError, err, "expire stale fcids")
	}
	if n > 0 {
		e.log.Info().Int("count", n).Time("cutoff", cutoff).Msg("expired stale foodcourt ids")
	}
	return n, nil
}

func (e *Engine) getFCID(ctx context.Context, code string) (*storage.FoodCourtID, error) {
	f, err := e.store.GetFCID(ctx, code)
	if err == storage.ErrNotFound {
		return nil, errors.E(errors.ErrCodeFoodCourtIDNotFound, "foodcourt id %s not found", code)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabaseError, err, "load foodcourt id")
	}
	return f, nil
}

func statusError(status storage.FCIDStatus) error {
	return errors.E(errors.ErrCodeNotActive, "foodcourt id is %s", status).
		WithDetail("status", string(status))
}

// nextReceiptNumber allocates RCP-YYYYMMDD-NNNNN from the per-day counter.
func (e *Engine) nextReceiptNumber(ctx context.Context) (string, error) {
	day := time.Now().UTC().Format("20060102")
	seq, err := e.store.NextReceiptSequence(ctx, day)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeDatabaseError, err, "allocate receipt number")
	}
	return fmt.Sprintf("RCP-%s-%05d", day, seq), nil
}
