// Package storage persists the hub's domain state: merchants and their
// banking profiles, stored-value tokens with their ledgers, normalized rail
// callbacks, daily settlements, and the outbound notification queue. Two
// backends implement the same Store interface; the memory backend serves
// tests and demos, postgres serves production.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/FoodCourtHub/server/internal/money"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStale is returned when a conditional update lost a race and the
	// caller should re-read and retry.
	ErrStale = errors.New("record changed concurrently")
	// ErrDuplicate is returned when a uniqueness constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the persistence boundary. All methods honor ctx cancellation;
// the postgres backend additionally caps each call with a query timeout.
type Store interface {
	// Merchants.
	CreateMerchant(ctx context.Context, m *Merchant) (*Merchant, error)
	GetMerchant(ctx context.Context, id int64) (*Merchant, error)
	GetMerchantByToken(ctx context.Context, token string) (*Merchant, error)
	UpdateMerchant(ctx context.Context, m *Merchant) (*Merchant, error)
	ListMerchants(ctx context.Context, activeOnly bool) ([]*Merchant, error)

	// Menus and POS quick amounts. Lists return active rows only: menus
	// by name, quick amounts by display order then amount.
	CreateMenu(ctx context.Context, m *Menu) (*Menu, error)
	ListMenus(ctx context.Context, merchantID int64) ([]*Menu, error)
	CreateQuickAmount(ctx context.Context, qa *StoreQuickAmount) (*StoreQuickAmount, error)
	ListQuickAmounts(ctx context.Context, merchantID int64) ([]*StoreQuickAmount, error)

	// Banking profiles.
	CreateBankingProfile(ctx context.Context, p *BankingProfile) (*BankingProfile, error)
	GetBankingProfile(ctx context.Context, id int64) (*BankingProfile, error)
	UpdateBankingProfile(ctx context.Context, p *BankingProfile) (*BankingProfile, error)
	// FindActiveProfile returns the active profile bound to (scope, key),
	// or ErrNotFound.
	FindActiveProfile(ctx context.Context, scope ProfileScope, key int64) (*BankingProfile, error)

	// Customers.
	CreateCustomer(ctx context.Context, c *Customer) (*Customer, error)
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error)

	// Stored-value tokens. CreateFCID persists the token together with its
	// minting counter transaction atomically. The Apply* methods perform a
	// conditional balance swap: if the stored balance no longer equals
	// ExpectedBalance, they return ErrStale and write nothing.
	CreateFCID(ctx context.Context, f *FoodCourtID, mint *CounterTransaction) (*FoodCourtID, error)
	GetFCID(ctx context.Context, code string) (*FoodCourtID, error)
	ApplyDebit(ctx context.Context, u DebitUpdate) error
	ApplyTopUp(ctx context.Context, u TopUpUpdate) error
	ApplyRefund(ctx context.Context, u RefundUpdate) error
	ListActiveFCIDs(ctx context.Context) ([]*FoodCourtID, error)
	ExpireFCIDsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// NextReceiptSequence returns the next per-day receipt counter value,
	// starting at 1, atomically.
	NextReceiptSequence(ctx context.Context, day string) (int64, error)

	// Payment receipts.
	CreatePaymentTransaction(ctx context.Context, pt *PaymentTransaction) (*PaymentTransaction, error)
	GetPaymentTransaction(ctx context.Context, id int64) (*PaymentTransaction, error)
	ListPaymentTransactionsByFCID(ctx context.Context, code string) ([]*PaymentTransaction, error)

	// Back transactions. InsertBackTransaction is idempotent on
	// (rail, slip_reference): a second arrival of the same slip returns
	// created=false with the already-stored row and writes nothing. When a
	// payment receipt accompanies a matched row, both persist atomically.
	InsertBackTransaction(ctx context.Context, bt *BackTransaction, pt *PaymentTransaction) (created bool, stored *BackTransaction, err error)
	// QueryBackTransactions lists rows newest first by paid_at.
	QueryBackTransactions(ctx context.Context, q BackTransactionQuery) ([]*BackTransaction, error)
	// RecentPaid returns matched rows for one merchant paid strictly
	// after since, oldest first. since is an exclusive cursor so pollers
	// can pass the last delivered paid_at without seeing it again.
	RecentPaid(ctx context.Context, merchantID int64, since time.Time, limit int) ([]*BackTransaction, error)
	// SumBackTransactions totals matched rows per merchant over [start, end).
	SumBackTransactions(ctx context.Context, start, end time.Time) (map[int64]money.Amount, error)

	// Settlements. CreateSettlement returns created=false when a row for
	// (merchant, day) already exists. TransitionSettlement moves a row
	// from one status to the next conditionally, returning ErrStale when
	// the stored status is not `from`.
	CreateSettlement(ctx context.Context, s *Settlement) (created bool, stored *Settlement, err error)
	GetSettlement(ctx context.Context, id int64) (*Settlement, error)
	TransitionSettlement(ctx context.Context, id int64, from, to SettlementStatus, at time.Time) (*Settlement, error)
	MarkSettlementReceiptPrinted(ctx context.Context, id int64, at time.Time) error
	ListSettlements(ctx context.Context, q SettlementQuery) ([]*Settlement, error)
	// OverdueSettlements lists pending rows whose settlement date is on or
	// before the cutoff day.
	OverdueSettlements(ctx context.Context, cutoff time.Time) ([]*Settlement, error)

	// Crypto confirmations.
	CreateCryptoTransaction(ctx context.Context, ct *CryptoTransaction) (*CryptoTransaction, error)
	ListPendingCryptoTransactions(ctx context.Context) ([]*CryptoTransaction, error)
	UpdateCryptoTransactionStatus(ctx context.Context, id int64, status CryptoStatus, checkedAt time.Time) error

	// Notification queue.
	EnqueueNotification(ctx context.Context, n *Notification) (*Notification, error)
	// DueNotifications returns queued entries whose next attempt time has
	// passed, oldest first.
	DueNotifications(ctx context.Context, now time.Time, limit int) ([]*Notification, error)
	MarkNotificationDelivered(ctx context.Context, id int64, at time.Time) error
	// MarkNotificationFailed records the failure and either reschedules or,
	// once attempts are exhausted, parks the entry as dead.
	MarkNotificationFailed(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error

	Ping(ctx context.Context) error
	Close() error
}

// NewStore builds a Store for the configured backend.
func NewStore(backend, connString string) (Store, error) {
	switch backend {
	case "memory", "":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(connString)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
