package storage

import (
	"time"

	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
)

// Merchant is a food-court store. Token is the derived 20-digit identifier
// used as ref1 in QR payloads and webhook routing; it is recomputed whenever
// the scoping tuple changes.
type Merchant struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	TaxID         string    `json:"tax_id,omitempty"`
	BillerID      string    `json:"biller_id,omitempty"`
	GroupID       int64     `json:"group_id"`
	SiteID        int64     `json:"site_id"`
	DefaultMenuID int64     `json:"default_menu_id"`
	Token         string    `json:"token"`
	CallbackURL   string    `json:"callback_url,omitempty"`
	LocationName  string    `json:"location_name,omitempty"`
	Latitude      *float64  `json:"latitude,omitempty"`
	Longitude     *float64  `json:"longitude,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Menu is one priced item a merchant sells. The menu id feeds the last
// segment of the merchant token, so a QR can point at a specific item.
type Menu struct {
	ID          int64        `json:"id"`
	MerchantID  int64        `json:"store_id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	UnitPrice   money.Amount `json:"unit_price"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// StoreQuickAmount is a preset charge amount shown on the merchant's POS
// keypad, ordered by display position.
type StoreQuickAmount struct {
	ID           int64        `json:"id"`
	MerchantID   int64        `json:"store_id"`
	Amount       money.Amount `json:"amount"`
	Label        string       `json:"label,omitempty"`
	DisplayOrder int          `json:"display_order"`
	Active       bool         `json:"active"`
}

// ProfileScope selects which scoping key a banking profile binds to.
type ProfileScope string

const (
	ScopeGroup ProfileScope = "group"
	ScopeSite  ProfileScope = "site"
	ScopeStore ProfileScope = "store"
)

// BankingProfile holds the rail credentials that apply to a scope. Exactly
// the scope-key field matching Scope is set; narrower keys are nil.
type BankingProfile struct {
	ID           int64        `json:"id"`
	Scope        ProfileScope `json:"scope"`
	GroupID      *int64       `json:"group_id,omitempty"`
	SiteID       *int64       `json:"site_id,omitempty"`
	StoreID      *int64       `json:"store_id,omitempty"`
	ProviderType string       `json:"provider_type"`
	Active       bool         `json:"active"`

	SCBAPIKey      string `json:"-"`
	SCBAPISecret   string `json:"-"`
	SCBBillerID    string `json:"-"`
	SCBCallbackURL string `json:"-"`

	KBankCustomerID     string `json:"-"`
	KBankConsumerSecret string `json:"-"`

	OmisePublicKey string `json:"-"`
	OmiseSecretKey string `json:"-"`

	StripeSecretKey string `json:"-"`

	MPayMerchantID string `json:"-"`
	MPaySecretKey  string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FCIDStatus is the stored-value token lifecycle state.
type FCIDStatus string

const (
	FCIDActive   FCIDStatus = "active"
	FCIDUsed     FCIDStatus = "used"
	FCIDRefunded FCIDStatus = "refunded"
	FCIDExpired  FCIDStatus = "expired"
)

// FoodCourtID is the bearer stored-value token. InitialAmount is the total
// ever credited (mint plus top-ups), never decremented.
type FoodCourtID struct {
	Code           string               `json:"code"`
	InitialAmount  money.Amount         `json:"initial_amount"`
	CurrentBalance money.Amount         `json:"current_balance"`
	Method         paymentmethod.Method `json:"payment_method"`
	Status         FCIDStatus           `json:"status"`
	CustomerID     *int64               `json:"customer_id,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// CounterTransactionKind distinguishes the counter-side ledger entries.
type CounterTransactionKind string

const (
	CounterExchange CounterTransactionKind = "exchange"
	CounterTopUp    CounterTransactionKind = "topup"
	CounterRefund   CounterTransactionKind = "refund"
)

// CounterTransaction is the append-only record of a counter-side mint,
// top-up, or refund.
type CounterTransaction struct {
	ID            int64                  `json:"id"`
	FCIDCode      string                 `json:"fcid_code"`
	Kind          CounterTransactionKind `json:"kind"`
	CounterID     string                 `json:"counter_id,omitempty"`
	CounterUserID string                 `json:"counter_user_id,omitempty"`
	Amount        money.Amount           `json:"amount"`
	Method        paymentmethod.Method   `json:"payment_method"`
	Details       *paymentmethod.Details `json:"payment_details,omitempty"`
	Status        string                 `json:"status"`
	CreatedAt     time.Time              `json:"created_at"`
}

// StoreTransaction is the append-only record of a merchant-side debit.
type StoreTransaction struct {
	ID         int64        `json:"id"`
	FCIDCode   string       `json:"fcid_code"`
	MerchantID int64        `json:"store_id"`
	Amount     money.Amount `json:"amount"`
	Status     string       `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
}

// PaymentStatus is the customer-facing receipt state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// PaymentTransaction is the customer-facing receipt. CustomerID is nil for
// anonymous webhook payments; anonymity is derived at read time rather than
// through a placeholder customer row.
type PaymentTransaction struct {
	ID            int64                `json:"id"`
	CustomerID    *int64               `json:"customer_id,omitempty"`
	MerchantID    *int64               `json:"store_id,omitempty"`
	Amount        money.Amount         `json:"amount"`
	Method        paymentmethod.Method `json:"payment_method"`
	Status        PaymentStatus        `json:"status"`
	ReceiptNumber string               `json:"receipt_number"`
	FCIDCode      *string              `json:"foodcourt_id,omitempty"`
	Ref1          string               `json:"ref1,omitempty"`
	Ref2          string               `json:"ref2,omitempty"`
	Ref3          string               `json:"ref3,omitempty"`
	BankAccount   string               `json:"bank_account,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

// BackTransactionStatus is the lifecycle of a normalized rail callback.
type BackTransactionStatus string

const (
	BackReceived BackTransactionStatus = "received"
	BackMatched  BackTransactionStatus = "matched"
	BackSettled  BackTransactionStatus = "settled"
	BackFailed   BackTransactionStatus = "failed"
)

// BackTransaction is the canonical, durable record of a completed
// customer-to-merchant payment as reported by a rail webhook. MerchantID is
// nil when ref1 matched no merchant; the row is kept for audit regardless.
type BackTransaction struct {
	ID            int64                 `json:"id"`
	Rail          string                `json:"rail"`
	Ref1          string                `json:"ref1"`
	Ref2          string                `json:"ref2,omitempty"`
	Ref3          string                `json:"ref3,omitempty"`
	Amount        money.Amount          `json:"amount"`
	PaidAt        time.Time             `json:"paid_at"`
	SlipReference string                `json:"slip_reference,omitempty"`
	BankAccount   string                `json:"bank_account,omitempty"`
	MerchantID    *int64                `json:"store_id,omitempty"`
	Status        BackTransactionStatus `json:"status"`
	RawPayload    []byte                `json:"-"`
	CreatedAt     time.Time             `json:"created_at"`
}

// SettlementStatus is the per-merchant daily obligation lifecycle.
type SettlementStatus string

const (
	SettlementPending     SettlementStatus = "pending"
	SettlementTransferred SettlementStatus = "transferred"
	SettlementNotified    SettlementStatus = "notified"
)

// Settlement is the daily roll-up of what the operator owes one merchant.
// Exactly one row exists per (merchant, day) once created.
type Settlement struct {
	ID               int64            `json:"id"`
	MerchantID       int64            `json:"store_id"`
	SettlementDate   time.Time        `json:"settlement_date"`
	Amount           money.Amount     `json:"amount"`
	Status           SettlementStatus `json:"status"`
	TransferredAt    *time.Time       `json:"transferred_at,omitempty"`
	NotifiedAt       *time.Time       `json:"notified_at,omitempty"`
	ReceiptPrintedAt *time.Time       `json:"receipt_printed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Customer is an optional identity an FCID may be bound to.
type Customer struct {
	ID              int64     `json:"id"`
	Phone           string    `json:"phone"`
	Name            string    `json:"name,omitempty"`
	LineUserID      string    `json:"line_user_id,omitempty"`
	PromptPayNumber string    `json:"promptpay_number,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// CryptoStatus is the on-chain confirmation state.
type CryptoStatus string

const (
	CryptoPending   CryptoStatus = "pending"
	CryptoConfirmed CryptoStatus = "confirmed"
	CryptoFailed    CryptoStatus = "failed"
)

// CryptoTransaction tracks an on-chain payment awaiting confirmation by the
// watcher.
type CryptoTransaction struct {
	ID            int64        `json:"id"`
	MerchantID    int64        `json:"store_id"`
	FCIDCode      *string      `json:"foodcourt_id,omitempty"`
	TxHash        string       `json:"tx_hash"`
	Address       string       `json:"blockchain_address,omitempty"`
	CryptoType    string       `json:"crypto_type"`
	Amount        money.Amount `json:"amount"`
	Status        CryptoStatus `json:"status"`
	ExplorerURL   string       `json:"explorer_url,omitempty"`
	LastCheckedAt *time.Time   `json:"last_checked,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// NotificationStatus is the delivery state of a queued merchant callback.
type NotificationStatus string

const (
	NotificationQueued    NotificationStatus = "queued"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationDead      NotificationStatus = "dead"
)

// Notification is a queued outbound callback to a merchant (settlement
// notices, refund notices). Delivery is at-least-once with exponential
// retry; exhausted entries park as dead for manual replay.
type Notification struct {
	ID            int64              `json:"id"`
	DeliveryID    string             `json:"delivery_id"`
	Kind          string             `json:"kind"`
	MerchantID    *int64             `json:"store_id,omitempty"`
	URL           string             `json:"url"`
	Payload       []byte             `json:"payload"`
	Attempts      int                `json:"attempts"`
	MaxAttempts   int                `json:"max_attempts"`
	Status        NotificationStatus `json:"status"`
	LastError     string             `json:"last_error,omitempty"`
	NextAttemptAt time.Time          `json:"next_attempt_at"`
	DeliveredAt   *time.Time         `json:"delivered_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// BackTransactionQuery filters the audit report. Limit is clamped to
// MaxReportLimit.
type BackTransactionQuery struct {
	MerchantID *int64
	Start      *time.Time
	End        *time.Time
	Limit      int
}

// MaxReportLimit bounds report queries.
const MaxReportLimit = 2000

// SettlementQuery filters settlement listings.
type SettlementQuery struct {
	MerchantID   *int64
	Date         *time.Time
	Status       *SettlementStatus
	NotifiedOnly bool
	Limit        int
}

// DebitUpdate is the atomic write set for one escrow debit: conditional
// balance swap plus ledger appends, all in one transaction.
type DebitUpdate struct {
	Code            string
	ExpectedBalance money.Amount
	NewBalance      money.Amount
	NewStatus       FCIDStatus
	StoreTxn        *StoreTransaction
	PaymentTxn      *PaymentTransaction
}

// TopUpUpdate is the atomic write set for one escrow top-up.
type TopUpUpdate struct {
	Code            string
	ExpectedBalance money.Amount
	NewBalance      money.Amount
	NewInitial      money.Amount
	CounterTxn      *CounterTransaction
}

// RefundUpdate is the atomic write set for one escrow refund. The balance
// is zeroed and the status becomes refunded, terminally.
type RefundUpdate struct {
	Code            string
	ExpectedBalance money.Amount
	CounterTxn      *CounterTransaction
}
