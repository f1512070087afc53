package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	_ "github.com/lib/pq"

	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	ownsDB bool
}

// NewPostgresStore opens a new connection pool and ensures the schema.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		// Close() error during initialization cleanup is not actionable;
		// the connection failure is what the caller needs.
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{db: db, ownsDB: true}
	if err := store.createPostgresTables(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an existing connection pool so it can be
// shared with other components.
func NewPostgresStoreWithDB(db *sql.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db, ownsDB: false}
	if err := store.createPostgresTables(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) createPostgresTables() error {
	schema := `
		CREATE TABLE IF NOT EXISTS merchants (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			tax_id TEXT NOT NULL DEFAULT '',
			biller_id TEXT NOT NULL DEFAULT '',
			group_id BIGINT NOT NULL,
			site_id BIGINT NOT NULL,
			default_menu_id BIGINT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			callback_url TEXT NOT NULL DEFAULT '',
			location_name TEXT NOT NULL DEFAULT '',
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS menus (
			id BIGSERIAL PRIMARY KEY,
			store_id BIGINT NOT NULL REFERENCES merchants(id),
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			unit_price BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS store_quick_amounts (
			id BIGSERIAL PRIMARY KEY,
			store_id BIGINT NOT NULL REFERENCES merchants(id),
			amount BIGINT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			display_order INT NOT NULL DEFAULT 0,
			active BOOLEAN NOT NULL DEFAULT TRUE
		);

		CREATE TABLE IF NOT EXISTS banking_profiles (
			id BIGSERIAL PRIMARY KEY,
			scope TEXT NOT NULL,
			group_id BIGINT,
			site_id BIGINT,
			store_id BIGINT,
			provider_type TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			scb_api_key TEXT NOT NULL DEFAULT '',
			scb_api_secret TEXT NOT NULL DEFAULT '',
			scb_biller_id TEXT NOT NULL DEFAULT '',
			scb_callback_url TEXT NOT NULL DEFAULT '',
			kbank_customer_id TEXT NOT NULL DEFAULT '',
			kbank_consumer_secret TEXT NOT NULL DEFAULT '',
			omise_public_key TEXT NOT NULL DEFAULT '',
			omise_secret_key TEXT NOT NULL DEFAULT '',
			stripe_secret_key TEXT NOT NULL DEFAULT '',
			mpay_merchant_id TEXT NOT NULL DEFAULT '',
			mpay_secret_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS customers (
			id BIGSERIAL PRIMARY KEY,
			phone TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			line_user_id TEXT NOT NULL DEFAULT '',
			promptpay_number TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS foodcourt_ids (
			code TEXT PRIMARY KEY,
			initial_amount BIGINT NOT NULL,
			current_balance BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			status TEXT NOT NULL,
			customer_id BIGINT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS counter_transactions (
			id BIGSERIAL PRIMARY KEY,
			fcid_code TEXT NOT NULL,
			kind TEXT NOT NULL,
			counter_id TEXT NOT NULL DEFAULT '',
			counter_user_id TEXT NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			payment_details JSONB,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS store_transactions (
			id BIGSERIAL PRIMARY KEY,
			fcid_code TEXT NOT NULL,
			store_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS payment_transactions (
			id BIGSERIAL PRIMARY KEY,
			customer_id BIGINT,
			store_id BIGINT,
			amount BIGINT NOT NULL,
			payment_method TEXT NOT NULL,
			status TEXT NOT NULL,
			receipt_number TEXT NOT NULL UNIQUE,
			foodcourt_id TEXT,
			ref1 TEXT NOT NULL DEFAULT '',
			ref2 TEXT NOT NULL DEFAULT '',
			ref3 TEXT NOT NULL DEFAULT '',
			bank_account TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS back_transactions (
			id BIGSERIAL PRIMARY KEY,
			rail TEXT NOT NULL,
			ref1 TEXT NOT NULL,
			ref2 TEXT NOT NULL DEFAULT '',
			ref3 TEXT NOT NULL DEFAULT '',
			amount BIGINT NOT NULL,
			paid_at TIMESTAMP NOT NULL,
			slip_reference TEXT NOT NULL DEFAULT '',
			bank_account TEXT NOT NULL DEFAULT '',
			store_id BIGINT,
			status TEXT NOT NULL,
			raw_payload JSONB,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS settlements (
			id BIGSERIAL PRIMARY KEY,
			store_id BIGINT NOT NULL,
			settlement_date DATE NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			transferred_at TIMESTAMP,
			notified_at TIMESTAMP,
			receipt_printed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (store_id, settlement_date)
		);

		CREATE TABLE IF NOT EXISTS crypto_transactions (
			id BIGSERIAL PRIMARY KEY,
			store_id BIGINT NOT NULL,
			foodcourt_id TEXT,
			tx_hash TEXT NOT NULL UNIQUE,
			blockchain_address TEXT NOT NULL DEFAULT '',
			crypto_type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			explorer_url TEXT NOT NULL DEFAULT '',
			last_checked TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS notifications (
			id BIGSERIAL PRIMARY KEY,
			delivery_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			store_id BIGINT,
			url TEXT NOT NULL,
			payload JSONB NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			max_attempts INTEGER NOT NULL DEFAULT 5,
			status TEXT NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			next_attempt_at TIMESTAMP NOT NULL,
			delivered_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);

		CREATE TABLE IF NOT EXISTS receipt_counters (
			day TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_back_transactions_slip
			ON back_transactions(rail, slip_reference) WHERE slip_reference <> '';
		CREATE INDEX IF NOT EXISTS idx_back_transactions_store_paid
			ON back_transactions(store_id, paid_at) WHERE store_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_back_transactions_paid
			ON back_transactions(paid_at);
		CREATE INDEX IF NOT EXISTS idx_settlements_status
			ON settlements(status, settlement_date);
		CREATE INDEX IF NOT EXISTS idx_counter_transactions_fcid
			ON counter_transactions(fcid_code);
		CREATE INDEX IF NOT EXISTS idx_store_transactions_fcid
			ON store_transactions(fcid_code);
		CREATE INDEX IF NOT EXISTS idx_payment_transactions_fcid
			ON payment_transactions(foodcourt_id) WHERE foodcourt_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_foodcourt_ids_status
			ON foodcourt_ids(status);
		CREATE INDEX IF NOT EXISTS idx_crypto_transactions_pending
			ON crypto_transactions(status) WHERE status = 'pending';
		CREATE INDEX IF NOT EXISTS idx_notifications_due
			ON notifications(status, next_attempt_at) WHERE status = 'queued';
		CREATE INDEX IF NOT EXISTS idx_banking_profiles_scope
			ON banking_profiles(scope, group_id, site_id, store_id) WHERE active;
	`
	_, err := s.db.Exec(schema)
	return err
}

const merchantColumns = `id, name, tax_id, biller_id, group_id, site_id, default_menu_id,
	token, callback_url, location_name, latitude, longitude, active, created_at, updated_at`

func scanMerchant(row interface{ Scan(...interface{}) error }) (*Merchant, error) {
	var m Merchant
	err := row.Scan(&m.ID, &m.Name, &m.TaxID, &m.BillerID, &m.GroupID, &m.SiteID,
		&m.DefaultMenuID, &m.Token, &m.CallbackURL, &m.LocationName,
		&m.Latitude, &m.Longitude, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) CreateMerchant(ctx context.Context, m *Merchant) (*Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO merchants (name, tax_id, biller_id, group_id, site_id, default_menu_id,
			token, callback_url, location_name, latitude, longitude, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		RETURNING `+merchantColumns,
		m.Name, m.TaxID, m.BillerID, m.GroupID, m.SiteID, m.DefaultMenuID,
		m.Token, m.CallbackURL, m.LocationName, m.Latitude, m.Longitude, m.Active, now)
	out, err := scanMerchant(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return out, err
}

func (s *PostgresStore) GetMerchant(ctx context.Context, id int64) (*Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanMerchant(s.db.QueryRowContext(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id))
}

func (s *PostgresStore) GetMerchantByToken(ctx context.Context, token string) (*Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanMerchant(s.db.QueryRowContext(ctx,
		`SELECT `+merchantColumns+` FROM merchants WHERE token = $1`, token))
}

func (s *PostgresStore) UpdateMerchant(ctx context.Context, m *Merchant) (*Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE merchants SET name = $2, tax_id = $3, biller_id = $4, group_id = $5,
			site_id = $6, default_menu_id = $7, token = $8, callback_url = $9,
			location_name = $10, latitude = $11, longitude = $12, active = $13,
			updated_at = $14
		WHERE id = $1
		RETURNING `+merchantColumns,
		m.ID, m.Name, m.TaxID, m.BillerID, m.GroupID, m.SiteID, m.DefaultMenuID,
		m.Token, m.CallbackURL, m.LocationName, m.Latitude, m.Longitude, m.Active,
		time.Now().UTC())
	out, err := scanMerchant(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return out, err
}

func (s *PostgresStore) ListMerchants(ctx context.Context, activeOnly bool) ([]*Merchant, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `SELECT ` + merchantColumns + ` FROM merchants`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMenu(ctx context.Context, m *Menu) (*Menu, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	out := *m
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO menus (store_id, name, description, unit_price, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		m.MerchantID, m.Name, m.Description, int64(m.UnitPrice), m.Active, now).Scan(&out.ID)
	if isForeignKeyViolation(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

func (s *PostgresStore) ListMenus(ctx context.Context, merchantID int64) ([]*Menu, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, name, description, unit_price, active, created_at, updated_at
		FROM menus WHERE store_id = $1 AND active
		ORDER BY name, id`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Menu
	for rows.Next() {
		var m Menu
		var price int64
		if err := rows.Scan(&m.ID, &m.MerchantID, &m.Name, &m.Description,
			&price, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.UnitPrice = money.Amount(price)
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateQuickAmount(ctx context.Context, qa *StoreQuickAmount) (*StoreQuickAmount, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	out := *qa
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO store_quick_amounts (store_id, amount, label, display_order, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		qa.MerchantID, int64(qa.Amount), qa.Label, qa.DisplayOrder, qa.Active).Scan(&out.ID)
	if isForeignKeyViolation(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) ListQuickAmounts(ctx context.Context, merchantID int64) ([]*StoreQuickAmount, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_id, amount, label, display_order, active
		FROM store_quick_amounts WHERE store_id = $1 AND active
		ORDER BY display_order, amount`, merchantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*StoreQuickAmount
	for rows.Next() {
		var qa StoreQuickAmount
		var amount int64
		if err := rows.Scan(&qa.ID, &qa.MerchantID, &amount, &qa.Label,
			&qa.DisplayOrder, &qa.Active); err != nil {
			return nil, err
		}
		qa.Amount = money.Amount(amount)
		out = append(out, &qa)
	}
	return out, rows.Err()
}

const profileColumns = `id, scope, group_id, site_id, store_id, provider_type, active,
	scb_api_key, scb_api_secret, scb_biller_id, scb_callback_url,
	kbank_customer_id, kbank_consumer_secret, omise_public_key, omise_secret_key,
	stripe_secret_key, mpay_merchant_id, mpay_secret_key, created_at, updated_at`

func scanProfile(row interface{ Scan(...interface{}) error }) (*BankingProfile, error) {
	var p BankingProfile
	err := row.Scan(&p.ID, &p.Scope, &p.GroupID, &p.SiteID, &p.StoreID, &p.ProviderType,
		&p.Active, &p.SCBAPIKey, &p.SCBAPISecret, &p.SCBBillerID, &p.SCBCallbackURL,
		&p.KBankCustomerID, &p.KBankConsumerSecret, &p.OmisePublicKey, &p.OmiseSecretKey,
		&p.StripeSecretKey, &p.MPayMerchantID, &p.MPaySecretKey, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) CreateBankingProfile(ctx context.Context, p *BankingProfile) (*BankingProfile, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO banking_profiles (scope, group_id, site_id, store_id, provider_type, active,
			scb_api_key, scb_api_secret, scb_biller_id, scb_callback_url,
			kbank_customer_id, kbank_consumer_secret, omise_public_key, omise_secret_key,
			stripe_secret_key, mpay_merchant_id, mpay_secret_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
		RETURNING `+profileColumns,
		p.Scope, p.GroupID, p.SiteID, p.StoreID, p.ProviderType, p.Active,
		p.SCBAPIKey, p.SCBAPISecret, p.SCBBillerID, p.SCBCallbackURL,
		p.KBankCustomerID, p.KBankConsumerSecret, p.OmisePublicKey, p.OmiseSecretKey,
		p.StripeSecretKey, p.MPayMerchantID, p.MPaySecretKey, now)
	return scanProfile(row)
}

func (s *PostgresStore) GetBankingProfile(ctx context.Context, id int64) (*BankingProfile, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM banking_profiles WHERE id = $1`, id))
}

func (s *PostgresStore) UpdateBankingProfile(ctx context.Context, p *BankingProfile) (*BankingProfile, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		UPDATE banking_profiles SET scope = $2, group_id = $3, site_id = $4, store_id = $5,
			provider_type = $6, active = $7, scb_api_key = $8, scb_api_secret = $9,
			scb_biller_id = $10, scb_callback_url = $11, kbank_customer_id = $12,
			kbank_consumer_secret = $13, omise_public_key = $14, omise_secret_key = $15,
			stripe_secret_key = $16, mpay_merchant_id = $17, mpay_secret_key = $18,
			updated_at = $19
		WHERE id = $1
		RETURNING `+profileColumns,
		p.ID, p.Scope, p.GroupID, p.SiteID, p.StoreID, p.ProviderType, p.Active,
		p.SCBAPIKey, p.SCBAPISecret, p.SCBBillerID, p.SCBCallbackURL,
		p.KBankCustomerID, p.KBankConsumerSecret, p.OmisePublicKey, p.OmiseSecretKey,
		p.StripeSecretKey, p.MPayMerchantID, p.MPaySecretKey, time.Now().UTC())
	return scanProfile(row)
}

func (s *PostgresStore) FindActiveProfile(ctx context.Context, scope ProfileScope, key int64) (*BankingProfile, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var column string
	switch scope {
	case ScopeGroup:
		column = "group_id"
	case ScopeSite:
		column = "site_id"
	case ScopeStore:
		column = "store_id"
	default:
		return nil, fmt.Errorf("unknown profile scope %q", scope)
	}
	return scanProfile(s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+` FROM banking_profiles
		WHERE active AND scope = $1 AND `+column+` = $2
		ORDER BY updated_at DESC LIMIT 1`, scope, key))
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *Customer) (*Customer, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	out := *c
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO customers (phone, name, line_user_id, promptpay_number, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		c.Phone, c.Name, c.LineUserID, c.PromptPayNumber, time.Now().UTC()).
		Scan(&out.ID, &out.CreatedAt)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT id, phone, name, line_user_id, promptpay_number, created_at
		FROM customers WHERE id = $1`, id))
}

func (s *PostgresStore) GetCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT id, phone, name, line_user_id, promptpay_number, created_at
		FROM customers WHERE phone = $1`, phone))
}

func scanCustomer(row *sql.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Phone, &c.Name, &c.LineUserID, &c.PromptPayNumber, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateFCID(ctx context.Context, f *FoodCourtID, mint *CounterTransaction) (*FoodCourtID, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	out := *f
	out.CreatedAt = now
	out.UpdatedAt = now
	_, err = tx.ExecContext(ctx, `
		INSERT INTO foodcourt_ids (code, initial_amount, current_balance, payment_method,
			status, customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		f.Code, int64(f.InitialAmount), int64(f.CurrentBalance), string(f.Method),
		string(f.Status), f.CustomerID, now)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	if mint != nil {
		if err := insertCounterTxn(ctx, tx, f.Code, mint, now); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func insertCounterTxn(ctx context.Context, tx *sql.Tx, code string, ct *CounterTransaction, now time.Time) error {
	var details interface{}
	if ct.Details != nil {
		b, err := json.Marshal(ct.Details)
		if err != nil {
			return fmt.Errorf("marshal payment details: %w", err)
		}
		details = b
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO counter_transactions (fcid_code, kind, counter_id, counter_user_id,
			amount, payment_method, payment_details, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		code, string(ct.Kind), ct.CounterID, ct.CounterUserID,
		int64(ct.Amount), string(ct.Method), details, ct.Status, now)
	return err
}

func (s *PostgresStore) GetFCID(ctx context.Context, code string) (*FoodCourtID, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var f FoodCourtID
	var initial, balance int64
	var method, status string
	err := s.db.QueryRowContext(ctx, `
		SELECT code, initial_amount, current_balance, payment_method, status,
			customer_id, created_at, updated_at
		FROM foodcourt_ids WHERE code = $1`, code).
		Scan(&f.Code, &initial, &balance, &method, &status,
			&f.CustomerID, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.InitialAmount = money.Amount(initial)
	f.CurrentBalance = money.Amount(balance)
	f.Method = paymentmethod.Method(method)
	f.Status = FCIDStatus(status)
	return &f, nil
}

// ApplyDebit swaps the balance conditionally and appends the debit ledger
// rows in one transaction. A zero-row update means another writer moved the
// balance first.
func (s *PostgresStore) ApplyDebit(ctx context.Context, u DebitUpdate) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE foodcourt_ids
		SET current_balance = $3, status = $4, updated_at = $5
		WHERE code = $1 AND current_balance = $2`,
		u.Code, int64(u.ExpectedBalance), int64(u.NewBalance), string(u.NewStatus), now)
	if err != nil {
		return err
	}
	if err := checkSwapped(ctx, tx, res, u.Code); err != nil {
		return err
	}
	if u.StoreTxn != nil {
		st := u.StoreTxn
		_, err = tx.ExecContext(ctx, `
			INSERT INTO store_transactions (fcid_code, store_id, amount, status, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			u.Code, st.MerchantID, int64(st.Amount), st.Status, now)
		if err != nil {
			return err
		}
	}
	if u.PaymentTxn != nil {
		if err := insertPaymentTxn(ctx, tx, u.PaymentTxn, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ApplyTopUp(ctx context.Context, u TopUpUpdate) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE foodcourt_ids
		SET current_balance = $3, initial_amount = $4, updated_at = $5
		WHERE code = $1 AND current_balance = $2`,
		u.Code, int64(u.ExpectedBalance), int64(u.NewBalance), int64(u.NewInitial), now)
	if err != nil {
		return err
	}
	if err := checkSwapped(ctx, tx, res, u.Code); err != nil {
		return err
	}
	if u.CounterTxn != nil {
		if err := insertCounterTxn(ctx, tx, u.Code, u.CounterTxn, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) ApplyRefund(ctx context.Context, u RefundUpdate) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE foodcourt_ids
		SET current_balance = 0, status = $3, updated_at = $4
		WHERE code = $1 AND current_balance = $2`,
		u.Code, int64(u.ExpectedBalance), string(FCIDRefunded), now)
	if err != nil {
		return err
	}
	if err := checkSwapped(ctx, tx, res, u.Code); err != nil {
		return err
	}
	if u.CounterTxn != nil {
		if err := insertCounterTxn(ctx, tx, u.Code, u.CounterTxn, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// checkSwapped distinguishes a lost conditional update from a missing row.
func checkSwapped(ctx context.Context, tx *sql.Tx, res sql.Result, code string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM foodcourt_ids WHERE code = $1)`, code).
		Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStale
}

func (s *PostgresStore) ListActiveFCIDs(ctx context.Context) ([]*FoodCourtID, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT code, initial_amount, current_balance, payment_method, status,
			customer_id, created_at, updated_at
		FROM foodcourt_ids WHERE status = $1 ORDER BY code`, string(FCIDActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*FoodCourtID
	for rows.Next() {
		var f FoodCourtID
		var initial, balance int64
		var method, status string
		if err := rows.Scan(&f.Code, &initial, &balance, &method, &status,
			&f.CustomerID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.InitialAmount = money.Amount(initial)
		f.CurrentBalance = money.Amount(balance)
		f.Method = paymentmethod.Method(method)
		f.Status = FCIDStatus(status)
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExpireFCIDsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE foodcourt_ids SET status = $1, current_balance = 0, updated_at = $2
		WHERE status = $3 AND created_at < $4`,
		string(FCIDExpired), time.Now().UTC(), string(FCIDActive), cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *PostgresStore) NextReceiptSequence(ctx context.Context, day string) (int64, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var value int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO receipt_counters (day, value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET value = receipt_counters.value + 1
		RETURNING value`, day).Scan(&value)
	return value, err
}

func insertPaymentTxn(ctx context.Context, tx *sql.Tx, pt *PaymentTransaction, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_transactions (customer_id, store_id, amount, payment_method,
			status, receipt_number, foodcourt_id, ref1, ref2, ref3, bank_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		pt.CustomerID, pt.MerchantID, int64(pt.Amount), string(pt.Method),
		string(pt.Status), pt.ReceiptNumber, pt.FCIDCode,
		pt.Ref1, pt.Ref2, pt.Ref3, pt.BankAccount, now)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

const paymentColumns = `id, customer_id, store_id, amount, payment_method, status,
	receipt_number, foodcourt_id, ref1, ref2, ref3, bank_account, created_at`

func scanPaymentTxn(row interface{ Scan(...interface{}) error }) (*PaymentTransaction, error) {
	var pt PaymentTransaction
	var amount int64
	var method, status string
	err := row.Scan(&pt.ID, &pt.CustomerID, &pt.MerchantID, &amount, &method, &status,
		&pt.ReceiptNumber, &pt.FCIDCode, &pt.Ref1, &pt.Ref2, &pt.Ref3,
		&pt.BankAccount, &pt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	pt.Amount = money.Amount(amount)
	pt.Method = paymentmethod.Method(method)
	pt.Status = PaymentStatus(status)
	return &pt, nil
}

func (s *PostgresStore) CreatePaymentTransaction(ctx context.Context, pt *PaymentTransaction) (*PaymentTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO payment_transactions (customer_id, store_id, amount, payment_method,
			status, receipt_number, foodcourt_id, ref1, ref2, ref3, bank_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+paymentColumns,
		pt.CustomerID, pt.MerchantID, int64(pt.Amount), string(pt.Method),
		string(pt.Status), pt.ReceiptNumber, pt.FCIDCode,
		pt.Ref1, pt.Ref2, pt.Ref3, pt.BankAccount, time.Now().UTC())
	out, err := scanPaymentTxn(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return out, err
}

func (s *PostgresStore) GetPaymentTransaction(ctx context.Context, id int64) (*PaymentTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanPaymentTxn(s.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE id = $1`, id))
}

func (s *PostgresStore) ListPaymentTransactionsByFCID(ctx context.Context, code string) ([]*PaymentTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE foodcourt_id = $1 ORDER BY id`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*PaymentTransaction
	for rows.Next() {
		pt, err := scanPaymentTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

const backColumns = `id, rail, ref1, ref2, ref3, amount, paid_at, slip_reference,
	bank_account, store_id, status, created_at`

func scanBackTxn(row interface{ Scan(...interface{}) error }) (*BackTransaction, error) {
	var bt BackTransaction
	var amount int64
	var status string
	err := row.Scan(&bt.ID, &bt.Rail, &bt.Ref1, &bt.Ref2, &bt.Ref3, &amount, &bt.PaidAt,
		&bt.SlipReference, &bt.BankAccount, &bt.MerchantID, &status, &bt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	bt.Amount = money.Amount(amount)
	bt.Status = BackTransactionStatus(status)
	return &bt, nil
}

func (s *PostgresStore) InsertBackTransaction(ctx context.Context, bt *BackTransaction, pt *PaymentTransaction) (bool, *BackTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	var raw interface{}
	if len(bt.RawPayload) > 0 {
		raw = bt.RawPayload
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO back_transactions (rail, ref1, ref2, ref3, amount, paid_at,
			slip_reference, bank_account, store_id, status, raw_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+backColumns,
		bt.Rail, bt.Ref1, bt.Ref2, bt.Ref3, int64(bt.Amount), bt.PaidAt.UTC(),
		bt.SlipReference, bt.BankAccount, bt.MerchantID, string(bt.Status), raw, now)
	stored, err := scanBackTxn(row)
	if isUniqueViolation(err) {
		// The insert aborted the transaction; look the duplicate up outside it.
		_ = tx.Rollback()
		existing, lookupErr := scanBackTxn(s.db.QueryRowContext(ctx, `
			SELECT `+backColumns+` FROM back_transactions
			WHERE rail = $1 AND slip_reference = $2`, bt.Rail, bt.SlipReference))
		if lookupErr != nil {
			return false, nil, lookupErr
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, err
	}
	if pt != nil {
		if err := insertPaymentTxn(ctx, tx, pt, now); err != nil {
			return false, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, nil, err
	}
	return true, stored, nil
}

func (s *PostgresStore) QueryBackTransactions(ctx context.Context, q BackTransactionQuery) ([]*BackTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > MaxReportLimit {
		limit = MaxReportLimit
	}
	query := `SELECT ` + backColumns + ` FROM back_transactions WHERE 1=1`
	args := []interface{}{}
	if q.MerchantID != nil {
		args = append(args, *q.MerchantID)
		query += fmt.Sprintf(` AND store_id = $%d`, len(args))
	}
	if q.Start != nil {
		args = append(args, q.Start.UTC())
		query += fmt.Sprintf(` AND paid_at >= $%d`, len(args))
	}
	if q.End != nil {
		args = append(args, q.End.UTC())
		query += fmt.Sprintf(` AND paid_at < $%d`, len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY paid_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BackTransaction
	for rows.Next() {
		bt, err := scanBackTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecentPaid(ctx context.Context, merchantID int64, since time.Time, limit int) ([]*BackTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+backColumns+` FROM back_transactions
		WHERE store_id = $1 AND paid_at > $2
		ORDER BY paid_at, id LIMIT $3`, merchantID, since.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*BackTransaction
	for rows.Next() {
		bt, err := scanBackTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bt)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SumBackTransactions(ctx context.Context, start, end time.Time) (map[int64]money.Amount, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, COALESCE(SUM(amount), 0)
		FROM back_transactions
		WHERE store_id IS NOT NULL AND paid_at >= $1 AND paid_at < $2
		GROUP BY store_id`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[int64]money.Amount)
	for rows.Next() {
		var merchantID, total int64
		if err := rows.Scan(&merchantID, &total); err != nil {
			return nil, err
		}
		sums[merchantID] = money.Amount(total)
	}
	return sums, rows.Err()
}

const settlementColumns = `id, store_id, settlement_date, amount, status,
	transferred_at, notified_at, receipt_printed_at, created_at`

func scanSettlement(row interface{ Scan(...interface{}) error }) (*Settlement, error) {
	var set Settlement
	var amount int64
	var status string
	err := row.Scan(&set.ID, &set.MerchantID, &set.SettlementDate, &amount, &status,
		&set.TransferredAt, &set.NotifiedAt, &set.ReceiptPrintedAt, &set.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	set.Amount = money.Amount(amount)
	set.Status = SettlementStatus(status)
	return &set, nil
}

func (s *PostgresStore) CreateSettlement(ctx context.Context, set *Settlement) (bool, *Settlement, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO settlements (store_id, settlement_date, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+settlementColumns,
		set.MerchantID, set.SettlementDate.UTC(), int64(set.Amount),
		string(set.Status), time.Now().UTC())
	stored, err := scanSettlement(row)
	if isUniqueViolation(err) {
		existing, lookupErr := scanSettlement(s.db.QueryRowContext(ctx, `
			SELECT `+settlementColumns+` FROM settlements
			WHERE store_id = $1 AND settlement_date = $2`,
			set.MerchantID, set.SettlementDate.UTC()))
		if lookupErr != nil {
			return false, nil, lookupErr
		}
		return false, existing, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, stored, nil
}

func (s *PostgresStore) GetSettlement(ctx context.Context, id int64) (*Settlement, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return scanSettlement(s.db.QueryRowContext(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, id))
}

func (s *PostgresStore) TransitionSettlement(ctx context.Context, id int64, from, to SettlementStatus, at time.Time) (*Settlement, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	var stampColumn string
	switch to {
	case SettlementTransferred:
		stampColumn = "transferred_at"
	case SettlementNotified:
		stampColumn = "notified_at"
	default:
		return nil, fmt.Errorf("settlement cannot transition to %q", to)
	}
	stored, err := scanSettlement(s.db.QueryRowContext(ctx, `
		UPDATE settlements SET status = $3, `+stampColumn+` = $4
		WHERE id = $1 AND status = $2
		RETURNING `+settlementColumns,
		id, string(from), string(to), at.UTC()))
	if err == ErrNotFound {
		// Distinguish a missing row from a lost status race.
		if _, getErr := s.GetSettlement(ctx, id); getErr == nil {
			return nil, ErrStale
		}
		return nil, ErrNotFound
	}
	return stored, err
}

func (s *PostgresStore) MarkSettlementReceiptPrinted(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET receipt_printed_at = $2 WHERE id = $1`, id, at.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSettlements(ctx context.Context, q SettlementQuery) ([]*Settlement, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE 1=1`
	args := []interface{}{}
	if q.MerchantID != nil {
		args = append(args, *q.MerchantID)
		query += fmt.Sprintf(` AND store_id = $%d`, len(args))
	}
	if q.Date != nil {
		args = append(args, q.Date.UTC())
		query += fmt.Sprintf(` AND settlement_date = $%d`, len(args))
	}
	if q.Status != nil {
		args = append(args, string(*q.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if q.NotifiedOnly {
		args = append(args, string(SettlementNotified))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Settlement
	for rows.Next() {
		set, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OverdueSettlements(ctx context.Context, cutoff time.Time) ([]*Settlement, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+settlementColumns+` FROM settlements
		WHERE status = $1 AND settlement_date <= $2
		ORDER BY id`, string(SettlementPending), cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Settlement
	for rows.Next() {
		set, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	return out, rows.Err()
}

const cryptoColumns = `id, store_id, foodcourt_id, tx_hash, blockchain_address,
	crypto_type, amount, status, explorer_url, last_checked, created_at`

func scanCryptoTxn(row interface{ Scan(...interface{}) error }) (*CryptoTransaction, error) {
	var ct CryptoTransaction
	var amount int64
	var status string
	err := row.Scan(&ct.ID, &ct.MerchantID, &ct.FCIDCode, &ct.TxHash, &ct.Address,
		&ct.CryptoType, &amount, &status, &ct.ExplorerURL, &ct.LastCheckedAt, &ct.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ct.Amount = money.Amount(amount)
	ct.Status = CryptoStatus(status)
	return &ct, nil
}

func (s *PostgresStore) CreateCryptoTransaction(ctx context.Context, ct *CryptoTransaction) (*CryptoTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO crypto_transactions (store_id, foodcourt_id, tx_hash, blockchain_address,
			crypto_type, amount, status, explorer_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+cryptoColumns,
		ct.MerchantID, ct.FCIDCode, ct.TxHash, ct.Address, ct.CryptoType,
		int64(ct.Amount), string(ct.Status), ct.ExplorerURL, time.Now().UTC())
	out, err := scanCryptoTxn(row)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	return out, err
}

func (s *PostgresStore) ListPendingCryptoTransactions(ctx context.Context) ([]*CryptoTransaction, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cryptoColumns+` FROM crypto_transactions WHERE status = $1 ORDER BY id`,
		string(CryptoPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CryptoTransaction
	for rows.Next() {
		ct, err := scanCryptoTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateCryptoTransactionStatus(ctx context.Context, id int64, status CryptoStatus, checkedAt time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE crypto_transactions SET status = $2, last_checked = $3 WHERE id = $1`,
		id, string(status), checkedAt.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const notificationColumns = `id, delivery_id, kind, store_id, url, payload, attempts,
	max_attempts, status, last_error, next_attempt_at, delivered_at, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (*Notification, error) {
	var n Notification
	var status string
	err := row.Scan(&n.ID, &n.DeliveryID, &n.Kind, &n.MerchantID, &n.URL, &n.Payload,
		&n.Attempts, &n.MaxAttempts, &status, &n.LastError,
		&n.NextAttemptAt, &n.DeliveredAt, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.Status = NotificationStatus(status)
	return &n, nil
}

func (s *PostgresStore) EnqueueNotification(ctx context.Context, n *Notification) (*Notification, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	now := time.Now().UTC()
	next := n.NextAttemptAt
	if next.IsZero() {
		next = now
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO notifications (delivery_id, kind, store_id, url, payload,
			attempts, max_attempts, status, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
		RETURNING `+notificationColumns,
		n.DeliveryID, n.Kind, n.MerchantID, n.URL, n.Payload,
		n.MaxAttempts, string(NotificationQueued), next.UTC(), now)
	return scanNotification(row)
}

func (s *PostgresStore) DueNotifications(ctx context.Context, now time.Time, limit int) ([]*Notification, error) {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY id LIMIT $3`, string(NotificationQueued), now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNotificationDelivered(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = $2, delivered_at = $3 WHERE id = $1`,
		id, string(NotificationDelivered), at.UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkNotificationFailed(ctx context.Context, id int64, errMsg string, nextAttempt time.Time) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET
			attempts = attempts + 1,
			last_error = $2,
			next_attempt_at = $3,
			status = CASE WHEN attempts + 1 >= max_attempts THEN $4 ELSE status END
		WHERE id = $1`,
		id, errMsg, nextAttempt.UTC(), string(NotificationDead))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := withQueryTimeout(ctx)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique_violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23503"
	}
	return false
}
