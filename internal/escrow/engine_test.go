package escrow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
	"github.com/FoodCourtHub/server/internal/storage"
)

func newEngine() (*Engine, *storage.MemoryStore) {
	s := storage.NewMemoryStore()
	return NewEngine(s, zerolog.Nop()), s
}

func baht(t *testing.T, v string) money.Amount {
	t.Helper()
	a, err := money.ParseBaht(v)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestMint(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "300.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(f.Code, "FC-"+time.Now().UTC().Format("20060102")+"-") {
		t.Errorf("code format: %s", f.Code)
	}
	if len(f.Code) != len("FC-20060102-00000") {
		t.Errorf("code length: %s", f.Code)
	}
	if f.CurrentBalance != 30000 || f.InitialAmount != 30000 {
		t.Errorf("amounts: %+v", f)
	}
	if f.Status != storage.FCIDActive {
		t.Errorf("status = %s", f.Status)
	}
	if f.CustomerID != nil {
		t.Error("anonymous mint should have no customer")
	}
}

func TestMintValidation(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	tests := []struct {
		name string
		req  MintRequest
		code errors.ErrorCode
	}{
		{"negative amount", MintRequest{Amount: -100, Method: paymentmethod.Cash}, errors.ErrCodeInvalidAmount},
		{"unknown method", MintRequest{Amount: 100, Method: "sea_shells"}, errors.ErrCodeInvalidField},
		{"crypto without hash", MintRequest{
			Amount: 100, Method: paymentmethod.CryptoSolana,
			Details: &paymentmethod.Details{Crypto: &paymentmethod.CryptoDetails{}},
		}, errors.ErrCodeMissingField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Mint(ctx, tt.req)
			if !errors.Is(err, tt.code) {
				t.Errorf("got %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestMintZeroIsReceptacle(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: 0, Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	if f.CurrentBalance != 0 || f.Status != storage.FCIDActive {
		t.Errorf("receptacle: %+v", f)
	}

	// It only becomes spendable after a top-up.
	if _, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: 100}); !errors.Is(err, errors.ErrCodeInsufficientBalance) {
		t.Errorf("debit on empty receptacle: %v", err)
	}
	if _, err := e.TopUp(ctx, TopUpRequest{Code: f.Code, Amount: 5000, Method: paymentmethod.Cash}); err != nil {
		t.Fatal(err)
	}
	got, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: 5000})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != storage.FCIDUsed {
		t.Errorf("after spending receptacle: %+v", got)
	}
}

func TestMintBindsCustomer(t *testing.T) {
	e, s := newEngine()
	ctx := context.Background()

	f1, err := e.Mint(ctx, MintRequest{Amount: 1000, Method: paymentmethod.Cash, CustomerPhone: "0812345678"})
	if err != nil {
		t.Fatal(err)
	}
	if f1.CustomerID == nil {
		t.Fatal("customer not bound")
	}

	// Same phone reuses the customer record.
	f2, err := e.Mint(ctx, MintRequest{Amount: 2000, Method: paymentmethod.Cash, CustomerPhone: "0812345678"})
	if err != nil {
		t.Fatal(err)
	}
	if *f2.CustomerID != *f1.CustomerID {
		t.Errorf("customer ids differ: %d vs %d", *f1.CustomerID, *f2.CustomerID)
	}

	c, err := s.GetCustomerByPhone(ctx, "0812345678")
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != *f1.CustomerID {
		t.Errorf("stored customer %d, bound %d", c.ID, *f1.CustomerID)
	}
}

func TestDebitLifecycle(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "100.00"), Method: paymentmethod.Cash, CustomerPhone: "0891112222"})
	if err != nil {
		t.Fatal(err)
	}

	got, pt, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 5, Amount: baht(t, "40.00")})
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentBalance != 6000 || got.Status != storage.FCIDActive {
		t.Errorf("after partial debit: %+v", got)
	}
	if pt == nil || !strings.HasPrefix(pt.ReceiptNumber, "RCP-") {
		t.Errorf("receipt: %+v", pt)
	}
	if pt.MerchantID == nil || *pt.MerchantID != 5 {
		t.Errorf("receipt merchant: %+v", pt)
	}

	// Overdraw rejected without movement.
	_, _, err = e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 5, Amount: baht(t, "60.01")})
	if !errors.Is(err, errors.ErrCodeInsufficientBalance) {
		t.Fatalf("overdraw: %v", err)
	}

	// Spending to exactly zero retires the token.
	got, _, err = e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 5, Amount: baht(t, "60.00")})
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentBalance != 0 || got.Status != storage.FCIDUsed {
		t.Errorf("after final debit: %+v", got)
	}

	// A used token rejects further debits.
	_, _, err = e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 5, Amount: 1})
	if !errors.Is(err, errors.ErrCodeNotActive) {
		t.Errorf("debit on used token: %v", err)
	}

	_, _, err = e.Debit(ctx, DebitRequest{Code: "FC-00000000-00000", MerchantID: 5, Amount: 1})
	if !errors.Is(err, errors.ErrCodeFoodCourtIDNotFound) {
		t.Errorf("debit on missing token: %v", err)
	}
}

func TestReceiptNumbersAreSequentialPerDay(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "30.00"), Method: paymentmethod.Cash, CustomerPhone: "0891112222"})
	if err != nil {
		t.Fatal(err)
	}
	day := time.Now().UTC().Format("20060102")
	for i := 1; i <= 3; i++ {
		_, pt, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: baht(t, "10.00")})
		if err != nil {
			t.Fatal(err)
		}
		want := fmt.Sprintf("RCP-%s-%05d", day, i)
		if pt.ReceiptNumber != want {
			t.Errorf("receipt %d = %s, want %s", i, pt.ReceiptNumber, want)
		}
	}
}

func TestTopUp(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "100.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: baht(t, "30.00")}); err != nil {
		t.Fatal(err)
	}

	got, err := e.TopUp(ctx, TopUpRequest{Code: f.Code, Amount: baht(t, "50.00"), Method: paymentmethod.PromptPay})
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentBalance != 12000 {
		t.Errorf("balance = %d, want 12000", got.CurrentBalance)
	}
	if got.InitialAmount != 15000 {
		t.Errorf("lifetime total = %d, want 15000", got.InitialAmount)
	}

	if _, err := e.TopUp(ctx, TopUpRequest{Code: f.Code, Amount: 0, Method: paymentmethod.Cash}); !errors.Is(err, errors.ErrCodeInvalidAmount) {
		t.Errorf("zero topup: %v", err)
	}
}

func TestRefund(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "200.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: baht(t, "75.50")}); err != nil {
		t.Fatal(err)
	}

	refunded, err := e.Refund(ctx, RefundRequest{Code: f.Code})
	if err != nil {
		t.Fatal(err)
	}
	if refunded != 12450 {
		t.Errorf("refunded %d, want 12450", refunded)
	}

	// Refund is terminal.
	if _, err := e.Refund(ctx, RefundRequest{Code: f.Code}); !errors.Is(err, errors.ErrCodeAlreadyRefunded) {
		t.Errorf("double refund: %v", err)
	}
	if _, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: 1}); !errors.Is(err, errors.ErrCodeNotActive) {
		t.Errorf("debit after refund: %v", err)
	}

	// A fully spent token has nothing to refund.
	g, err := e.Mint(ctx, MintRequest{Amount: baht(t, "10.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Debit(ctx, DebitRequest{Code: g.Code, MerchantID: 1, Amount: baht(t, "10.00")}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Refund(ctx, RefundRequest{Code: g.Code}); !errors.Is(err, errors.ErrCodeNotActive) {
		t.Errorf("refund of used token: %v", err)
	}
}

func TestBalanceHistory(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "90.00"), Method: paymentmethod.Cash, CustomerPhone: "0891112222"})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: baht(t, "20.00")}); err != nil {
			t.Fatal(err)
		}
	}

	got, history, err := e.Balance(ctx, f.Code)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentBalance != 5000 {
		t.Errorf("balance = %d, want 5000", got.CurrentBalance)
	}
	if len(history) != 2 {
		t.Errorf("history = %d entries, want 2", len(history))
	}
}

func TestAnonymousDebitHasNoReceipt(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "50.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	_, pt, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: baht(t, "10.00")})
	if err != nil {
		t.Fatal(err)
	}
	if pt != nil {
		t.Errorf("anonymous debit should carry no receipt, got %+v", pt)
	}
}

func TestExpireStale(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "50.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	n, err := e.ExpireStale(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	if _, _, err := e.Debit(ctx, DebitRequest{Code: f.Code, MerchantID: 1, Amount: 1}); !errors.Is(err, errors.ErrCodeNotActive) {
		t.Errorf("debit on expired token: %v", err)
	}
}

func TestExpireStaleZeroesBalance(t *testing.T) {
	e, _ := newEngine()
	ctx := context.Background()

	f, err := e.Mint(ctx, MintRequest{Amount: baht(t, "100.00"), Method: paymentmethod.Cash})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.ExpireStale(ctx, time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	after, _, err := e.Balance(ctx, f.Code)
	if err != nil {
		t.Fatal(err)
	}
	if after.Status != storage.FCIDExpired {
		t.Errorf("status = %s, want expired", after.Status)
	}
	if !after.CurrentBalance.IsZero() {
		t.Errorf("balance after reset = %d satang, want 0", after.CurrentBalance)
	}
}
