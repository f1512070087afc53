package cryptowatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/storage"
)

type fakeStatusClient struct {
	statuses map[string]*rpc.SignatureStatusesResult
	calls    int
}

func (f *fakeStatusClient) GetSignatureStatuses(ctx context.Context, search bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.calls++
	out := &rpc.GetSignatureStatusesResult{}
	for _, sig := range sigs {
		out.Value = append(out.Value, f.statuses[sig.String()])
	}
	return out, nil
}

// zeroSig is the all-zero signature; base58 renders each leading zero
// byte as '1'.
var zeroSig = strings.Repeat("1", 64)

func pendingTx(t *testing.T, store storage.Store, hash string, createdAt time.Time) *storage.CryptoTransaction {
	t.Helper()
	ct, err := store.CreateCryptoTransaction(context.Background(), &storage.CryptoTransaction{
		MerchantID: 1,
		TxHash:     hash,
		CryptoType: "usdc",
		Amount:     10000,
		Status:     storage.CryptoPending,
		CreatedAt:  createdAt,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ct
}

func TestPollConfirmsFinalizedTransaction(t *testing.T) {
	store := storage.NewMemoryStore()
	pendingTx(t, store, zeroSig, time.Now().UTC())

	client := &fakeStatusClient{statuses: map[string]*rpc.SignatureStatusesResult{
		zeroSig: {ConfirmationStatus: rpc.ConfirmationStatusFinalized},
	}}
	w := NewWatcher(store, client, nil, zerolog.Nop())

	settled, err := w.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
	remaining, err := store.ListPendingCryptoTransactions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("still pending: %d", len(remaining))
	}
}

func TestPollKeepsUnseenTransactionPending(t *testing.T) {
	store := storage.NewMemoryStore()
	pendingTx(t, store, zeroSig, time.Now().UTC())

	client := &fakeStatusClient{statuses: map[string]*rpc.SignatureStatusesResult{}}
	w := NewWatcher(store, client, nil, zerolog.Nop())

	settled, err := w.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settled != 0 {
		t.Errorf("settled = %d, want 0", settled)
	}
	remaining, err := store.ListPendingCryptoTransactions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("pending = %d, want 1", len(remaining))
	}
	if remaining[0].LastCheckedAt == nil {
		t.Error("poll should stamp last_checked")
	}
}

func TestPollFailsChainRejectedTransaction(t *testing.T) {
	store := storage.NewMemoryStore()
	pendingTx(t, store, zeroSig, time.Now().UTC())

	client := &fakeStatusClient{statuses: map[string]*rpc.SignatureStatusesResult{
		zeroSig: {ConfirmationStatus: rpc.ConfirmationStatusFinalized, Err: map[string]interface{}{"InstructionError": nil}},
	}}
	w := NewWatcher(store, client, nil, zerolog.Nop())

	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	remaining, err := store.ListPendingCryptoTransactions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Error("rejected transaction should leave the pending set")
	}
}

func TestPollExpiresStalePending(t *testing.T) {
	store := storage.NewMemoryStore()
	pendingTx(t, store, zeroSig, time.Now().UTC().Add(-PendingWindow-time.Minute))

	client := &fakeStatusClient{statuses: map[string]*rpc.SignatureStatusesResult{}}
	w := NewWatcher(store, client, nil, zerolog.Nop())

	settled, err := w.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
}

func TestPollFailsUnparseableHash(t *testing.T) {
	store := storage.NewMemoryStore()
	pendingTx(t, store, "not-a-signature", time.Now().UTC())

	client := &fakeStatusClient{statuses: map[string]*rpc.SignatureStatusesResult{}}
	w := NewWatcher(store, client, nil, zerolog.Nop())

	settled, err := w.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
	if client.calls != 0 {
		t.Errorf("rpc calls = %d, want 0", client.calls)
	}
}
