// Package cryptowatch confirms on-chain stablecoin payments recorded at the
// exchange counter. Hashes are polled against Solana until they finalize or
// the pending window lapses.
package cryptowatch

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/circuitbreaker"
	"github.com/FoodCourtHub/server/internal/rpcutil"
	"github.com/FoodCourtHub/server/internal/storage"
)

// StatusClient is the slice of the Solana RPC surface the watcher uses.
type StatusClient interface {
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// PendingWindow is how long a hash may stay pending before it is marked
// failed. Counter staff re-key the hash if the customer retries.
const PendingWindow = 30 * time.Minute

// Watcher polls pending crypto transactions and settles their status.
type Watcher struct {
	store    storage.Store
	client   StatusClient
	breakers *circuitbreaker.Manager
	log      zerolog.Logger
}

func NewWatcher(store storage.Store, client StatusClient, breakers *circuitbreaker.Manager, log zerolog.Logger) *Watcher {
	return &Watcher{
		store:    store,
		client:   client,
		breakers: breakers,
		log:      log.With().Str("component", "cryptowatch").Logger(),
	}
}

// NewRPCWatcher dials the given Solana RPC endpoint.
func NewRPCWatcher(store storage.Store, endpoint string, breakers *circuitbreaker.Manager, log zerolog.Logger) *Watcher {
	return NewWatcher(store, rpc.New(endpoint), breakers, log)
}

// Poll checks every pending transaction once. Returns how many reached a
// terminal status this pass.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	pending, err := w.store.ListPendingCryptoTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("cryptowatch: list pending: %w", err)
	}

	settled := 0
	now := time.Now().UTC()
	for _, ct := range pending {
		status, err := w.check(ctx, ct)
		if err != nil {
			w.log.Warn().Err(err).Str("tx_hash", ct.TxHash).Msg("status check failed")
			continue
		}

		if status == storage.CryptoPending && now.Sub(ct.CreatedAt) > PendingWindow {
			status = storage.CryptoFailed
			w.log.Warn().Str("tx_hash", ct.TxHash).
				Time("created_at", ct.CreatedAt).
				Msg("crypto transaction expired without confirmation")
		}

		if err := w.store.UpdateCryptoTransactionStatus(ctx, ct.ID, status, now); err != nil {
			w.log.Error().Err(err).Str("tx_hash", ct.TxHash).Msg("status update failed")
			continue
		}
		if status != storage.CryptoPending {
			settled++
			w.log.Info().Str("tx_hash", ct.TxHash).
				Str("status", string(status)).
				Str("crypto_type", ct.CryptoType).
				Msg("crypto transaction settled")
		}
	}
	return settled, nil
}

// check resolves one hash to its current chain status. Unknown signatures
// stay pending; the window check above decides when to give up.
func (w *Watcher) check(ctx context.Context, ct *storage.CryptoTransaction) (storage.CryptoStatus, error) {
	sig, err := solana.SignatureFromBase58(ct.TxHash)
	if err != nil {
		// Unparseable hashes can never confirm.
		return storage.CryptoFailed, nil
	}

	result, err := w.execute(ctx, sig)
	if err != nil {
		return storage.CryptoPending, err
	}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return storage.CryptoPending, nil
	}

	status := result.Value[0]
	if status.Err != nil {
		return storage.CryptoFailed, nil
	}
	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return storage.CryptoConfirmed, nil
	default:
		return storage.CryptoPending, nil
	}
}

func (w *Watcher) execute(ctx context.Context, sig solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	do := func() (interface{}, error) {
		return rpcutil.WithRetry(ctx, func() (*rpc.GetSignatureStatusesResult, error) {
			return w.client.GetSignatureStatuses(ctx, true, sig)
		})
	}
	var (
		v   interface{}
		err error
	)
	if w.breakers != nil {
		v, err = w.breakers.Execute(circuitbreaker.ServiceSolana, do)
	} else {
		v, err = do()
	}
	if err != nil {
		return nil, err
	}
	return v.(*rpc.GetSignatureStatusesResult), nil
}
