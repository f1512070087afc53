package httpserver

import (
	"net/http"
	"time"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

const recentPaidLimit = 100

// recentPaid is the POS polling endpoint: confirmed payments for one store
// since a cursor, oldest first so the POS can advance its cursor to the
// last row it saw. Without a cursor the window is the last hour, enough to
// recover from a POS restart without replaying the whole day.
func (h handlers) recentPaid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, err)
		return
	}
	cutoff := time.Now().UTC().Add(-time.Hour)
	if since != nil {
		cutoff = *since
	}

	rows, err := h.store.RecentPaid(r.Context(), id, cutoff, recentPaidLimit)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeDatabaseError, err, "query recent paid"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"store_id": id,
		"since":    cutoff.Format(time.RFC3339),
		"payments": backTransactionRows(rows),
	})
}

// backTransactionReport lists raw rail confirmations for reconciliation,
// optionally filtered by store and time window.
func (h handlers) backTransactionReport(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store_id")
	if err != nil {
		writeError(w, err)
		return
	}
	start, err := queryTime(r, "start")
	if err != nil {
		writeError(w, err)
		return
	}
	end, err := queryTime(r, "end")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	q := storage.BackTransactionQuery{
		MerchantID: storeID,
		Start:      start,
		End:        end,
		Limit:      storage.MaxReportLimit,
	}
	if limit != nil {
		if *limit <= 0 || *limit > storage.MaxReportLimit {
			writeError(w, apierrors.E(apierrors.ErrCodeInvalidField,
				"limit must be between 1 and %d", storage.MaxReportLimit))
			return
		}
		q.Limit = int(*limit)
	}

	rows, err := h.store.QueryBackTransactions(r.Context(), q)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeDatabaseError, err, "query back transactions"))
		return
	}

	var total money.Amount
	for _, bt := range rows {
		total += bt.Amount
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":        len(rows),
		"total":        total.BahtString(),
		"transactions": backTransactionRows(rows),
	})
}

// backTransactionRows projects rows for API output, with amounts in baht.
func backTransactionRows(rows []*storage.BackTransaction) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, bt := range rows {
		row := map[string]any{
			"id":      bt.ID,
			"rail":    bt.Rail,
			"ref1":    bt.Ref1,
			"amount":  bt.Amount.BahtString(),
			"paid_at": bt.PaidAt,
			"status":  bt.Status,
		}
		if bt.Ref2 != "" {
			row["ref2"] = bt.Ref2
		}
		if bt.Ref3 != "" {
			row["ref3"] = bt.Ref3
		}
		if bt.SlipReference != "" {
			row["slip_reference"] = bt.SlipReference
		}
		if bt.BankAccount != "" {
			row["bank_account"] = bt.BankAccount
		}
		if bt.MerchantID != nil {
			row["store_id"] = *bt.MerchantID
		}
		out = append(out, row)
	}
	return out
}
