package httpserver

import (
	"net/http"
	"time"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/settlement"
	"github.com/FoodCourtHub/server/internal/storage"
)

const settlementListLimit = 100

// settlementCreateDaily runs the end-of-day roll-up for one calendar day.
// The scheduler fires this at 23:00; the endpoint exists for re-runs after
// late callbacks and for ops catching up a missed day. Repeat runs create
// nothing new.
func (h handlers) settlementCreateDaily(w http.ResponseWriter, r *http.Request) {
	date, err := settlementDate(r)
	if err != nil {
		writeError(w, err)
		return
	}

	created, err := h.settlements.CreateDaily(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"settlement_date": date.Format("2006-01-02"),
		"created":         len(created),
		"total":           settlement.Total(created).BahtString(),
		"settlements":     settlementRows(created),
	})
}

// settlementDate reads the target day from the query string or the JSON
// body, defaulting to today.
func settlementDate(r *http.Request) (time.Time, error) {
	if t, err := queryTime(r, "settlement_date"); err != nil {
		return time.Time{}, err
	} else if t != nil {
		return *t, nil
	}
	if r.Body != nil && r.ContentLength > 0 {
		var req struct {
			SettlementDate string `json:"settlement_date"`
		}
		if err := decodeJSON(r.Body, &req); err != nil {
			return time.Time{}, err
		}
		if req.SettlementDate != "" {
			t, err := time.Parse("2006-01-02", req.SettlementDate)
			if err != nil {
				return time.Time{}, apierrors.E(apierrors.ErrCodeInvalidField,
					"invalid settlement_date %q", req.SettlementDate)
			}
			return t.UTC(), nil
		}
	}
	return time.Now().UTC(), nil
}

func (h handlers) settlementList(w http.ResponseWriter, r *http.Request) {
	storeID, err := queryInt64(r, "store_id")
	if err != nil {
		writeError(w, err)
		return
	}
	date, err := queryTime(r, "settlement_date")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt64(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	q := storage.SettlementQuery{
		MerchantID: storeID,
		Date:       date,
		Limit:      settlementListLimit,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := storage.SettlementStatus(raw)
		switch status {
		case storage.SettlementPending, storage.SettlementTransferred, storage.SettlementNotified:
			q.Status = &status
		default:
			writeError(w, apierrors.E(apierrors.ErrCodeInvalidField, "invalid status %q", raw))
			return
		}
	}
	if limit != nil {
		if *limit <= 0 || *limit > settlementListLimit {
			writeError(w, apierrors.E(apierrors.ErrCodeInvalidField,
				"limit must be between 1 and %d", settlementListLimit))
			return
		}
		q.Limit = int(*limit)
	}

	sets, err := h.settlements.List(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(sets),
		"total":       settlement.Total(sets).BahtString(),
		"settlements": settlementRows(sets),
	})
}

func (h handlers) settlementMarkTransferred(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	set, err := h.settlements.MarkTransferred(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementRow(set))
}

func (h handlers) settlementNotify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	set, err := h.settlements.NotifyMerchant(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementRow(set))
}

// settlementsForReceipt serves the merchant-side receipt surface. Without
// a settlement_id it lists the store's notified settlements; with one it
// renders the full printable receipt and stamps the print time.
func (h handlers) settlementsForReceipt(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	settlementID, err := queryInt64(r, "settlement_id")
	if err != nil {
		writeError(w, err)
		return
	}

	if settlementID != nil {
		receipt, err := h.settlements.ForReceipt(r.Context(), *settlementID)
		if err != nil {
			writeError(w, err)
			return
		}
		if receipt.Settlement.MerchantID != storeID {
			writeError(w, apierrors.E(apierrors.ErrCodeSettlementNotFound,
				"settlement %d does not belong to store %d", *settlementID, storeID))
			return
		}
		writeJSON(w, http.StatusOK, receipt)
		return
	}

	sets, err := h.settlements.List(r.Context(), storage.SettlementQuery{
		MerchantID:   &storeID,
		NotifiedOnly: true,
		Limit:        settlementListLimit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store_id":    storeID,
		"count":       len(sets),
		"settlements": settlementRows(sets),
	})
}

// settlementOverdue reports pending settlements older than one calendar
// day, the custody red flags the watchdog alerts on.
func (h handlers) settlementOverdue(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	sets, err := h.settlements.Overdue(r.Context(), cutoff)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cutoff":      cutoff.Format("2006-01-02"),
		"count":       len(sets),
		"total":       settlement.Total(sets).BahtString(),
		"settlements": settlementRows(sets),
	})
}

func settlementRow(set *storage.Settlement) map[string]any {
	row := map[string]any{
		"id":              set.ID,
		"store_id":        set.MerchantID,
		"settlement_date": set.SettlementDate.Format("2006-01-02"),
		"amount":          set.Amount.BahtString(),
		"status":          set.Status,
	}
	if set.TransferredAt != nil {
		row["transferred_at"] = set.TransferredAt
	}
	if set.NotifiedAt != nil {
		row["notified_at"] = set.NotifiedAt
	}
	if set.ReceiptPrintedAt != nil {
		row["receipt_printed_at"] = set.ReceiptPrintedAt
	}
	return row
}

func settlementRows(sets []*storage.Settlement) []map[string]any {
	out := make([]map[string]any, 0, len(sets))
	for _, set := range sets {
		out = append(out, settlementRow(set))
	}
	return out
}
