package httpserver

import (
	"net/http"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/escrow"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
)

type useRequest struct {
	FoodCourtID string  `json:"foodcourt_id"`
	StoreID     int64   `json:"store_id"`
	Amount      float64 `json:"amount"`
}

// hubUse debits a stored-value token at a store checkout.
func (h handlers) hubUse(w http.ResponseWriter, r *http.Request) {
	var req useRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.FoodCourtID == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeMissingField, "missing foodcourt_id"))
		return
	}
	if req.StoreID <= 0 {
		writeError(w, apierrors.E(apierrors.ErrCodeInvalidField, "invalid store_id"))
		return
	}
	amount, err := money.FromBaht(req.Amount)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeInvalidAmount, err, "parse amount"))
		return
	}

	f, pt, err := h.escrow.Debit(r.Context(), escrow.DebitRequest{
		Code:       req.FoodCourtID,
		MerchantID: req.StoreID,
		Amount:     amount,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveDebit("error", 0)
		}
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveDebit("success", int64(amount))
	}

	resp := map[string]any{
		"foodcourt_id":      f.Code,
		"remaining_balance": f.CurrentBalance.BahtString(),
		"status":            f.Status,
	}
	if pt != nil {
		resp["payment_transaction_id"] = pt.ID
		resp["receipt_number"] = pt.ReceiptNumber
	}
	writeJSON(w, http.StatusOK, resp)
}

// hubMethods returns the closed tender catalog for POS configuration.
func (h handlers) hubMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"methods": paymentmethod.All(),
	})
}
