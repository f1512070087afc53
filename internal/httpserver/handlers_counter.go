package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/escrow"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/paymentmethod"
)

// exchangeRequest mints a stored-value token at the exchange counter.
// Amounts arrive as two-decimal baht and round half-away-from-zero.
type exchangeRequest struct {
	Amount         float64                `json:"amount"`
	PaymentMethod  string                 `json:"payment_method"`
	PaymentDetails *paymentmethod.Details `json:"payment_details,omitempty"`
	CounterID      string                 `json:"counter_id,omitempty"`
	CounterUserID  string                 `json:"counter_user_id,omitempty"`
	CustomerPhone  string                 `json:"customer_phone,omitempty"`
}

func (h handlers) counterExchange(w http.ResponseWriter, r *http.Request) {
	var req exchangeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.FromBaht(req.Amount)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeInvalidAmount, err, "parse amount"))
		return
	}

	f, err := h.escrow.Mint(r.Context(), escrow.MintRequest{
		Amount:        amount,
		Method:        paymentmethod.Method(req.PaymentMethod),
		Details:       req.PaymentDetails,
		CustomerPhone: req.CustomerPhone,
		CounterID:     req.CounterID,
		CounterUserID: req.CounterUserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveExchange(req.PaymentMethod, int64(f.InitialAmount))
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"foodcourt_id":    f.Code,
		"initial_amount":  f.InitialAmount.BahtString(),
		"current_balance": f.CurrentBalance.BahtString(),
		"payment_method":  f.Method,
		"status":          f.Status,
		"created_at":      f.CreatedAt,
	})
}

func (h handlers) counterBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	f, history, err := h.escrow.Balance(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"foodcourt_id":    f.Code,
		"initial_amount":  f.InitialAmount.BahtString(),
		"current_balance": f.CurrentBalance.BahtString(),
		"payment_method":  f.Method,
		"status":          f.Status,
		"created_at":      f.CreatedAt,
		"transactions":    history,
	})
}

type refundRequest struct {
	FoodCourtID   string `json:"foodcourt_id"`
	CounterID     string `json:"counter_id,omitempty"`
	CounterUserID string `json:"counter_user_id,omitempty"`
}

func (h handlers) counterRefund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.FoodCourtID == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeMissingField, "missing foodcourt_id"))
		return
	}

	refunded, err := h.escrow.Refund(r.Context(), escrow.RefundRequest{
		Code:          req.FoodCourtID,
		CounterID:     req.CounterID,
		CounterUserID: req.CounterUserID,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveRefund("error", 0)
		}
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveRefund("success", int64(refunded))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"foodcourt_id":  req.FoodCourtID,
		"refund_amount": refunded.BahtString(),
		"status":        "refunded",
	})
}

type topUpRequest struct {
	FoodCourtID    string                 `json:"foodcourt_id"`
	Amount         float64                `json:"amount"`
	PaymentMethod  string                 `json:"payment_method"`
	PaymentDetails *paymentmethod.Details `json:"payment_details,omitempty"`
	CounterID      string                 `json:"counter_id,omitempty"`
	CounterUserID  string                 `json:"counter_user_id,omitempty"`
}

func (h handlers) counterTopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.FoodCourtID == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeMissingField, "missing foodcourt_id"))
		return
	}
	amount, err := money.FromBaht(req.Amount)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeInvalidAmount, err, "parse amount"))
		return
	}

	f, err := h.escrow.TopUp(r.Context(), escrow.TopUpRequest{
		Code:          req.FoodCourtID,
		Amount:        amount,
		Method:        paymentmethod.Method(req.PaymentMethod),
		Details:       req.PaymentDetails,
		CounterID:     req.CounterID,
		CounterUserID: req.CounterUserID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveExchange(req.PaymentMethod, int64(amount))
	}
	// The engine returns the post-topup row; the old balance is implied.
	oldBalance, _ := f.CurrentBalance.Sub(amount)
	writeJSON(w, http.StatusOK, map[string]any{
		"foodcourt_id": f.Code,
		"old_balance":  oldBalance.BahtString(),
		"new_balance":  f.CurrentBalance.BahtString(),
		"status":       f.Status,
	})
}
