package httpserver

import (
	"net/http"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/signage"
)

type setDisplayRequest struct {
	StoreID int64   `json:"store_id"`
	QRImage string  `json:"qr_image"`
	Amount  float64 `json:"amount"`
}

// signageSetDisplay publishes a QR to a store's customer display and arms
// the slot for the matching rail callback.
func (h handlers) signageSetDisplay(w http.ResponseWriter, r *http.Request) {
	var req setDisplayRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
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

	slot, err := h.signage.SetDisplay(req.StoreID, req.QRImage, amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slotResponse(slot))
}

// signageDisplay is the endpoint the display boards poll. A board with no
// armed slot gets a 404 and shows its idle screen.
func (h handlers) signageDisplay(w http.ResponseWriter, r *http.Request) {
	storeID, err := signageStoreID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	slot, ok := h.signage.Display(storeID)
	if !ok {
		writeError(w, apierrors.E(apierrors.ErrCodeResourceNotFound, "no display slot for store %d", storeID))
		return
	}
	writeJSON(w, http.StatusOK, slotResponse(slot))
}

// signageAckPaid clears a paid slot after the board has shown the
// confirmation screen.
func (h handlers) signageAckPaid(w http.ResponseWriter, r *http.Request) {
	storeID, err := signageStoreID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.signage.AckPaid(storeID); err != nil {
		writeError(w, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveSignageFlip("paid_acked")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store_id": storeID,
		"status":   "cleared",
	})
}

// signageClear blanks a slot regardless of state, for an abandoned checkout.
func (h handlers) signageClear(w http.ResponseWriter, r *http.Request) {
	storeID, err := signageStoreID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	h.signage.Cancel(storeID)
	if h.metrics != nil {
		h.metrics.ObserveSignageFlip("cancelled")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store_id": storeID,
		"status":   "cleared",
	})
}

func signageStoreID(r *http.Request) (int64, error) {
	id, err := queryInt64(r, "store_id")
	if err != nil {
		return 0, err
	}
	if id == nil || *id <= 0 {
		return 0, apierrors.E(apierrors.ErrCodeMissingField, "missing store_id")
	}
	return *id, nil
}

func slotResponse(slot *signage.Slot) map[string]any {
	return map[string]any{
		"store_id":   slot.MerchantID,
		"qr_image":   slot.QRImage,
		"amount":     slot.Amount.BahtString(),
		"status":     slot.State,
		"updated_at": slot.UpdatedAt,
	}
}
