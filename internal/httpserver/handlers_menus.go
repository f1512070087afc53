package httpserver

import (
	"fmt"
	"net/http"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

type menuRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	UnitPrice   float64 `json:"unit_price"`
	Active      *bool   `json:"active,omitempty"`
}

func (h handlers) menuCreate(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req menuRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeMissingField, "missing name"))
		return
	}
	price, err := money.FromBaht(req.UnitPrice)
	if err != nil || price.IsNegative() {
		writeError(w, apierrors.E(apierrors.ErrCodeInvalidAmount, "invalid unit_price"))
		return
	}

	m := &storage.Menu{
		MerchantID:  storeID,
		Name:        req.Name,
		Description: req.Description,
		UnitPrice:   price,
		Active:      true,
	}
	if req.Active != nil {
		m.Active = *req.Active
	}
	created, err := h.store.CreateMenu(r.Context(), m)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	writeJSON(w, http.StatusCreated, menuRow(created))
}

func (h handlers) menuList(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	menus, err := h.store.ListMenus(r.Context(), storeID)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	rows := make([]map[string]any, 0, len(menus))
	for _, m := range menus {
		rows = append(rows, menuRow(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store_id": storeID,
		"count":    len(menus),
		"menus":    rows,
	})
}

func menuRow(m *storage.Menu) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"store_id":    m.MerchantID,
		"name":        m.Name,
		"description": m.Description,
		"unit_price":  m.UnitPrice.BahtString(),
		"active":      m.Active,
	}
}

type quickAmountRequest struct {
	Amount       float64 `json:"amount"`
	Label        string  `json:"label,omitempty"`
	DisplayOrder int     `json:"display_order,omitempty"`
}

// quickAmountCreate adds a preset keypad amount. A missing label defaults
// to the whole-baht figure.
func (h handlers) quickAmountCreate(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req quickAmountRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.FromBaht(req.Amount)
	if err != nil || !amount.IsPositive() {
		writeError(w, apierrors.E(apierrors.ErrCodeInvalidAmount, "amount must be positive"))
		return
	}
	label := req.Label
	if label == "" {
		label = fmt.Sprintf("%.0f บาท", amount.Baht())
	}

	created, err := h.store.CreateQuickAmount(r.Context(), &storage.StoreQuickAmount{
		MerchantID:   storeID,
		Amount:       amount,
		Label:        label,
		DisplayOrder: req.DisplayOrder,
		Active:       true,
	})
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	writeJSON(w, http.StatusCreated, quickAmountRow(created))
}

func (h handlers) quickAmountList(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	amounts, err := h.store.ListQuickAmounts(r.Context(), storeID)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	rows := make([]map[string]any, 0, len(amounts))
	for _, qa := range amounts {
		rows = append(rows, quickAmountRow(qa))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store_id":      storeID,
		"count":         len(amounts),
		"quick_amounts": rows,
	})
}

func quickAmountRow(qa *storage.StoreQuickAmount) map[string]any {
	return map[string]any{
		"id":            qa.ID,
		"store_id":      qa.MerchantID,
		"amount":        qa.Amount.BahtString(),
		"label":         qa.Label,
		"display_order": qa.DisplayOrder,
	}
}
