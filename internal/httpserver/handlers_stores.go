package httpserver

import (
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/identity"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/promptpay"
	"github.com/FoodCourtHub/server/internal/storage"
)

type storeRequest struct {
	Name          string   `json:"name"`
	TaxID         string   `json:"tax_id,omitempty"`
	BillerID      string   `json:"biller_id,omitempty"`
	GroupID       int64    `json:"group_id"`
	SiteID        int64    `json:"site_id"`
	DefaultMenuID int64    `json:"default_menu_id"`
	CallbackURL   string   `json:"callback_url,omitempty"`
	LocationName  string   `json:"location_name,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	Active        *bool    `json:"active,omitempty"`
}

// storeCreate registers a merchant. The 20-digit token embeds the row ID the
// database assigns, so the row is inserted with a placeholder and updated
// with the real token once the ID is known.
func (h handlers) storeCreate(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeMissingField, "missing name"))
		return
	}

	billerID, err := identity.DeriveBillerID(req.TaxID, req.BillerID)
	if err != nil && (req.TaxID != "" || req.BillerID != "") {
		writeError(w, err)
		return
	}

	m := &storage.Merchant{
		Name:          req.Name,
		TaxID:         req.TaxID,
		BillerID:      billerID,
		GroupID:       req.GroupID,
		SiteID:        req.SiteID,
		DefaultMenuID: req.DefaultMenuID,
		Token:         "pending-" + uuid.NewString(),
		CallbackURL:   req.CallbackURL,
		LocationName:  req.LocationName,
		Latitude:      req.Latitude,
		Longitude:     req.Longitude,
		Active:        true,
	}
	if req.Active != nil {
		m.Active = *req.Active
	}

	created, err := h.store.CreateMerchant(r.Context(), m)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	token, err := identity.BuildMerchantToken(created.GroupID, created.SiteID, created.ID, created.DefaultMenuID)
	if err != nil {
		writeError(w, err)
		return
	}
	created.Token = token
	final, err := h.store.UpdateMerchant(r.Context(), created)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}

	h.log.Info().Int64("store_id", final.ID).Str("token", final.Token).Msg("store created")
	writeJSON(w, http.StatusCreated, final)
}

// storeUpdate edits a merchant. A change to any component of the scoping
// tuple regenerates the token, which also changes the ref1 the store's QRs
// carry from then on.
func (h handlers) storeUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req storeRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}

	m, err := h.store.GetMerchant(r.Context(), id)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}

	if req.Name != "" {
		m.Name = req.Name
	}
	if req.TaxID != "" {
		m.TaxID = req.TaxID
	}
	if req.TaxID != "" || req.BillerID != "" {
		billerID, derr := identity.DeriveBillerID(m.TaxID, req.BillerID)
		if derr != nil {
			writeError(w, derr)
			return
		}
		m.BillerID = billerID
	}
	if req.CallbackURL != "" {
		m.CallbackURL = req.CallbackURL
	}
	if req.LocationName != "" {
		m.LocationName = req.LocationName
	}
	if req.Latitude != nil {
		m.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		m.Longitude = req.Longitude
	}
	if req.Active != nil {
		m.Active = *req.Active
	}

	scopeChanged := false
	if req.GroupID > 0 && req.GroupID != m.GroupID {
		m.GroupID = req.GroupID
		scopeChanged = true
	}
	if req.SiteID > 0 && req.SiteID != m.SiteID {
		m.SiteID = req.SiteID
		scopeChanged = true
	}
	if req.DefaultMenuID > 0 && req.DefaultMenuID != m.DefaultMenuID {
		m.DefaultMenuID = req.DefaultMenuID
		scopeChanged = true
	}
	if scopeChanged {
		token, terr := identity.BuildMerchantToken(m.GroupID, m.SiteID, m.ID, m.DefaultMenuID)
		if terr != nil {
			writeError(w, terr)
			return
		}
		m.Token = token
	}

	updated, err := h.store.UpdateMerchant(r.Context(), m)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	// Cached banking profiles key off the scoping tuple; drop them so the
	// next charge resolves against the new scope.
	if scopeChanged && h.profiles != nil {
		h.profiles.InvalidateAll()
	}
	writeJSON(w, http.StatusOK, updated)
}

type promptPayQRRequest struct {
	MenuID              int64   `json:"menu_id,omitempty"`
	Ref3                string  `json:"ref3,omitempty"`
	Amount              float64 `json:"amount"`
	PromptPayMobile     string  `json:"promptpay_mobile,omitempty"`
	PromptPayNationalID string  `json:"promptpay_national_id,omitempty"`
}

// storePromptPayQR renders Tag 30 bill-payment payloads for the store, plus
// Tag 29 credit-transfer payloads when a personal PromptPay ID is supplied.
// Each comes in a static (no amount) and dynamic (amount-locked) variant.
func (h handlers) storePromptPayQR(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req promptPayQRRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.FromBaht(req.Amount)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeInvalidAmount, err, "parse amount"))
		return
	}

	m, err := h.store.GetMerchant(r.Context(), id)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	ref1 := m.Token
	if req.MenuID > 0 {
		ref1, err = identity.BuildMerchantToken(m.GroupID, m.SiteID, m.ID, req.MenuID)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if m.BillerID == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeInvalidField, "store %d has no biller id", m.ID))
		return
	}

	bill := promptpay.BillPayment{
		BillerID:     m.BillerID,
		Ref1:         ref1,
		Ref3:         req.Ref3,
		MerchantName: m.Name,
		MerchantCity: m.LocationName,
	}
	resp := map[string]any{
		"store_id": m.ID,
		"ref1":     ref1,
	}

	static30, err := bill.Payload()
	if err != nil {
		writeError(w, err)
		return
	}
	resp["tag30_static"] = static30
	if amount.IsPositive() {
		bill.Amount = amount
		dynamic30, derr := bill.Payload()
		if derr != nil {
			writeError(w, derr)
			return
		}
		resp["tag30_dynamic"] = dynamic30
		resp["amount"] = amount.BahtString()
	}

	if req.PromptPayMobile != "" || req.PromptPayNationalID != "" {
		transfer := promptpay.CreditTransfer{
			MobileNumber: req.PromptPayMobile,
			NationalID:   req.PromptPayNationalID,
			MerchantName: m.Name,
			MerchantCity: m.LocationName,
		}
		static29, terr := transfer.Payload()
		if terr != nil {
			writeError(w, terr)
			return
		}
		resp["tag29_static"] = static29
		if amount.IsPositive() {
			transfer.Amount = amount
			dynamic29, terr := transfer.Payload()
			if terr != nil {
				writeError(w, terr)
				return
			}
			resp["tag29_dynamic"] = dynamic29
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type botQRRequest struct {
	MenuID int64   `json:"menu_id,omitempty"`
	Ref3   string  `json:"ref3,omitempty"`
	Amount float64 `json:"amount"`

	BuyerName     string `json:"buyer_name,omitempty"`
	BuyerAddress  string `json:"buyer_address,omitempty"`
	BuyerCity     string `json:"buyer_city,omitempty"`
	BuyerProvince string `json:"buyer_province,omitempty"`
	BuyerPostcode string `json:"buyer_postcode,omitempty"`
	BuyerCountry  string `json:"buyer_country,omitempty"`
}

// storeBOTQR renders the Bank of Thailand standard payloads: the long form
// with the Tag 62 buyer block for invoicing, and the compact short form for
// sticker printing.
func (h handlers) storeBOTQR(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req botQRRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := money.FromBaht(req.Amount)
	if err != nil {
		writeError(w, apierrors.Wrap(apierrors.ErrCodeInvalidAmount, err, "parse amount"))
		return
	}

	m, err := h.store.GetMerchant(r.Context(), id)
	if err != nil {
		writeError(w, mapStoreErr(err))
		return
	}
	ref1 := m.Token
	if req.MenuID > 0 {
		ref1, err = identity.BuildMerchantToken(m.GroupID, m.SiteID, m.ID, req.MenuID)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	if m.BillerID == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeInvalidField, "store %d has no biller id", m.ID))
		return
	}

	long := promptpay.BOTLong{
		BillerID:      m.BillerID,
		Ref1:          ref1,
		Ref3:          req.Ref3,
		Amount:        amount,
		BuyerName:     req.BuyerName,
		BuyerAddress:  req.BuyerAddress,
		BuyerCity:     req.BuyerCity,
		BuyerProvince: req.BuyerProvince,
		BuyerPostcode: req.BuyerPostcode,
		BuyerCountry:  req.BuyerCountry,
	}
	longPayload, err := long.Payload()
	if err != nil {
		writeError(w, err)
		return
	}
	short := promptpay.BOTShort{
		BillerID: m.BillerID,
		Ref1:     ref1,
		Ref3:     req.Ref3,
		Amount:   amount,
	}
	shortPayload, err := short.Payload()
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"store_id":   m.ID,
		"ref1":       ref1,
		"long_form":  longPayload,
		"short_form": shortPayload,
	})
}

// mapStoreErr translates sentinel store errors into typed API errors.
func mapStoreErr(err error) error {
	switch err {
	case storage.ErrNotFound:
		return apierrors.E(apierrors.ErrCodeStoreNotFound, "store not found")
	case storage.ErrDuplicate:
		return apierrors.E(apierrors.ErrCodeDuplicateToken, "token already in use")
	default:
		return err
	}
}
