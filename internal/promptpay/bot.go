package promptpay

import (
	"strings"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
)

// Bank of Thailand bill-payment forms. The long (362-char) form carries a
// Tag 62 block of carriage-return-delimited buyer fields for withholding-tax
// receipts; the short (62-char) form omits Tag 62 and the 52/59/60 tags.
//
// Buyer field widths per the BOT table.
const (
	maxBuyerName     = 30
	maxBuyerAddress  = 70
	maxBuyerCity     = 30
	maxBuyerProvince = 30
	maxBuyerPostcode = 5
	maxBuyerCountry  = 30
	maxIncomeType    = 3
)

// BOTLong is the full 362-character form.
type BOTLong struct {
	BillerID string
	Ref1     string
	Ref2     string
	Ref3     string
	Amount   money.Amount

	BuyerName     string
	BuyerAddress  string
	BuyerCity     string
	BuyerProvince string
	BuyerPostcode string
	BuyerCountry  string
	// IncomeTypeCode is the 3-digit assessable-income classification.
	IncomeTypeCode string
}

// Payload renders the finished payload including CRC.
func (b BOTLong) Payload() (string, error) {
	bp := BillPayment{BillerID: b.BillerID, Ref1: b.Ref1, Ref2: b.Ref2, Ref3: b.Ref3, Amount: b.Amount}
	base, err := botBase(bp)
	if err != nil {
		return "", err
	}

	var extra strings.Builder
	appendBuyerField(&extra, b.BuyerName, maxBuyerName)
	appendBuyerField(&extra, b.BuyerAddress, maxBuyerAddress)
	appendBuyerField(&extra, b.BuyerCity, maxBuyerCity)
	appendBuyerField(&extra, b.BuyerProvince, maxBuyerProvince)
	appendBuyerField(&extra, b.BuyerPostcode, maxBuyerPostcode)
	appendBuyerField(&extra, b.BuyerCountry, maxBuyerCountry)
	appendBuyerField(&extra, b.IncomeTypeCode, maxIncomeType)

	payload := base
	if extra.Len() > 0 {
		payload += formatTLV(tagAdditionalData, extra.String())
	}
	return finalizeWithCRC(payload), nil
}

// BOTShort is the 62-character form: bill-payment subtemplate, currency,
// optional amount, country, CRC. Nothing else.
type BOTShort struct {
	BillerID string
	Ref1     string
	Ref2     string
	Ref3     string
	Amount   money.Amount
}

// Payload renders the finished payload including CRC.
func (b BOTShort) Payload() (string, error) {
	base, err := botBase(BillPayment{BillerID: b.BillerID, Ref1: b.Ref1, Ref2: b.Ref2, Ref3: b.Ref3, Amount: b.Amount})
	if err != nil {
		return "", err
	}
	return finalizeWithCRC(base), nil
}

// botBase renders tags 00, 01, 30, 53, 54?, 58 shared by both BOT forms.
func botBase(bp BillPayment) (string, error) {
	sub, err := bp.subtemplate()
	if err != nil {
		return "", err
	}
	if bp.Amount.IsNegative() {
		return "", errors.E(errors.ErrCodeInvalidAmount, "amount cannot be negative")
	}

	var p strings.Builder
	p.WriteString(formatTLV(tagPayloadFormat, "01"))
	p.WriteString(formatTLV(tagPointOfInit, pointOfInit(bp.Amount)))
	p.WriteString(formatTLV(tagBillPayment, sub))
	p.WriteString(formatTLV(tagCurrency, money.NumericCurrency))
	if bp.Amount.IsPositive() {
		p.WriteString(formatTLV(tagAmount, bp.Amount.BahtString()))
	}
	p.WriteString(formatTLV(tagCountry, "TH"))
	return p.String(), nil
}

// appendBuyerField truncates to the BOT width and terminates with CR.
// Absent fields are skipped entirely.
func appendBuyerField(b *strings.Builder, value string, max int) {
	if value == "" {
		return
	}
	b.WriteString(truncateRunes(value, max))
	b.WriteByte('\r')
}
