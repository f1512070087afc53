// Package promptpay builds EMV-QR Merchant-Presented-Mode payloads for the
// Thai PromptPay rails: Tag 29 credit transfer, Tag 30 bill payment, and the
// Bank of Thailand long (362) and short (62) bill-payment forms.
package promptpay

import (
	"strings"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
)

// Field width limits from the BOT specification.
const (
	maxRef1         = 20
	maxRef2         = 25
	maxRef3         = 27
	maxMerchantName = 25
	maxMerchantCity = 15

	billerIDLength = 15
)

const (
	defaultMerchantName = "NA"
	defaultMerchantCity = "BANGKOK"
)

// BillPayment describes a Tag 30 business QR. Amount zero produces a static
// QR (Tag 01 = 11, no Tag 54); a positive amount produces a dynamic one.
type BillPayment struct {
	BillerID     string
	Ref1         string
	Ref2         string
	Ref3         string
	Amount       money.Amount
	MerchantName string
	MerchantCity string
}

// Payload renders the finished payload including CRC.
func (b BillPayment) Payload() (string, error) {
	sub, err := b.subtemplate()
	if err != nil {
		return "", err
	}
	if b.Amount.IsNegative() {
		return "", errors.E(errors.ErrCodeInvalidAmount, "amount cannot be negative")
	}

	var p strings.Builder
	p.WriteString(formatTLV(tagPayloadFormat, "01"))
	p.WriteString(formatTLV(tagPointOfInit, pointOfInit(b.Amount)))
	p.WriteString(formatTLV(tagBillPayment, sub))
	p.WriteString(formatTLV(tagMerchantCategory, "0000"))
	p.WriteString(formatTLV(tagCurrency, money.NumericCurrency))
	if b.Amount.IsPositive() {
		p.WriteString(formatTLV(tagAmount, b.Amount.BahtString()))
	}
	p.WriteString(formatTLV(tagCountry, "TH"))
	p.WriteString(formatTLV(tagMerchantName, orDefault(truncateRunes(b.MerchantName, maxMerchantName), defaultMerchantName)))
	p.WriteString(formatTLV(tagMerchantCity, orDefault(truncateRunes(b.MerchantCity, maxMerchantCity), defaultMerchantCity)))
	return finalizeWithCRC(p.String()), nil
}

// subtemplate renders the Tag 30 merchant account information block.
func (b BillPayment) subtemplate() (string, error) {
	biller := digitsOnly(b.BillerID)
	if biller == "" {
		return "", errors.E(errors.ErrCodeInvalidField, "biller id must contain at least one digit")
	}
	if len(biller) < billerIDLength {
		biller = strings.Repeat("0", billerIDLength-len(biller)) + biller
	} else if len(biller) > billerIDLength {
		biller = biller[:billerIDLength]
	}
	if b.Ref1 == "" {
		return "", errors.E(errors.ErrCodeMissingField, "ref1 is required")
	}

	var sub strings.Builder
	sub.WriteString(formatTLV("00", aidBillPayment))
	sub.WriteString(formatTLV("01", biller))
	sub.WriteString(formatTLV("02", truncateRunes(b.Ref1, maxRef1)))
	if b.Ref2 != "" {
		sub.WriteString(formatTLV("03", truncateRunes(b.Ref2, maxRef2)))
	}
	if b.Ref3 != "" {
		sub.WriteString(formatTLV("04", truncateRunes(b.Ref3, maxRef3)))
	}
	return sub.String(), nil
}

// CreditTransfer describes a Tag 29 personal QR. Exactly one proxy must be
// set; precedence when several are present is mobile, then national ID,
// then e-wallet, matching the counter UI's fallback chain.
type CreditTransfer struct {
	MobileNumber string
	NationalID   string
	EWalletID    string
	Amount       money.Amount
	MerchantName string
	MerchantCity string
}

// Payload renders the finished payload including CRC.
func (c CreditTransfer) Payload() (string, error) {
	sub, err := c.subtemplate()
	if err != nil {
		return "", err
	}
	if c.Amount.IsNegative() {
		return "", errors.E(errors.ErrCodeInvalidAmount, "amount cannot be negative")
	}

	var p strings.Builder
	p.WriteString(formatTLV(tagPayloadFormat, "01"))
	p.WriteString(formatTLV(tagPointOfInit, pointOfInit(c.Amount)))
	p.WriteString(formatTLV(tagCreditTransfer, sub))
	p.WriteString(formatTLV(tagMerchantCategory, "0000"))
	p.WriteString(formatTLV(tagCurrency, money.NumericCurrency))
	if c.Amount.IsPositive() {
		p.WriteString(formatTLV(tagAmount, c.Amount.BahtString()))
	}
	p.WriteString(formatTLV(tagCountry, "TH"))
	p.WriteString(formatTLV(tagMerchantName, orDefault(truncateRunes(c.MerchantName, maxMerchantName), defaultMerchantName)))
	p.WriteString(formatTLV(tagMerchantCity, orDefault(truncateRunes(c.MerchantCity, maxMerchantCity), defaultMerchantCity)))
	return finalizeWithCRC(p.String()), nil
}

func (c CreditTransfer) subtemplate() (string, error) {
	var sub strings.Builder
	sub.WriteString(formatTLV("00", aidCreditTransfer))

	switch {
	case c.MobileNumber != "":
		mobile := digitsOnly(c.MobileNumber)
		if len(mobile) != 10 {
			return "", errors.E(errors.ErrCodeInvalidPhone, "mobile number must be 10 digits")
		}
		// Proxy format is country code 0066 plus the number without its
		// leading zero.
		sub.WriteString(formatTLV("01", "0066"+strings.TrimPrefix(mobile, "0")))
	case c.NationalID != "":
		nid := digitsOnly(c.NationalID)
		if len(nid) != 13 {
			return "", errors.E(errors.ErrCodeInvalidField, "national id must be 13 digits")
		}
		sub.WriteString(formatTLV("02", "000"+nid))
	case c.EWalletID != "":
		wallet := digitsOnly(c.EWalletID)
		if len(wallet) != 15 {
			return "", errors.E(errors.ErrCodeInvalidField, "e-wallet id must be 15 digits")
		}
		sub.WriteString(formatTLV("03", wallet))
	default:
		return "", errors.E(errors.ErrCodeMissingField, "one of mobile number, national id, or e-wallet id is required")
	}
	return sub.String(), nil
}

func pointOfInit(a money.Amount) string {
	if a.IsPositive() {
		return initDynamic
	}
	return initStatic
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
