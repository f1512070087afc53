package promptpay

import (
	"fmt"
	"strings"
)

// EMV tag identifiers used by the Thai QR payment payloads this codec emits.
const (
	tagPayloadFormat    = "00"
	tagPointOfInit      = "01"
	tagCreditTransfer   = "29"
	tagBillPayment      = "30"
	tagMerchantCategory = "52"
	tagCurrency         = "53"
	tagAmount           = "54"
	tagCountry          = "58"
	tagMerchantName     = "59"
	tagMerchantCity     = "60"
	tagAdditionalData   = "62"
	tagCRC              = "63"
)

// PromptPay application identifiers. Credit Transfer and Bill Payment carry
// different AIDs; conflating them produces QRs some banking apps reject.
const (
	aidCreditTransfer = "A000000677010111"
	aidBillPayment    = "A000000677010112"
)

// Point-of-initiation values: static QRs (no amount) reuse, dynamic QRs
// (amount embedded) are single-shot.
const (
	initStatic  = "11"
	initDynamic = "12"
)

// formatTLV renders one Tag-Length-Value element. Length counts UTF-8 bytes
// of the value, not code points; a Thai merchant name is longer in bytes
// than in runes and scanners validate the byte count.
func formatTLV(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

// finalizeWithCRC appends the Tag 63 header, computes the CRC over
// everything emitted so far including that header, and appends the four
// uppercase hex digits.
func finalizeWithCRC(payload string) string {
	withHeader := payload + tagCRC + "04"
	crc := crc16CCITT([]byte(withHeader))
	return fmt.Sprintf("%s%04X", withHeader, crc)
}

// VerifyCRC reports whether the trailing four hex digits of a finished
// payload match the CRC of everything before them.
func VerifyCRC(payload string) bool {
	if len(payload) < 8 {
		return false
	}
	body := payload[:len(payload)-4]
	want := payload[len(payload)-4:]
	got := fmt.Sprintf("%04X", crc16CCITT([]byte(body)))
	return got == strings.ToUpper(want)
}

// truncateRunes limits s to max runes (buyer fields and names are
// character-width constrained, unlike TLV lengths which count bytes).
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
