// Package identity derives the deterministic identifiers a merchant carries
// through the payment pipeline: the 20-digit token used as ref1 in QR
// payloads and webhook routing, and the 15-digit PromptPay biller ID.
package identity

import (
	"strconv"
	"strings"

	"github.com/FoodCourtHub/server/internal/errors"
)

// Token widths: group(3) + site(4) + store(6) + menu(7) = 20 digits.
const (
	GroupWidth = 3
	SiteWidth  = 4
	StoreWidth = 6
	MenuWidth  = 7

	TokenLength = GroupWidth + SiteWidth + StoreWidth + MenuWidth

	BillerIDLength = 15
)

// BuildMerchantToken composes the 20-digit merchant token. Each component is
// zero-padded to its fixed width; components that do not fit are rejected
// rather than truncated, because a truncated token would collide with
// another merchant's.
func BuildMerchantToken(groupID, siteID, storeID, menuID int64) (string, error) {
	parts := []struct {
		name  string
		value int64
		width int
	}{
		{"group_id", groupID, GroupWidth},
		{"site_id", siteID, SiteWidth},
		{"store_id", storeID, StoreWidth},
		{"menu_id", menuID, MenuWidth},
	}

	var b strings.Builder
	b.Grow(TokenLength)
	for _, p := range parts {
		if p.value < 0 {
			return "", errors.E(errors.ErrCodeInvalidField, "%s must not be negative", p.name)
		}
		s := zeroPad(p.value, p.width)
		if len(s) > p.width {
			return "", errors.E(errors.ErrCodeInvalidField, "%s %d exceeds %d digits", p.name, p.value, p.width)
		}
		b.WriteString(s)
	}
	return b.String(), nil
}

// DeriveBillerID produces the 15-digit PromptPay biller ID for Tag 30.
// An explicit override wins; otherwise the convention is the merchant tax ID
// digits with "99" appended, left-padded or truncated to 15.
func DeriveBillerID(taxID, override string) (string, error) {
	if d := digitsOnly(override); d != "" {
		return fitBillerID(d), nil
	}
	d := digitsOnly(taxID)
	if d == "" {
		return "", errors.E(errors.ErrCodeInvalidField, "biller id requires a tax id or an override")
	}
	return fitBillerID(d + "99"), nil
}

// ValidToken reports whether s is a well-formed 20-digit merchant token.
func ValidToken(s string) bool {
	if len(s) != TokenLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func fitBillerID(d string) string {
	if len(d) > BillerIDLength {
		return d[len(d)-BillerIDLength:]
	}
	return strings.Repeat("0", BillerIDLength-len(d)) + d
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

func zeroPad(v int64, width int) string {
	digits := strconv.FormatInt(v, 10)
	if len(digits) >= width {
		return digits
	}
	return strings.Repeat("0", width-len(digits)) + digits
}
