package promptpay

import (
	"strings"
	"testing"

	"github.com/FoodCourtHub/server/internal/money"
)

func TestCRC16CCITT(t *testing.T) {
	// Standard check value for CRC-16/CCITT-FALSE.
	if got := crc16CCITT([]byte("123456789")); got != 0x29B1 {
		t.Errorf("crc16CCITT(123456789) = %04X, want 29B1", got)
	}
	if got := crc16CCITT(nil); got != 0xFFFF {
		t.Errorf("crc16CCITT(empty) = %04X, want FFFF", got)
	}
}

func TestFormatTLVCountsBytes(t *testing.T) {
	tests := []struct {
		tag   string
		value string
		want  string
	}{
		{"00", "01", "000201"},
		{"53", "764", "5303764"},
		// Thai text: 4 runes, 12 UTF-8 bytes. Length must be the byte count.
		{"59", "ร้าน", "5912ร้าน"},
	}
	for _, tt := range tests {
		if got := formatTLV(tt.tag, tt.value); got != tt.want {
			t.Errorf("formatTLV(%q, %q) = %q, want %q", tt.tag, tt.value, got, tt.want)
		}
	}
}

func TestBillPaymentStatic(t *testing.T) {
	payload, err := BillPayment{
		BillerID: "000000000000099",
		Ref1:     "0000001",
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}

	// Fixed tag order for the static form.
	for _, frag := range []string{"000201", "010211", "5303764", "5802TH"} {
		if !strings.Contains(payload, frag) {
			t.Errorf("payload missing %q: %s", frag, payload)
		}
	}
	if strings.Contains(payload, "5404") {
		t.Errorf("static payload must not carry Tag 54: %s", payload)
	}
	// Bill Payment AID, not the Credit Transfer one.
	if !strings.Contains(payload, "0016A000000677010112") {
		t.Errorf("payload missing bill payment AID: %s", payload)
	}
	if strings.Contains(payload, "A000000677010111") {
		t.Errorf("payload carries credit transfer AID: %s", payload)
	}
	if payload[len(payload)-8:len(payload)-4] != "6304" {
		t.Errorf("payload does not end with 6304 + CRC: %s", payload)
	}
	if !VerifyCRC(payload) {
		t.Errorf("CRC round-trip failed: %s", payload)
	}
}

func TestBillPaymentDynamicAmount(t *testing.T) {
	amount, _ := money.ParseBaht("14.81")
	payload, err := BillPayment{
		BillerID: "000000000000099",
		Ref1:     "0000001",
		Amount:   amount,
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, "010212") {
		t.Errorf("dynamic payload must use point-of-initiation 12: %s", payload)
	}
	if !strings.Contains(payload, "540514.81") {
		t.Errorf("payload missing Tag 54 subfield 540514.81: %s", payload)
	}
	if !VerifyCRC(payload) {
		t.Errorf("CRC round-trip failed: %s", payload)
	}
}

func TestBillPaymentBillerNormalization(t *testing.T) {
	payload, err := BillPayment{BillerID: "0-1055-43000-91-1 99", Ref1: "X"}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, "0115010554300091199") {
		t.Errorf("biller id not normalized to 15 digits: %s", payload)
	}
}

func TestBillPaymentValidation(t *testing.T) {
	if _, err := (BillPayment{BillerID: "no-digits", Ref1: "1"}).Payload(); err == nil {
		t.Error("biller without digits should fail")
	}
	if _, err := (BillPayment{BillerID: "123", Ref1: ""}).Payload(); err == nil {
		t.Error("missing ref1 should fail")
	}
	if _, err := (BillPayment{BillerID: "123", Ref1: "1", Amount: money.FromSatang(-1)}).Payload(); err == nil {
		t.Error("negative amount should fail")
	}
}

func TestBillPaymentRefLimits(t *testing.T) {
	payload, err := BillPayment{
		BillerID: "000000000000099",
		Ref1:     strings.Repeat("1", 30),
		Ref2:     strings.Repeat("2", 30),
		Ref3:     strings.Repeat("3", 30),
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, "0220"+strings.Repeat("1", 20)) {
		t.Errorf("ref1 not truncated to 20: %s", payload)
	}
	if !strings.Contains(payload, "0325"+strings.Repeat("2", 25)) {
		t.Errorf("ref2 not truncated to 25: %s", payload)
	}
	if !strings.Contains(payload, "0427"+strings.Repeat("3", 27)) {
		t.Errorf("ref3 not truncated to 27: %s", payload)
	}
}

func TestCreditTransferMobile(t *testing.T) {
	payload, err := CreditTransfer{MobileNumber: "081-234-5678"}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	// Leading zero dropped, 0066 country prefix added.
	if !strings.Contains(payload, "01130066812345678") {
		t.Errorf("mobile proxy not formatted: %s", payload)
	}
	if !strings.Contains(payload, "0016A000000677010111") {
		t.Errorf("payload missing credit transfer AID: %s", payload)
	}
	if !VerifyCRC(payload) {
		t.Errorf("CRC round-trip failed: %s", payload)
	}
}

func TestCreditTransferNationalID(t *testing.T) {
	payload, err := CreditTransfer{NationalID: "1234567890123"}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, "02160001234567890123") {
		t.Errorf("national id proxy not formatted: %s", payload)
	}
}

func TestCreditTransferEWallet(t *testing.T) {
	payload, err := CreditTransfer{EWalletID: "004999000288505"}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, "0315004999000288505") {
		t.Errorf("e-wallet proxy not formatted: %s", payload)
	}
}

func TestCreditTransferPrecedence(t *testing.T) {
	// Mobile wins when several proxies are supplied.
	payload, err := CreditTransfer{
		MobileNumber: "0812345678",
		NationalID:   "1234567890123",
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(payload, "1234567890123") {
		t.Errorf("national id emitted despite mobile being present: %s", payload)
	}
}

func TestCreditTransferValidation(t *testing.T) {
	tests := []struct {
		name string
		ct   CreditTransfer
	}{
		{"no proxy", CreditTransfer{}},
		{"mobile too short", CreditTransfer{MobileNumber: "08123"}},
		{"mobile too long", CreditTransfer{MobileNumber: "081234567890"}},
		{"national id wrong length", CreditTransfer{NationalID: "12345"}},
		{"e-wallet wrong length", CreditTransfer{EWalletID: "12345"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.ct.Payload(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
