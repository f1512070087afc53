package promptpay

import (
	"strings"
	"testing"

	"github.com/FoodCourtHub/server/internal/money"
)

func TestBOTShort(t *testing.T) {
	amount, _ := money.ParseBaht("100.00")
	payload, err := BOTShort{
		BillerID: "000000000000099",
		Ref1:     "00100100000100000001",
		Amount:   amount,
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}

	// Short form carries no category, name, city, or additional data.
	for _, absent := range []string{"52040000", "5902", "6002", "6204"} {
		if strings.Contains(payload, absent) {
			t.Errorf("short form must not contain %q: %s", absent, payload)
		}
	}
	if !strings.Contains(payload, "5406100.00") {
		t.Errorf("missing amount tag: %s", payload)
	}
	if !strings.Contains(payload, "5802TH") {
		t.Errorf("missing country tag: %s", payload)
	}
	if !VerifyCRC(payload) {
		t.Errorf("CRC round-trip failed: %s", payload)
	}
}

func TestBOTLongBuyerBlock(t *testing.T) {
	payload, err := BOTLong{
		BillerID:       "000000000000099",
		Ref1:           "00100100000100000001",
		BuyerName:      "Somchai Jaidee",
		BuyerAddress:   "99 Rama IV Rd",
		BuyerCity:      "Khlong Toei",
		BuyerProvince:  "Bangkok",
		BuyerPostcode:  "10110",
		BuyerCountry:   "Thailand",
		IncomeTypeCode: "406",
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}

	// Each present buyer field is CR-terminated, in BOT table order.
	block := "Somchai Jaidee\r99 Rama IV Rd\rKhlong Toei\rBangkok\r10110\rThailand\r406\r"
	if !strings.Contains(payload, block) {
		t.Errorf("buyer block not CR-delimited in order: %s", payload)
	}
	if !VerifyCRC(payload) {
		t.Errorf("CRC round-trip failed: %s", payload)
	}
}

func TestBOTLongFieldTruncation(t *testing.T) {
	payload, err := BOTLong{
		BillerID:      "000000000000099",
		Ref1:          "1",
		BuyerName:     strings.Repeat("N", 40),
		BuyerPostcode: "1234567",
	}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(payload, strings.Repeat("N", 30)+"\r") {
		t.Errorf("buyer name not truncated to 30: %s", payload)
	}
	if strings.Contains(payload, strings.Repeat("N", 31)) {
		t.Errorf("buyer name exceeds 30 chars: %s", payload)
	}
	if !strings.Contains(payload, "12345\r") {
		t.Errorf("postcode not truncated to 5: %s", payload)
	}
}

func TestBOTLongNoBuyerFieldsOmitsTag62(t *testing.T) {
	long, err := BOTLong{BillerID: "99", Ref1: "1"}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	short, err := BOTShort{BillerID: "99", Ref1: "1"}.Payload()
	if err != nil {
		t.Fatal(err)
	}
	if long != short {
		t.Errorf("long form without buyer data should equal short form:\n%s\n%s", long, short)
	}
}
