// Package webhook normalizes rail-specific callback bodies into canonical
// back transactions and records them durably before the rail is
// acknowledged. Each rail speaks its own shape; everything funnels into one
// Event.
package webhook

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/money"
)

// Rail identifiers, used as the dedupe namespace for slip references.
const (
	RailSCB    = "scb"
	RailKBank  = "kbank"
	RailOmise  = "omise"
	RailStripe = "stripe"
)

// ErrIgnored marks a rail event that is acknowledged but records nothing,
// such as an Omise charge that has not completed yet.
var ErrIgnored = stderrors.New("webhook: event carries no completed payment")

// Event is the canonical form of one rail callback.
type Event struct {
	Rail          string
	Ref1          string
	Ref2          string
	Ref3          string
	Amount        money.Amount
	PaidAt        time.Time
	SlipReference string
	BankAccount   string
	Raw           []byte
}

func decode(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidField, err, "malformed webhook body")
	}
	return nil
}

// bahtAmount converts a JSON number carrying baht into satang.
func bahtAmount(n json.Number) (money.Amount, error) {
	if n == "" {
		return 0, errors.E(errors.ErrCodeMissingField, "missing amount")
	}
	a, err := money.ParseBaht(n.String())
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidAmount, err, "parse amount")
	}
	if !a.IsPositive() {
		return 0, errors.E(errors.ErrCodeInvalidAmount, "amount must be positive")
	}
	return a, nil
}

// satangAmount reads a JSON number already denominated in satang.
func satangAmount(n json.Number) (money.Amount, error) {
	if n == "" {
		return 0, errors.E(errors.ErrCodeMissingField, "missing amount")
	}
	v, err := n.Int64()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidAmount, err, "parse amount")
	}
	if v <= 0 {
		return 0, errors.E(errors.ErrCodeInvalidAmount, "amount must be positive")
	}
	return money.Amount(v), nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

// ParseGeneric handles the SCB-shaped generic callback.
func ParseGeneric(body []byte) (Event, error) {
	var payload struct {
		Ref1          string      `json:"ref1"`
		Ref2          string      `json:"ref2"`
		Ref3          string      `json:"ref3"`
		Amount        json.Number `json:"amount"`
		PaidAt        string      `json:"paid_at"`
		SlipReference string      `json:"slip_reference"`
		BankAccount   string      `json:"bank_account"`
	}
	if err := decode(body, &payload); err != nil {
		return Event{}, err
	}
	if payload.Ref1 == "" {
		return Event{}, errors.E(errors.ErrCodeMissingField, "missing ref1")
	}
	amount, err := bahtAmount(payload.Amount)
	if err != nil {
		return Event{}, err
	}
	paidAt := time.Now().UTC()
	if payload.PaidAt != "" {
		paidAt = parseTime(payload.PaidAt)
	}
	return Event{
		Rail:          RailSCB,
		Ref1:          payload.Ref1,
		Ref2:          payload.Ref2,
		Ref3:          payload.Ref3,
		Amount:        amount,
		PaidAt:        paidAt,
		SlipReference: payload.SlipReference,
		BankAccount:   payload.BankAccount,
		Raw:           body,
	}, nil
}

// ParseKBank handles the K Bank callback, which spells the same facts with
// different keys depending on the product generation.
func ParseKBank(body []byte) (Event, error) {
	var payload struct {
		Reference1      string      `json:"reference1"`
		Ref1            string      `json:"ref1"`
		Reference2      string      `json:"reference2"`
		TotalAmount     json.Number `json:"totalAmount"`
		Amount          json.Number `json:"amount"`
		TransactionID   string      `json:"transactionId"`
		TransRef        string      `json:"transRef"`
		TransactionDate string      `json:"transactionDate"`
		AccountNumber   string      `json:"accountNumber"`
	}
	if err := decode(body, &payload); err != nil {
		return Event{}, err
	}
	ref1 := payload.Reference1
	if ref1 == "" {
		ref1 = payload.Ref1
	}
	if ref1 == "" {
		return Event{}, errors.E(errors.ErrCodeMissingField, "missing reference1")
	}
	rawAmount := payload.TotalAmount
	if rawAmount == "" {
		rawAmount = payload.Amount
	}
	amount, err := bahtAmount(rawAmount)
	if err != nil {
		return Event{}, err
	}
	slip := payload.TransactionID
	if slip == "" {
		slip = payload.TransRef
	}
	paidAt := time.Now().UTC()
	if payload.TransactionDate != "" {
		paidAt = parseTime(payload.TransactionDate)
	}
	return Event{
		Rail:          RailKBank,
		Ref1:          ref1,
		Ref2:          payload.Reference2,
		Amount:        amount,
		PaidAt:        paidAt,
		SlipReference: slip,
		BankAccount:   payload.AccountNumber,
		Raw:           body,
	}, nil
}

// ParseOmise handles the Omise event envelope. Only a successful
// charge.complete carries a payment; anything else returns ErrIgnored.
func ParseOmise(body []byte) (Event, error) {
	var payload struct {
		Key  string `json:"key"`
		Data struct {
			ID       string      `json:"id"`
			Status   string      `json:"status"`
			Amount   json.Number `json:"amount"`
			PaidAt   string      `json:"paid_at"`
			Metadata struct {
				Ref1 string `json:"ref1"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := decode(body, &payload); err != nil {
		return Event{}, err
	}
	if payload.Key != "charge.complete" || payload.Data.Status != "successful" {
		return Event{}, ErrIgnored
	}
	if payload.Data.Metadata.Ref1 == "" {
		return Event{}, errors.E(errors.ErrCodeMissingField, "missing metadata.ref1")
	}
	amount, err := satangAmount(payload.Data.Amount)
	if err != nil {
		return Event{}, err
	}
	paidAt := time.Now().UTC()
	if payload.Data.PaidAt != "" {
		paidAt = parseTime(payload.Data.PaidAt)
	}
	return Event{
		Rail:          RailOmise,
		Ref1:          payload.Data.Metadata.Ref1,
		Amount:        amount,
		PaidAt:        paidAt,
		SlipReference: payload.Data.ID,
		Raw:           body,
	}, nil
}

// ParseStripe handles the Stripe event envelope. Only
// payment_intent.succeeded carries a payment.
func ParseStripe(body []byte) (Event, error) {
	var payload struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID       string      `json:"id"`
				Amount   json.Number `json:"amount"`
				Created  json.Number `json:"created"`
				Metadata struct {
					Ref1 string `json:"ref1"`
				} `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := decode(body, &payload); err != nil {
		return Event{}, err
	}
	if payload.Type != "payment_intent.succeeded" {
		return Event{}, ErrIgnored
	}
	obj := payload.Data.Object
	if obj.Metadata.Ref1 == "" {
		return Event{}, errors.E(errors.ErrCodeMissingField, "missing metadata.ref1")
	}
	amount, err := satangAmount(obj.Amount)
	if err != nil {
		return Event{}, err
	}
	paidAt := time.Now().UTC()
	if created, err := obj.Created.Int64(); err == nil && created > 0 {
		paidAt = time.Unix(created, 0).UTC()
	}
	return Event{
		Rail:          RailStripe,
		Ref1:          obj.Metadata.Ref1,
		Amount:        amount,
		PaidAt:        paidAt,
		SlipReference: obj.ID,
		Raw:           body,
	}, nil
}
