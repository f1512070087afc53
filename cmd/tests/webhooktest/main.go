// webhooktest posts a synthetic rail callback to a running hub, for
// checking webhook wiring end to end without a bank sandbox.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

func main() {
	base := flag.String("base", "http://localhost:8080", "hub base URL")
	rail := flag.String("rail", "kbank", "rail shape to send: scb, kbank, omise, stripe")
	ref1 := flag.String("ref1", "", "merchant token to attribute the payment to")
	amount := flag.Float64("amount", 0, "amount in baht")
	slip := flag.String("slip", "", "slip reference; defaults to a timestamped value")
	flag.Parse()

	if *ref1 == "" || *amount <= 0 {
		log.Fatal("both -ref1 and a positive -amount are required")
	}
	slipRef := *slip
	if slipRef == "" {
		slipRef = fmt.Sprintf("TEST-%d", time.Now().Unix())
	}

	path, payload := buildPayload(*rail, *ref1, *amount, slipRef)
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal payload: %v", err)
	}

	resp, err := http.Post(*base+path, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("post webhook: %v", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("%s %s -> %d\n%s\n", path, slipRef, resp.StatusCode, respBody)
}

func buildPayload(rail, ref1 string, amount float64, slip string) (string, map[string]any) {
	now := time.Now().UTC().Format(time.RFC3339)
	switch rail {
	case "scb":
		return "/api/payment-callback/webhook", map[string]any{
			"ref1":           ref1,
			"amount":         amount,
			"paid_at":        now,
			"slip_reference": slip,
		}
	case "kbank":
		return "/api/payment-callback/webhook/kbank", map[string]any{
			"reference1":      ref1,
			"totalAmount":     amount,
			"transactionId":   slip,
			"transactionDate": now,
		}
	case "omise":
		return "/api/payment-callback/webhook/omise", map[string]any{
			"key": "charge.complete",
			"data": map[string]any{
				"id":       slip,
				"status":   "successful",
				"amount":   int64(amount * 100),
				"metadata": map[string]any{"ref1": ref1},
			},
		}
	case "stripe":
		return "/api/payment-callback/webhook/stripe", map[string]any{
			"type": "payment_intent.succeeded",
			"data": map[string]any{
				"object": map[string]any{
					"id":       slip,
					"amount":   int64(amount * 100),
					"metadata": map[string]any{"ref1": ref1},
				},
			},
		}
	default:
		log.Fatalf("unknown rail %q", rail)
		return "", nil
	}
}
