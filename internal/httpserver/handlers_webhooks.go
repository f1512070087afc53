package httpserver

import (
	stderrors "errors"
	"net/http"
	"strings"

	stripewebhook "github.com/stripe/stripe-go/v72/webhook"

	apierrors "github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/webhook"
)

// webhookGeneric receives the SCB-style confirmation payload. This is also
// the endpoint legacy bank integrations post to, so its shape never changes.
func (h handlers) webhookGeneric(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := webhook.ParseGeneric(body)
	h.finishRailEvent(w, r, webhook.RailSCB, ev, err)
}

func (h handlers) webhookKBank(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := webhook.ParseKBank(body)
	h.finishRailEvent(w, r, webhook.RailKBank, ev, err)
}

func (h handlers) webhookOmise(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	ev, err := webhook.ParseOmise(body)
	h.finishRailEvent(w, r, webhook.RailOmise, ev, err)
}

// webhookStripe verifies the Stripe-Signature header before parsing when a
// signing secret is configured. Without one the endpoint trusts the network
// boundary, which is only acceptable behind the mall's reverse proxy.
func (h handlers) webhookStripe(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if secret := h.cfg.Rails.Stripe.WebhookSecret; secret != "" {
		if _, err := stripewebhook.ConstructEvent(body, r.Header.Get("Stripe-Signature"), secret); err != nil {
			h.log.Warn().Err(err).Msg("stripe webhook signature rejected")
			if h.metrics != nil {
				h.metrics.ObserveInboundWebhook(webhook.RailStripe, "rejected", 0)
			}
			writeError(w, apierrors.E(apierrors.ErrCodeUnauthorized, "invalid stripe signature"))
			return
		}
	}
	ev, err := webhook.ParseStripe(body)
	h.finishRailEvent(w, r, webhook.RailStripe, ev, err)
}

// finishRailEvent is the shared tail of every rail receiver: acknowledge
// ignorable events, reject malformed ones, and persist the rest. Banks
// retry on anything but a 2xx, so the split between 200 and 4xx here is
// what keeps the retry queues quiet.
func (h handlers) finishRailEvent(w http.ResponseWriter, r *http.Request, rail string, ev webhook.Event, parseErr error) {
	if parseErr != nil {
		if stderrors.Is(parseErr, webhook.ErrIgnored) {
			if h.metrics != nil {
				h.metrics.ObserveInboundWebhook(rail, "ignored", 0)
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "ignored"})
			return
		}
		if h.metrics != nil {
			h.metrics.ObserveInboundWebhook(rail, "rejected", 0)
		}
		writeError(w, parseErr)
		return
	}

	bt, created, err := h.webhooks.Process(r.Context(), ev)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveInboundWebhook(rail, "error", 0)
		}
		writeError(w, err)
		return
	}

	outcome := "matched"
	if bt.MerchantID == nil {
		outcome = "orphan"
	}
	if !created {
		outcome = "duplicate"
	}
	if h.metrics != nil {
		h.metrics.ObserveInboundWebhook(rail, outcome, int64(bt.Amount))
	}

	resp := map[string]any{
		"status":         "recorded",
		"transaction_id": bt.ID,
		"outcome":        outcome,
	}
	if !created {
		resp["status"] = "duplicate"
	}
	writeJSON(w, http.StatusOK, resp)
}

// webhookLinks lists the registered callback URLs, for pasting into each
// rail's merchant portal.
func (h handlers) webhookLinks(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(h.cfg.Server.PublicBaseURL, "/")
	if base == "" {
		writeError(w, apierrors.E(apierrors.ErrCodeInvalidField, "public_base_url is not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scb":    base + "/api/payment-callback/webhook",
		"kbank":  base + "/api/payment-callback/webhook/kbank",
		"omise":  base + "/api/payment-callback/webhook/omise",
		"stripe": base + "/api/payment-callback/webhook/stripe",
	})
}
