// Package gateway holds the rail clients that turn a checkout into a
// scannable charge: SCB deep-link, K Bank QR, Omise PromptPay, and Stripe
// payment intents. Every client speaks satang, carries the merchant token
// as ref1, and runs behind a per-rail circuit breaker.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/circuitbreaker"
	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/httputil"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

// RequestTimeout is the hard ceiling for one rail round-trip. Retries are
// a caller policy, never the client's.
const RequestTimeout = 15 * time.Second

// ChargeRequest is the rail-independent charge description.
type ChargeRequest struct {
	Amount     money.Amount
	Ref1       string
	Ref2       string
	Ref3       string
	MerchantID int64
}

// Charge is what a rail hands back for the POS to display.
type Charge struct {
	Provider     string `json:"provider"`
	ChargeID     string `json:"charge_id"`
	QRImage      string `json:"qr_image,omitempty"`
	QRRawData    string `json:"qr_raw_data,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	DeepLink     string `json:"deep_link,omitempty"`
	Status       string `json:"status"`
}

// Client creates a QR charge on one rail using the credentials in the
// resolved banking profile.
type Client interface {
	Provider() string
	CreateQRCharge(ctx context.Context, profile *storage.BankingProfile, req ChargeRequest) (*Charge, error)
}

// Router picks the rail named by the profile's provider type and runs the
// call through that rail's breaker.
type Router struct {
	clients  map[string]Client
	breakers *circuitbreaker.Manager
	log      zerolog.Logger
}

// NewRouter wires the default clients over a shared 15-second HTTP client.
func NewRouter(breakers *circuitbreaker.Manager, log zerolog.Logger) *Router {
	httpClient := httputil.NewClient(RequestTimeout)
	r := &Router{
		clients:  make(map[string]Client),
		breakers: breakers,
		log:      log.With().Str("component", "gateway").Logger(),
	}
	for _, c := range []Client{
		NewSCBClient(httpClient, r.log),
		NewKBankClient(httpClient, r.log),
		NewOmiseClient(httpClient, r.log),
		NewStripeClient(r.log),
	} {
		r.clients[c.Provider()] = c
	}
	// Apple Pay profiles charge through the Stripe account.
	r.clients[ProviderApplePay] = r.clients[ProviderStripe]
	return r
}

// Register replaces or adds a client, mainly for tests.
func (r *Router) Register(c Client) {
	r.clients[c.Provider()] = c
}

// CreateQRCharge validates the request, selects the rail, and executes
// under the breaker.
func (r *Router) CreateQRCharge(ctx context.Context, profile *storage.BankingProfile, req ChargeRequest) (*Charge, error) {
	if _, err := money.ToMinorUnits(req.Amount); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidAmount, err, "charge amount out of range")
	}
	if req.Ref1 == "" {
		return nil, errors.E(errors.ErrCodeMissingField, "missing ref1")
	}
	client, ok := r.clients[profile.ProviderType]
	if !ok {
		return nil, errors.E(errors.ErrCodeInvalidField, "unknown gateway provider %q", profile.ProviderType)
	}

	result, err := r.breakers.Execute(breakerFor(profile.ProviderType), func() (interface{}, error) {
		return client.CreateQRCharge(ctx, profile, req)
	})
	if circuitbreaker.IsOpen(err) {
		return nil, errors.Wrap(errors.ErrCodeGatewayUnavailable, err, "%s circuit open", profile.ProviderType)
	}
	if err != nil {
		return nil, err
	}
	return result.(*Charge), nil
}

func breakerFor(provider string) circuitbreaker.ServiceType {
	switch provider {
	case ProviderSCB:
		return circuitbreaker.ServiceSCB
	case ProviderKBank:
		return circuitbreaker.ServiceKBank
	case ProviderOmise:
		return circuitbreaker.ServiceOmise
	case ProviderStripe, ProviderApplePay:
		return circuitbreaker.ServiceStripe
	default:
		return circuitbreaker.ServiceType(provider)
	}
}

// gatewayError maps an HTTP failure to the shared taxonomy.
func gatewayError(provider string, status int, body string) error {
	code := errors.ErrCodeGatewayError
	if status >= 500 {
		code = errors.ErrCodeGatewayUnavailable
	}
	return errors.E(code, "%s returned %d", provider, status).
		WithDetail("provider", provider).
		WithDetail("status", status).
		WithDetail("body", truncateBody(body))
}

func transportError(provider string, err error) error {
	if errors.As(err, new(*errors.Error)) {
		return err
	}
	if isTimeout(err) {
		return errors.Wrap(errors.ErrCodeGatewayTimeout, err, "%s request timed out", provider)
	}
	return errors.Wrap(errors.ErrCodeNetworkError, err, "%s request failed", provider)
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	return errors.As(err, &t) && t.Timeout()
}

func truncateBody(body string) string {
	const max = 512
	if len(body) > max {
		return body[:max]
	}
	return body
}

// drainBody reads at most 64 KiB of a response body.
func drainBody(resp *http.Response) string {
	defer resp.Body.Close()
	buf := make([]byte, 64*1024)
	n, _ := resp.Body.Read(buf)
	for n < len(buf) {
		m, err := resp.Body.Read(buf[n:])
		n += m
		if err != nil {
			break
		}
	}
	return string(buf[:n])
}
