package gateway

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	stripe "github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

const (
	ProviderStripe = "stripe"
	// ProviderApplePay rides the same Stripe account; Apple Pay tenders
	// arrive as card payment methods on the intent.
	ProviderApplePay = "apple_pay"
)

// StripeClient creates payment intents: PromptPay for stripe profiles,
// card (Apple Pay) for apple_pay profiles. Each banking profile carries
// its own secret key, so API handles are cached per key.
type StripeClient struct {
	log zerolog.Logger

	mu   sync.Mutex
	apis map[string]*client.API
}

func NewStripeClient(log zerolog.Logger) *StripeClient {
	return &StripeClient{
		log:  log.With().Str("rail", ProviderStripe).Logger(),
		apis: make(map[string]*client.API),
	}
}

func (c *StripeClient) Provider() string { return ProviderStripe }

func (c *StripeClient) api(secretKey string) *client.API {
	c.mu.Lock()
	defer c.mu.Unlock()
	if api, ok := c.apis[secretKey]; ok {
		return api
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	c.apis[secretKey] = api
	return api
}

func (c *StripeClient) CreateQRCharge(ctx context.Context, profile *storage.BankingProfile, req ChargeRequest) (*Charge, error) {
	if profile.StripeSecretKey == "" {
		return nil, errors.E(errors.ErrCodeConfigError, "banking profile %d has no Stripe secret key", profile.ID)
	}

	satang, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidAmount, err, "charge amount out of range")
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(satang),
		Currency:           stripe.String("thb"),
		PaymentMethodTypes: stripe.StringSlice(stripeMethodTypes(profile.ProviderType)),
	}
	params.Context = ctx
	params.AddMetadata("ref1", req.Ref1)
	if req.Ref2 != "" {
		params.AddMetadata("ref2", req.Ref2)
	}

	c.log.Info().Str("ref1", logger.TruncateRef(req.Ref1)).
		Int64("amount_satang", satang).
		Msg("stripe payment intent request")

	pi, err := c.api(profile.StripeSecretKey).PaymentIntents.New(params)
	if err != nil {
		return nil, stripeError(err)
	}

	c.log.Info().Str("charge_id", pi.ID).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Str("intent_status", string(pi.Status)).
		Msg("stripe payment intent created")

	provider := ProviderStripe
	if profile.ProviderType == ProviderApplePay {
		provider = ProviderApplePay
	}
	return &Charge{
		Provider:     provider,
		ChargeID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// stripeMethodTypes picks the intent's payment method for the profile's
// provider type.
func stripeMethodTypes(providerType string) []string {
	if providerType == ProviderApplePay {
		return []string{"card"}
	}
	return []string{"promptpay"}
}

func stripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		code := errors.ErrCodeGatewayError
		if stripeErr.HTTPStatusCode >= 500 {
			code = errors.ErrCodeGatewayUnavailable
		}
		return errors.Wrap(code, err, "stripe returned %d", stripeErr.HTTPStatusCode).
			WithDetail("provider", ProviderStripe).
			WithDetail("stripe_code", string(stripeErr.Code))
	}
	return transportError(ProviderStripe, err)
}
