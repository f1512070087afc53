package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/storage"
)

const ProviderSCB = "scb"

const (
	scbDefaultBaseURL = "https://api-sandbox.partners.scb"
	scbTokenPath      = "/partners/sandbox/v1/oauth/token"
	scbDeeplinkPath   = "/partners/sandbox/v3/deeplink/transactions"

	// Tokens are refreshed a minute before SCB says they expire.
	tokenExpirySlack = 60 * time.Second
)

// SCBClient creates SCB Easy deep-link transactions. The OAuth token is
// cached per API key until shortly before expiry.
type SCBClient struct {
	// BaseURL may be overridden for sandbox or test endpoints.
	BaseURL string

	httpClient *http.Client
	log        zerolog.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken
}

type cachedToken struct {
	value     string
	expiresAt time.Time
}

func NewSCBClient(httpClient *http.Client, log zerolog.Logger) *SCBClient {
	return &SCBClient{
		BaseURL:    scbDefaultBaseURL,
		httpClient: httpClient,
		log:        log.With().Str("rail", ProviderSCB).Logger(),
		tokens:     make(map[string]cachedToken),
	}
}

func (c *SCBClient) Provider() string { return ProviderSCB }

// CreateQRCharge runs the two-step SCB flow: fetch (or reuse) an OAuth
// token, then create a PURCHASE deep-link transaction.
func (c *SCBClient) CreateQRCharge(ctx context.Context, profile *storage.BankingProfile, req ChargeRequest) (*Charge, error) {
	if profile.SCBAPIKey == "" || profile.SCBAPISecret == "" {
		return nil, errors.E(errors.ErrCodeConfigError, "banking profile %d has no SCB credentials", profile.ID)
	}
	token, err := c.accessToken(ctx, profile)
	if err != nil {
		return nil, err
	}
	return c.createDeeplink(ctx, profile, token, req)
}

func (c *SCBClient) accessToken(ctx context.Context, profile *storage.BankingProfile) (string, error) {
	c.mu.Lock()
	if tok, ok := c.tokens[profile.SCBAPIKey]; ok && time.Now().Before(tok.expiresAt) {
		c.mu.Unlock()
		return tok.value, nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(map[string]string{
		"applicationKey":    profile.SCBAPIKey,
		"applicationSecret": profile.SCBAPISecret,
	})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternalError, err, "marshal scb token request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+scbTokenPath, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternalError, err, "build scb token request")
	}
	requestUID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("resourceOwnerId", profile.SCBAPIKey)
	httpReq.Header.Set("requestUId", requestUID)
	httpReq.Header.Set("accept-language", "EN")

	c.log.Info().Str("path", scbTokenPath).Str("request_uid", requestUID).Msg("scb token request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(ProviderSCB, err)
	}
	respBody := drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("path", scbTokenPath).Msg("scb token request failed")
		return "", gatewayError(ProviderSCB, resp.StatusCode, respBody)
	}

	var parsed struct {
		Data struct {
			AccessToken string `json:"accessToken"`
			ExpiresIn   int64  `json:"expiresIn"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return "", errors.Wrap(errors.ErrCodeGatewayError, err, "decode scb token response")
	}
	if parsed.Data.AccessToken == "" {
		return "", errors.E(errors.ErrCodeGatewayError, "scb token response missing accessToken")
	}

	ttl := time.Duration(parsed.Data.ExpiresIn) * time.Second
	if ttl <= tokenExpirySlack {
		ttl = 5 * time.Minute
	}
	c.mu.Lock()
	c.tokens[profile.SCBAPIKey] = cachedToken{
		value:     parsed.Data.AccessToken,
		expiresAt: time.Now().Add(ttl - tokenExpirySlack),
	}
	c.mu.Unlock()
	return parsed.Data.AccessToken, nil
}

func (c *SCBClient) createDeeplink(ctx context.Context, profile *storage.BankingProfile, token string, req ChargeRequest) (*Charge, error) {
	payload := map[string]interface{}{
		"transactionType":       "PURCHASE",
		"transactionSubType":    []string{"BP"},
		"sessionValidityPeriod": 900,
		"billPayment": map[string]interface{}{
			"paymentAmount": bahtDecimal(req.Amount.Satang()),
			"accountTo":     profile.SCBBillerID,
			"accountFrom":   "",
			"ref1":          req.Ref1,
			"ref2":          req.Ref2,
			"ref3":          req.Ref3,
		},
		"merchantMetaData": map[string]interface{}{
			"callbackUrl": profile.SCBCallbackURL,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternalError, err, "marshal scb deeplink request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+scbDeeplinkPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternalError, err, "build scb deeplink request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("resourceOwnerId", profile.SCBAPIKey)
	httpReq.Header.Set("requestUId", uuid.NewString())
	httpReq.Header.Set("accept-language", "EN")
	httpReq.Header.Set("channel", "scbeasy")

	c.log.Info().Str("path", scbDeeplinkPath).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Str("amount", req.Amount.BahtString()).
		Msg("scb deeplink request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ProviderSCB, err)
	}
	respBody := drainBody(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Error().Int("status", resp.StatusCode).Str("path", scbDeeplinkPath).
			Str("ref1", logger.TruncateRef(req.Ref1)).Msg("scb deeplink request failed")
		return nil, gatewayError(ProviderSCB, resp.StatusCode, respBody)
	}

	var parsed struct {
		Data struct {
			TransactionID string `json:"transactionId"`
			Deeplink      string `json:"deeplinkUrl"`
		} `json:"data"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayError, err, "decode scb deeplink response")
	}
	if parsed.Data.TransactionID == "" {
		return nil, errors.E(errors.ErrCodeGatewayError, "scb deeplink response missing transactionId")
	}

	c.log.Info().Int("status", resp.StatusCode).
		Str("charge_id", parsed.Data.TransactionID).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Msg("scb deeplink created")

	return &Charge{
		Provider: ProviderSCB,
		ChargeID: parsed.Data.TransactionID,
		DeepLink: parsed.Data.Deeplink,
		Status:   "pending",
	}, nil
}

// bahtDecimal renders satang as a two-decimal baht string the SCB and
// K Bank APIs expect, e.g. 12550 -> "125.50".
func bahtDecimal(satang int64) string {
	neg := ""
	if satang < 0 {
		neg = "-"
		satang = -satang
	}
	return fmt.Sprintf("%s%d.%02d", neg, satang/100, satang%100)
}
