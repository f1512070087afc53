package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/storage"
)

const ProviderKBank = "kbank"

const (
	kbankDefaultBaseURL = "https://openapi-sandbox.kasikornbank.com"
	kbankTokenPath      = "/v2/oauth/token"
	kbankQRPath         = "/v1/qrpayment/request"
)

// KBankClient creates Thai QR payment requests against the K Bank open
// API. Tokens are cached per credentials tuple; concurrent cache misses
// for the same tuple share one token request via singleflight.
type KBankClient struct {
	// BaseURL may be overridden for sandbox or test endpoints.
	BaseURL string

	httpClient *http.Client
	log        zerolog.Logger

	mu     sync.Mutex
	tokens map[string]cachedToken
	group  singleflight.Group
}

func NewKBankClient(httpClient *http.Client, log zerolog.Logger) *KBankClient {
	return &KBankClient{
		BaseURL:    kbankDefaultBaseURL,
		httpClient: httpClient,
		log:        log.With().Str("rail", ProviderKBank).Logger(),
		tokens:     make(map[string]cachedToken),
	}
}

func (c *KBankClient) Provider() string { return ProviderKBank }

func (c *KBankClient) CreateQRCharge(ctx context.Context, profile *storage.BankingProfile, req ChargeRequest) (*Charge, error) {
	if profile.KBankCustomerID == "" || profile.KBankConsumerSecret == "" {
		return nil, errors.E(errors.ErrCodeConfigError, "banking profile %d has no K Bank credentials", profile.ID)
	}

	token, err := c.accessToken(ctx, profile)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"qrType":        "3",
		"txnAmount":     bahtDecimal(req.Amount.Satang()),
		"txnCurrency":   "THB",
		"reference1":    req.Ref1,
		"reference2":    req.Ref2,
		"reference3":    req.Ref3,
		"partnerTxnUid": req.Ref1,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternalError, err, "marshal kbank qr request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+kbankQRPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternalError, err, "build kbank qr request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	c.log.Info().Str("path", kbankQRPath).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Str("amount", req.Amount.BahtString()).
		Msg("kbank qr request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ProviderKBank, err)
	}
	respBody := drainBody(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Error().Int("status", resp.StatusCode).Str("path", kbankQRPath).
			Str("ref1", logger.TruncateRef(req.Ref1)).Msg("kbank qr request failed")
		return nil, gatewayError(ProviderKBank, resp.StatusCode, respBody)
	}

	var parsed struct {
		QRCode        string `json:"qrCode"`
		TransactionID string `json:"partnerTxnUid"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayError, err, "decode kbank qr response")
	}
	if parsed.QRCode == "" {
		return nil, errors.E(errors.ErrCodeGatewayError, "kbank qr response missing qrCode")
	}

	c.log.Info().Int("status", resp.StatusCode).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Msg("kbank qr created")

	return &Charge{
		Provider:  ProviderKBank,
		ChargeID:  parsed.TransactionID,
		QRRawData: parsed.QRCode,
		Status:    "pending",
	}, nil
}

func (c *KBankClient) accessToken(ctx context.Context, profile *storage.BankingProfile) (string, error) {
	key := profile.KBankCustomerID + ":" + profile.KBankConsumerSecret

	c.mu.Lock()
	if tok, ok := c.tokens[key]; ok && time.Now().Before(tok.expiresAt) {
		c.mu.Unlock()
		return tok.value, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another waiter may have filled the cache first.
		c.mu.Lock()
		if tok, ok := c.tokens[key]; ok && time.Now().Before(tok.expiresAt) {
			c.mu.Unlock()
			return tok.value, nil
		}
		c.mu.Unlock()
		return c.fetchToken(ctx, key, profile)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *KBankClient) fetchToken(ctx context.Context, key string, profile *storage.BankingProfile) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+kbankTokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternalError, err, "build kbank token request")
	}
	basic := base64.StdEncoding.EncodeToString([]byte(profile.KBankCustomerID + ":" + profile.KBankConsumerSecret))
	httpReq.Header.Set("Authorization", "Basic "+basic)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Info().Str("path", kbankTokenPath).Msg("kbank token request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(ProviderKBank, err)
	}
	respBody := drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("path", kbankTokenPath).Msg("kbank token request failed")
		return "", gatewayError(ProviderKBank, resp.StatusCode, respBody)
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return "", errors.Wrap(errors.ErrCodeGatewayError, err, "decode kbank token response")
	}
	if parsed.AccessToken == "" {
		return "", errors.E(errors.ErrCodeGatewayError, "kbank token response missing access_token")
	}

	ttl := time.Duration(parsed.ExpiresIn) * time.Second
	if ttl <= tokenExpirySlack {
		ttl = 5 * time.Minute
	}
	c.mu.Lock()
	c.tokens[key] = cachedToken{
		value:     parsed.AccessToken,
		expiresAt: time.Now().Add(ttl - tokenExpirySlack),
	}
	c.mu.Unlock()
	return parsed.AccessToken, nil
}
