package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/FoodCourtHub/server/internal/errors"
	"github.com/FoodCourtHub/server/internal/logger"
	"github.com/FoodCourtHub/server/internal/money"
	"github.com/FoodCourtHub/server/internal/storage"
)

const ProviderOmise = "omise"

const (
	omiseDefaultBaseURL = "https://api.omise.co"
	omiseChargesPath    = "/charges"
)

// OmiseClient creates PromptPay source charges. Omise takes amounts in
// satang directly, so no decimal conversion happens here.
type OmiseClient struct {
	// BaseURL may be overridden for test endpoints.
	BaseURL string

	httpClient *http.Client
	log        zerolog.Logger
}

func NewOmiseClient(httpClient *http.Client, log zerolog.Logger) *OmiseClient {
	return &OmiseClient{
		BaseURL:    omiseDefaultBaseURL,
		httpClient: httpClient,
		log:        log.With().Str("rail", ProviderOmise).Logger(),
	}
}

func (c *OmiseClient) Provider() string { return ProviderOmise }

func (c *OmiseClient) CreateQRCharge(ctx context.Context, profile *storage.BankingProfile, req ChargeRequest) (*Charge, error) {
	if profile.OmiseSecretKey == "" {
		return nil, errors.E(errors.ErrCodeConfigError, "banking profile %d has no Omise secret key", profile.ID)
	}

	satang, err := money.ToMinorUnits(req.Amount)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidAmount, err, "charge amount out of range")
	}

	form := url.Values{}
	form.Set("amount", fmt.Sprintf("%d", satang))
	form.Set("currency", "thb")
	form.Set("source[type]", "promptpay")
	form.Set("metadata[ref1]", req.Ref1)
	if req.Ref2 != "" {
		form.Set("metadata[ref2]", req.Ref2)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+omiseChargesPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternalError, err, "build omise charge request")
	}
	basic := base64.StdEncoding.EncodeToString([]byte(profile.OmiseSecretKey + ":"))
	httpReq.Header.Set("Authorization", "Basic "+basic)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Info().Str("path", omiseChargesPath).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Int64("amount_satang", satang).
		Msg("omise charge request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(ProviderOmise, err)
	}
	respBody := drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		c.log.Error().Int("status", resp.StatusCode).Str("path", omiseChargesPath).
			Str("ref1", logger.TruncateRef(req.Ref1)).Msg("omise charge request failed")
		return nil, gatewayError(ProviderOmise, resp.StatusCode, respBody)
	}

	var parsed struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Source struct {
			ScannableCode struct {
				Image struct {
					DownloadURI string `json:"download_uri"`
				} `json:"image"`
			} `json:"scannable_code"`
		} `json:"source"`
	}
	if err := json.Unmarshal([]byte(respBody), &parsed); err != nil {
		return nil, errors.Wrap(errors.ErrCodeGatewayError, err, "decode omise charge response")
	}
	if parsed.ID == "" {
		return nil, errors.E(errors.ErrCodeGatewayError, "omise charge response missing id")
	}

	c.log.Info().Int("status", resp.StatusCode).
		Str("charge_id", parsed.ID).
		Str("ref1", logger.TruncateRef(req.Ref1)).
		Msg("omise charge created")

	return &Charge{
		Provider: ProviderOmise,
		ChargeID: parsed.ID,
		QRImage:  parsed.Source.ScannableCode.Image.DownloadURI,
		Status:   parsed.Status,
	}, nil
}
