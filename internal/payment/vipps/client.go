package vipps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xim/effekt-backend/internal/cache"
	"github.com/xim/effekt-backend/internal/clock"
	"github.com/xim/effekt-backend/internal/config"
	"github.com/xim/effekt-backend/internal/observability/tracing"
	"github.com/xim/effekt-backend/internal/payment/domain"
	"go.uber.org/zap"
)

const tokenCacheKey = "vipps"

type Client struct {
	http   *http.Client
	log    *zap.Logger
	clock  clock.Clock
	tokens *cache.Expiring[string, domain.Token]

	baseURL         string
	clientID        string
	clientSecret    string
	subscriptionKey string
	merchantSerial  string
	callbackPrefix  string
	fallbackURL     string
}

func NewClient(cfg config.Config, log *zap.Logger, clk clock.Clock) *Client {
	return &Client{
		http:   tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		log:    log.Named("payment.vipps"),
		clock:  clk,
		tokens: cache.NewExpiring[string, domain.Token](cfg.TokenRefreshWindow),

		baseURL:         cfg.VippsAPIBaseURL,
		clientID:        cfg.VippsClientID,
		clientSecret:    cfg.VippsClientSecret,
		subscriptionKey: cfg.VippsSubscriptionKey,
		merchantSerial:  cfg.VippsMerchantSerial,
		callbackPrefix:  cfg.VippsCallbackPrefix,
		fallbackURL:     cfg.VippsFallbackURL,
	}
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresOn   string `json:"expires_on"`
}

func (c *Client) FetchToken(ctx context.Context) (domain.Token, error) {
	if token, ok := c.tokens.Get(tokenCacheKey, c.clock.Now()); ok {
		return token, nil
	}
	if c.clientID == "" || c.clientSecret == "" || c.subscriptionKey == "" {
		return domain.Token{}, domain.ErrMissingCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accesstoken/get", nil)
	if err != nil {
		return domain.Token{}, err
	}
	req.Header.Set("client_id", c.clientID)
	req.Header.Set("client_secret", c.clientSecret)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("vipps token request failed", zap.Error(err))
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("vipps token request rejected", zap.Int("status", resp.StatusCode))
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}
	expiresOn, err := strconv.ParseInt(payload.ExpiresOn, 10, 64)
	if err != nil {
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}

	token := domain.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		ExpiresAt:   time.Unix(expiresOn, 0).UTC(),
	}
	c.tokens.Set(tokenCacheKey, token, token.ExpiresAt)
	return token, nil
}

type orderResponse struct {
	URL string `json:"url"`
}

// InitiateOrder creates an ecomm payment and returns the landing page URL the
// donor is redirected to. Amounts are specified in øre.
func (c *Client) InitiateOrder(ctx context.Context, kid string, sum decimal.Decimal) (string, error) {
	token, err := c.FetchToken(ctx)
	if err != nil {
		return "", err
	}

	orderID := fmt.Sprintf("%s-%s", kid, uuid.NewString())
	body := map[string]interface{}{
		"customerInfo": map[string]interface{}{},
		"merchantInfo": map[string]interface{}{
			"authToken":            token.AccessToken,
			"callbackPrefix":       c.callbackPrefix,
			"fallBack":             c.fallbackURL,
			"isApp":                false,
			"merchantSerialNumber": c.merchantSerial,
			"paymentType":          "eComm Regular Payment",
		},
		"transaction": map[string]interface{}{
			"amount":          sum.Mul(decimal.NewFromInt(100)).IntPart(),
			"orderId":         orderID,
			"timeStamp":       c.clock.Now().Format(time.RFC3339),
			"transactionText": "Donasjon til Gieffektivt.no",
			"skipLandingPage": false,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ecomm/v2/payments", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("merchant_serial_number", c.merchantSerial)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Authorization", fmt.Sprintf("%s %s", token.TokenType, token.AccessToken))

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("vipps order request failed", zap.Error(err))
		return "", domain.ErrDownstreamUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("vipps order request rejected", zap.Int("status", resp.StatusCode))
		return "", domain.ErrDownstreamUnavailable
	}

	var payload orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", domain.ErrDownstreamUnavailable
	}
	return payload.URL, nil
}
