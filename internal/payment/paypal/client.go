package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xim/effekt-backend/internal/cache"
	"github.com/xim/effekt-backend/internal/clock"
	"github.com/xim/effekt-backend/internal/config"
	"github.com/xim/effekt-backend/internal/observability/tracing"
	"github.com/xim/effekt-backend/internal/payment/domain"
	"go.uber.org/zap"
)

const tokenCacheKey = "paypal"

type Client struct {
	http   *http.Client
	log    *zap.Logger
	clock  clock.Clock
	tokens *cache.Expiring[string, domain.Token]

	baseURL      string
	clientID     string
	clientSecret string
}

func NewClient(cfg config.Config, log *zap.Logger, clk clock.Clock) *Client {
	return &Client{
		http:   tracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
		log:    log.Named("payment.paypal"),
		clock:  clk,
		tokens: cache.NewExpiring[string, domain.Token](cfg.TokenRefreshWindow),

		baseURL:      cfg.PayPalAPIBaseURL,
		clientID:     cfg.PayPalClientID,
		clientSecret: cfg.PayPalClientSecret,
	}
}

type tokenResponse struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) FetchToken(ctx context.Context) (domain.Token, error) {
	if token, ok := c.tokens.Get(tokenCacheKey, c.clock.Now()); ok {
		return token, nil
	}
	if c.clientID == "" || c.clientSecret == "" {
		return domain.Token{}, domain.ErrMissingCredentials
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return domain.Token{}, err
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("paypal token request failed", zap.Error(err))
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn("paypal token request rejected", zap.Int("status", resp.StatusCode))
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.Token{}, domain.ErrDownstreamUnavailable
	}

	token := domain.Token{
		AccessToken: payload.AccessToken,
		TokenType:   payload.TokenType,
		ExpiresAt:   c.clock.Now().Add(time.Duration(payload.ExpiresIn) * time.Second),
	}
	c.tokens.Set(tokenCacheKey, token, token.ExpiresAt)
	return token, nil
}

type orderResponse struct {
	Links []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

// InitiateOrder creates a PayPal order carrying the KID as the merchant
// reference and returns the approval URL.
func (c *Client) InitiateOrder(ctx context.Context, kid string, sum decimal.Decimal) (string, error) {
	token, err := c.FetchToken(ctx)
	if err != nil {
		return "", err
	}

	body := fmt.Sprintf(
		`{"intent":"CAPTURE","purchase_units":[{"reference_id":%q,"amount":{"currency_code":"NOK","value":%q}}]}`,
		kid, sum.StringFixed(2),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/checkout/orders", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("%s %s", token.TokenType, token.AccessToken))

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("paypal order request failed", zap.Error(err))
		return "", domain.ErrDownstreamUnavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Warn("paypal order request rejected", zap.Int("status", resp.StatusCode))
		return "", domain.ErrDownstreamUnavailable
	}

	var payload orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", domain.ErrDownstreamUnavailable
	}
	for _, link := range payload.Links {
		if link.Rel == "approve" {
			return link.Href, nil
		}
	}
	return "", domain.ErrDownstreamUnavailable
}
