package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Payment method IDs are a stable external contract: provider reports and the
// admin tooling reference them by number.
const (
	MethodBank   = 2
	MethodPayPal = 3
	MethodVipps  = 4
)

// Token is a provider access token with its hard expiry. Tokens are cached
// and refreshed when less than the configured window of validity remains.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Client initiates provider-side payments. The core treats providers as
// black boxes: get a valid token or fail, create an order or fail.
type Client interface {
	FetchToken(ctx context.Context) (Token, error)
	// InitiateOrder creates a provider payment for the given KID and sum
	// and returns the URL to redirect the donor to.
	InitiateOrder(ctx context.Context, kid string, sum decimal.Decimal) (string, error)
}

var (
	ErrMissingCredentials    = errors.New("missing_provider_credentials")
	ErrDownstreamUnavailable = errors.New("payment_provider_unavailable")
)
