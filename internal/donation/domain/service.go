package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RecordPendingRequest registers a payment intent or an inbound provider
// transaction against a KID.
type RecordPendingRequest struct {
	KID             string
	PaymentMethodID int
	Sum             decimal.Decimal
	Timestamp       time.Time
	ExternalRef     string
}

// Service is the donation ledger.
type Service interface {
	// RecordPending inserts a pending donation. Redelivered provider rows
	// with a known (method, external ref) pair return the existing ID
	// instead of creating a duplicate.
	RecordPending(ctx context.Context, req RecordPendingRequest) (snowflake.ID, error)
	// Confirm marks settlement. A second confirmation returns
	// ErrAlreadyConfirmed, which callers log and otherwise ignore.
	Confirm(ctx context.Context, id snowflake.ID, timestamp time.Time) error
	GetByID(ctx context.Context, id snowflake.ID) (*Donation, error)
	GetAggregateByTime(ctx context.Context, from, to time.Time) (Aggregate, error)
	GetHistogramBySum(ctx context.Context, bucketWidth decimal.Decimal) ([]HistogramBucket, error)
	List(ctx context.Context, filter ListFilter, page, limit int) (ListResponse, error)
}

var (
	ErrNotFound         = errors.New("donation_not_found")
	ErrKIDNotFound      = errors.New("donation_kid_not_found")
	ErrInvalidSum       = errors.New("invalid_donation_sum")
	ErrInvalidMethod    = errors.New("invalid_payment_method")
	ErrAlreadyConfirmed = errors.New("donation_already_confirmed")
)
