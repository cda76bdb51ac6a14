package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetIDByEmail(ctx context.Context, email string) (snowflake.ID, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Donor, error)
	// GetByKID resolves the donor owning a reference code.
	GetByKID(ctx context.Context, kid string) (*Donor, error)
	Add(ctx context.Context, req RegisterDonorRequest) (snowflake.ID, error)
	// SetTaxID records a tax id the first time one is supplied. An existing
	// value is never overwritten.
	SetTaxID(ctx context.Context, id snowflake.ID, taxID string) error
	// Ensure returns the donor id for the email, registering a new donor
	// when none exists.
	Ensure(ctx context.Context, req RegisterDonorRequest) (snowflake.ID, error)
	Search(ctx context.Context, query string) ([]Donor, error)
}

var (
	ErrNotFound     = errors.New("donor_not_found")
	ErrInvalidName  = errors.New("invalid_donor_name")
	ErrInvalidEmail = errors.New("invalid_donor_email")
)
