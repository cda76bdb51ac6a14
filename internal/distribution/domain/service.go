package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service is the distribution registry: it owns the mapping between a donor's
// split and its stable reference code (KID).
type Service interface {
	KIDExists(ctx context.Context, kid string) (bool, error)
	// GetKIDBySplit returns the donor's existing KID whose stored split
	// equals the given split as a set. ErrNotFound when the donor has no
	// such distribution.
	GetKIDBySplit(ctx context.Context, split Split, donorID snowflake.ID) (string, error)
	// Create validates the split, generates a fresh KID and persists the
	// distribution rows together with the donor/KID linkage atomically.
	Create(ctx context.Context, split Split, donorID snowflake.ID) (string, error)
	// EnsureKID is the find-or-create composition used by registration.
	EnsureKID(ctx context.Context, split Split, donorID snowflake.ID) (string, error)
	GetSplitByKID(ctx context.Context, kid string) ([]SplitEntry, error)
	List(ctx context.Context, filter ListFilter, page, limit int) (ListResponse, error)
}

// Repository persists distribution rows. Write methods operate on the handle
// they are given so Create can span both tables in one transaction.
type Repository interface {
	KIDExists(ctx context.Context, db *gorm.DB, kid string) (bool, error)
	MatchKIDsBySplit(ctx context.Context, db *gorm.DB, split Split, donorID snowflake.ID) ([]string, error)
	InsertDistributions(ctx context.Context, tx *gorm.DB, rows []Distribution) error
	InsertCombining(ctx context.Context, tx *gorm.DB, rows []Combining) error
	GetSplitByKID(ctx context.Context, db *gorm.DB, kid string) ([]SplitEntry, error)
	DefaultOwnerID(ctx context.Context, db *gorm.DB) (snowflake.ID, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page, limit int) (ListResponse, error)
}

var (
	ErrNotFound              = errors.New("distribution_not_found")
	ErrEmptySplit            = errors.New("empty_split")
	ErrInvalidOrganization   = errors.New("invalid_split_organization")
	ErrDuplicateOrganization = errors.New("duplicate_split_organization")
	ErrInvalidShare          = errors.New("invalid_percentage_share")
	ErrSharesNotHundred      = errors.New("shares_must_total_100")
	ErrNoDefaultOwner        = errors.New("no_default_data_owner")
)
