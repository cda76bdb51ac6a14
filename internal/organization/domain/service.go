package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service exposes read access to recipient organizations.
type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	GetByIDs(ctx context.Context, ids []snowflake.ID) ([]Organization, error)
	// GetActive returns organizations currently accepting donations, in
	// display order.
	GetActive(ctx context.Context) ([]Organization, error)
	// GetStandardSplit returns the platform-wide default allocation: every
	// active organization with a standard share above zero.
	GetStandardSplit(ctx context.Context) ([]Organization, error)
}

var (
	ErrNotFound       = errors.New("organization_not_found")
	ErrInvalidOrgList = errors.New("invalid_organization_list")
)
