package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// SplitLine allocates a percentage share to one organization.
type SplitLine struct {
	OrganizationID snowflake.ID    `json:"organization_id"`
	Share          decimal.Decimal `json:"share"`
}

// Split is a set of split lines. Order carries no meaning; two splits are the
// same distribution when they contain the same (organization, share) pairs.
type Split []SplitLine

var hundred = decimal.NewFromInt(100)

// Validate enforces the split invariants: at least one line, no repeated
// organization, every share positive, and shares totalling exactly 100.00.
func (s Split) Validate() error {
	if len(s) == 0 {
		return ErrEmptySplit
	}
	seen := make(map[snowflake.ID]struct{}, len(s))
	total := decimal.Zero
	for _, line := range s {
		if line.OrganizationID == 0 {
			return ErrInvalidOrganization
		}
		if _, dup := seen[line.OrganizationID]; dup {
			return ErrDuplicateOrganization
		}
		seen[line.OrganizationID] = struct{}{}
		if !line.Share.IsPositive() {
			return ErrInvalidShare
		}
		total = total.Add(line.Share)
	}
	if !total.Equal(hundred) {
		return ErrSharesNotHundred
	}
	return nil
}

// Distribution is one persisted (organization, share) row. Rows are grouped
// into a split by the combining rows that reference them under one KID.
type Distribution struct {
	ID              snowflake.ID    `gorm:"primaryKey"`
	OrgID           snowflake.ID    `gorm:"not null;index"`
	PercentageShare decimal.Decimal `gorm:"type:numeric(5,2);not null"`
}

// TableName sets the database table name.
func (Distribution) TableName() string { return "distributions" }

// Combining links one donor, one distribution row and one KID. All rows under
// a KID share the same donor; together they form the donor's split.
type Combining struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	DonorID        snowflake.ID `gorm:"not null;index"`
	DistributionID snowflake.ID `gorm:"not null;uniqueIndex"`
	KID            string       `gorm:"column:kid;type:text;not null;index"`
	MetaOwnerID    snowflake.ID `gorm:"not null"`
}

// TableName sets the database table name.
func (Combining) TableName() string { return "combining" }

// DataOwner marks which foundation the row data belongs to.
type DataOwner struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	IsDefault bool         `gorm:"not null;default:false"`
}

// TableName sets the database table name.
func (DataOwner) TableName() string { return "data_owners" }

// SplitEntry is one resolved line of a split, enriched with organization
// naming for receipts and reconciliation display.
type SplitEntry struct {
	OrganizationID snowflake.ID    `json:"organization_id"`
	FullName       string          `json:"full_name"`
	Abbrev         string          `json:"abbrev"`
	Share          decimal.Decimal `json:"share"`
}

// ListFilter narrows the admin distribution listing.
type ListFilter struct {
	KID   string
	Donor string
}

// ListRow is one row of the admin distribution listing: a KID with its donor
// and lifetime confirmed donation aggregate.
type ListRow struct {
	KID       string          `json:"kid"`
	DonorName string          `json:"full_name"`
	Email     *string         `json:"email"`
	Sum       decimal.Decimal `json:"sum"`
	Count     int64           `json:"count"`
}

// ListResponse carries a page of distribution rows.
type ListResponse struct {
	Rows  []ListRow `json:"rows"`
	Pages int64     `json:"pages"`
}
