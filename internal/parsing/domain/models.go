package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Rule is an administrator-curated fallback mapping from a provider
// transaction's (sales location, message) to a reference code. A nil Message
// is a wildcard: any message at that location resolves.
type Rule struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	SalesLocation string       `gorm:"type:text;not null" json:"sales_location"`
	Message       *string      `gorm:"type:text" json:"message,omitempty"`
	ResolveKID    string       `gorm:"column:resolve_kid;type:text;not null" json:"resolve_kid"`
	PeriodFrom    time.Time    `gorm:"not null" json:"period_from"`
	PeriodTo      time.Time    `gorm:"not null" json:"period_to"`
}

// TableName sets the database table name.
func (Rule) TableName() string { return "parsing_rules" }

// Matches reports whether the rule resolves a transaction at location with
// the given message.
func (r Rule) Matches(location, message string) bool {
	if r.SalesLocation != location {
		return false
	}
	return r.Message == nil || *r.Message == message
}

// Repository reads parsing rules. The core never writes them.
type Repository interface {
	// GetVippsParsingRules returns the rules whose validity period overlaps
	// the report window, in stored order. Rule sets are small and curated;
	// the first matching rule wins.
	GetVippsParsingRules(ctx context.Context, from, to time.Time) ([]Rule, error)
}
