package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Donation is one gift, pending or confirmed. The KID links it to the donor's
// distribution; (payment method, external ref) identifies the provider-side
// transaction and is the idempotency key for report redelivery.
type Donation struct {
	ID                 snowflake.ID     `gorm:"primaryKey" json:"id"`
	DonorID            snowflake.ID     `gorm:"not null;index" json:"donor_id"`
	KID                string           `gorm:"column:kid;type:text;not null;index" json:"kid"`
	PaymentMethodID    int              `gorm:"not null" json:"payment_method_id"`
	SumNotified        *decimal.Decimal `gorm:"type:numeric(15,2)" json:"sum_notified,omitempty"`
	SumConfirmed       *decimal.Decimal `gorm:"type:numeric(15,2)" json:"sum_confirmed,omitempty"`
	PaymentExternalRef *string          `gorm:"type:text" json:"payment_external_ref,omitempty"`
	TimestampNotified  *time.Time       `json:"timestamp_notified,omitempty"`
	TimestampConfirmed *time.Time       `json:"timestamp_confirmed,omitempty"`
}

// TableName sets the database table name.
func (Donation) TableName() string { return "donations" }

// Confirmed reports whether the provider has settled the donation.
func (d Donation) Confirmed() bool { return d.TimestampConfirmed != nil }

// PaymentMethod is the reference table of accepted payment channels. IDs are
// stable external contract values carried in provider reports.
type PaymentMethod struct {
	ID     int    `gorm:"primaryKey" json:"id"`
	Name   string `gorm:"type:text;not null" json:"name"`
	Abbrev string `gorm:"type:text;not null" json:"abbrev"`
}

// TableName sets the database table name.
func (PaymentMethod) TableName() string { return "payment_methods" }

// Aggregate is the confirmed donation total over a time window.
type Aggregate struct {
	Sum   decimal.Decimal `json:"sum"`
	Count int64           `json:"count"`
}

// HistogramBucket counts confirmed donations whose sum falls into
// [Bucket, Bucket+width).
type HistogramBucket struct {
	Bucket decimal.Decimal `json:"bucket"`
	Count  int64           `json:"count"`
}

// ListFilter narrows the admin donation listing.
type ListFilter struct {
	KID   string
	Donor string
}

// ListResponse carries a page of donations.
type ListResponse struct {
	Rows  []Donation `json:"rows"`
	Pages int64      `json:"pages"`
}
