package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Donor is a registered giver. Email is optional but unique when present;
// donors created from inbound provider reports may have none.
type Donor struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Email          *string      `gorm:"type:text" json:"email,omitempty"`
	FullName       string       `gorm:"type:text;not null" json:"full_name"`
	DateRegistered time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"date_registered"`
	Newsletter     bool         `gorm:"not null;default:false" json:"newsletter"`
	TaxID          *string      `gorm:"type:text" json:"-"`
}

// TableName sets the database table name.
func (Donor) TableName() string { return "donors" }

// RegisterDonorRequest carries the donor fields accepted at registration.
type RegisterDonorRequest struct {
	Email      string `json:"email"`
	FullName   string `json:"name"`
	Newsletter bool   `json:"newsletter"`
	TaxID      string `json:"tax_id"`
}
