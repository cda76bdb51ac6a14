package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Organization is a recipient charity. Reference data: distributions point at
// organizations, never the other way around.
type Organization struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	FullName           string          `gorm:"type:text;not null" json:"full_name"`
	Abbrev             string          `gorm:"type:text;not null" json:"abbrev"`
	IsActive           bool            `gorm:"not null;default:true" json:"is_active"`
	Ordering           int             `gorm:"not null;default:0" json:"ordering"`
	StdPercentageShare decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"std_percentage_share"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }
