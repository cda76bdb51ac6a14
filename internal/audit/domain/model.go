package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReportAudit is an immutable record of one processed provider report.
type ReportAudit struct {
	ID           snowflake.ID      `gorm:"primaryKey"`
	Provider     string            `gorm:"type:text;not null;index"`
	Filename     *string           `gorm:"type:text"`
	ValidCount   int               `gorm:"not null"`
	InvalidCount int               `gorm:"not null"`
	Actor        *string           `gorm:"type:text"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ReportAudit) TableName() string { return "report_audits" }

// ListFilter narrows the audit listing.
type ListFilter struct {
	Provider string
	StartAt  *time.Time
	EndAt    *time.Time
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *ReportAudit) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*ReportAudit, error)
}
