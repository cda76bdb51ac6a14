package repository

import (
	"context"
	"strings"

	"github.com/xim/effekt-backend/internal/audit/domain"
	"gorm.io/gorm"
)

type Repository struct{}

func Provide() domain.Repository { return &Repository{} }

func (r *Repository) Insert(ctx context.Context, db *gorm.DB, entry *domain.ReportAudit) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *Repository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.ReportAudit, error) {
	query := db.WithContext(ctx).Model(&domain.ReportAudit{})
	if provider := strings.TrimSpace(filter.Provider); provider != "" {
		query = query.Where("provider = ?", provider)
	}
	if filter.StartAt != nil {
		query = query.Where("created_at >= ?", *filter.StartAt)
	}
	if filter.EndAt != nil {
		query = query.Where("created_at <= ?", *filter.EndAt)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var entries []*domain.ReportAudit
	err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
