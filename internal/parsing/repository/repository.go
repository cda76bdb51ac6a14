package repository

import (
	"context"
	"time"

	"github.com/xim/effekt-backend/internal/parsing/domain"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &Repository{db: db}
}

func (r *Repository) GetVippsParsingRules(ctx context.Context, from, to time.Time) ([]domain.Rule, error) {
	var rules []domain.Rule
	err := r.db.WithContext(ctx).
		Where("period_from <= ? AND period_to >= ?", to, from).
		Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}
