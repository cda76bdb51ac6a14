package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/xim/effekt-backend/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(p Params) domain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("organization.service"),
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Service) GetByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.Organization, error) {
	if len(ids) == 0 {
		return nil, domain.ErrInvalidOrgList
	}
	var orgs []domain.Organization
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&orgs).Error; err != nil {
		return nil, err
	}
	return orgs, nil
}

func (s *Service) GetActive(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("ordering ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (s *Service) GetStandardSplit(ctx context.Context) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND std_percentage_share > 0", true).
		Order("ordering ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}
