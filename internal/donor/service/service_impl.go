package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/xim/effekt-backend/internal/clock"
	"github.com/xim/effekt-backend/internal/donor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("donor.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) GetIDByEmail(ctx context.Context, email string) (snowflake.ID, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return 0, domain.ErrInvalidEmail
	}
	var id snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&domain.Donor{}).
		Select("id").
		Where("email = ?", email).
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Donor, error) {
	var donor domain.Donor
	err := s.db.WithContext(ctx).First(&donor, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &donor, nil
}

func (s *Service) GetByKID(ctx context.Context, kid string) (*domain.Donor, error) {
	var donor domain.Donor
	err := s.db.WithContext(ctx).Raw(
		`SELECT donors.*
		 FROM donors
		 INNER JOIN combining ON combining.donor_id = donors.id
		 WHERE combining.kid = ?
		 GROUP BY donors.id
		 LIMIT 1`,
		kid,
	).Scan(&donor).Error
	if err != nil {
		return nil, err
	}
	if donor.ID == 0 {
		return nil, domain.ErrNotFound
	}
	return &donor, nil
}

func (s *Service) Add(ctx context.Context, req domain.RegisterDonorRequest) (snowflake.ID, error) {
	name := strings.TrimSpace(req.FullName)
	if name == "" {
		return 0, domain.ErrInvalidName
	}

	donor := domain.Donor{
		ID:             s.genID.Generate(),
		FullName:       name,
		DateRegistered: s.clock.Now(),
		Newsletter:     req.Newsletter,
	}
	if email := strings.TrimSpace(strings.ToLower(req.Email)); email != "" {
		donor.Email = &email
	}
	if taxID := strings.TrimSpace(req.TaxID); taxID != "" {
		donor.TaxID = &taxID
	}

	if err := s.db.WithContext(ctx).Create(&donor).Error; err != nil {
		return 0, err
	}
	return donor.ID, nil
}

func (s *Service) SetTaxID(ctx context.Context, id snowflake.ID, taxID string) error {
	taxID = strings.TrimSpace(taxID)
	if taxID == "" {
		return nil
	}
	result := s.db.WithContext(ctx).
		Model(&domain.Donor{}).
		Where("id = ? AND tax_id IS NULL", id).
		Update("tax_id", taxID)
	if result.Error != nil {
		return result.Error
	}
	// RowsAffected of zero means the donor already carries a tax id, or does
	// not exist; both are fine to callers registering donations.
	return nil
}

func (s *Service) Ensure(ctx context.Context, req domain.RegisterDonorRequest) (snowflake.ID, error) {
	if strings.TrimSpace(req.Email) != "" {
		id, err := s.GetIDByEmail(ctx, req.Email)
		if err == nil {
			if req.TaxID != "" {
				if terr := s.SetTaxID(ctx, id, req.TaxID); terr != nil {
					s.log.Warn("failed to backfill donor tax id", zap.Error(terr))
				}
			}
			return id, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return 0, err
		}
	}
	return s.Add(ctx, req)
}

func (s *Service) Search(ctx context.Context, query string) ([]domain.Donor, error) {
	like := "%" + strings.TrimSpace(query) + "%"
	var donors []domain.Donor
	err := s.db.WithContext(ctx).
		Where("full_name LIKE ? OR email LIKE ?", like, like).
		Order("full_name ASC").
		Find(&donors).Error
	if err != nil {
		return nil, err
	}
	return donors, nil
}
