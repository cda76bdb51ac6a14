package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/xim/effekt-backend/internal/distribution/domain"
	"github.com/xim/effekt-backend/internal/distribution/kid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("distribution.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) KIDExists(ctx context.Context, code string) (bool, error) {
	return s.repo.KIDExists(ctx, s.db, code)
}

func (s *Service) GetKIDBySplit(ctx context.Context, split domain.Split, donorID snowflake.ID) (string, error) {
	if err := split.Validate(); err != nil {
		return "", err
	}
	matches, err := s.repo.MatchKIDsBySplit(ctx, s.db, split, donorID)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", domain.ErrNotFound
	}
	if len(matches) > 1 {
		// One split per donor maps to one KID. More than one match means
		// duplicate distributions slipped in; surface it for operators.
		s.log.Warn("multiple KIDs match one split, data integrity violation",
			zap.Int64("donor_id", int64(donorID)),
			zap.Strings("kids", matches),
		)
	}
	return matches[0], nil
}

func (s *Service) Create(ctx context.Context, split domain.Split, donorID snowflake.ID) (string, error) {
	if err := split.Validate(); err != nil {
		return "", err
	}

	code, err := kid.Generate(ctx, func(ctx context.Context, candidate string) (bool, error) {
		return s.repo.KIDExists(ctx, s.db, candidate)
	})
	if err != nil {
		return "", err
	}

	// Distribution rows and the donor/KID linkage become visible together
	// or not at all.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownerID, err := s.repo.DefaultOwnerID(ctx, tx)
		if err != nil {
			return err
		}

		distributions := make([]domain.Distribution, len(split))
		combining := make([]domain.Combining, len(split))
		for i, line := range split {
			distributions[i] = domain.Distribution{
				ID:              s.genID.Generate(),
				OrgID:           line.OrganizationID,
				PercentageShare: line.Share,
			}
			combining[i] = domain.Combining{
				ID:             s.genID.Generate(),
				DonorID:        donorID,
				DistributionID: distributions[i].ID,
				KID:            code,
				MetaOwnerID:    ownerID,
			}
		}

		if err := s.repo.InsertDistributions(ctx, tx, distributions); err != nil {
			return err
		}
		return s.repo.InsertCombining(ctx, tx, combining)
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) EnsureKID(ctx context.Context, split domain.Split, donorID snowflake.ID) (string, error) {
	code, err := s.GetKIDBySplit(ctx, split, donorID)
	if err == nil {
		return code, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}
	return s.Create(ctx, split, donorID)
}

func (s *Service) GetSplitByKID(ctx context.Context, code string) ([]domain.SplitEntry, error) {
	entries, err := s.repo.GetSplitByKID(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return entries, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter, page, limit int) (domain.ListResponse, error) {
	return s.repo.List(ctx, s.db, filter, page, limit)
}
