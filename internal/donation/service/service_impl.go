package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	"github.com/xim/effekt-backend/internal/donation/domain"
	"github.com/xim/effekt-backend/internal/notification"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Receipts *notification.Outbox
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	receipts *notification.Outbox
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("donation.service"),
		genID:    p.GenID,
		receipts: p.Receipts,
	}
}

func (s *Service) RecordPending(ctx context.Context, req domain.RecordPendingRequest) (snowflake.ID, error) {
	if !req.Sum.IsPositive() {
		return 0, domain.ErrInvalidSum
	}
	if req.PaymentMethodID <= 0 {
		return 0, domain.ErrInvalidMethod
	}

	externalRef := strings.TrimSpace(req.ExternalRef)
	if externalRef != "" {
		// Providers redeliver report rows; a known transaction is returned
		// as-is instead of duplicated.
		existing, err := s.findByExternalRef(ctx, req.PaymentMethodID, externalRef)
		if err != nil {
			return 0, err
		}
		if existing != 0 {
			return existing, nil
		}
	}

	donorID, err := s.donorIDForKID(ctx, req.KID)
	if err != nil {
		return 0, err
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	donation := domain.Donation{
		ID:                s.genID.Generate(),
		DonorID:           donorID,
		KID:               req.KID,
		PaymentMethodID:   req.PaymentMethodID,
		SumNotified:       &req.Sum,
		TimestampNotified: &timestamp,
	}
	if externalRef != "" {
		donation.PaymentExternalRef = &externalRef
	}

	if err := s.db.WithContext(ctx).Create(&donation).Error; err != nil {
		// A concurrent writer may have landed the same external ref between
		// the lookup and the insert.
		if externalRef != "" {
			existing, lookupErr := s.findByExternalRef(ctx, req.PaymentMethodID, externalRef)
			if lookupErr == nil && existing != 0 {
				return existing, nil
			}
		}
		return 0, err
	}

	// The receipt row is a separate write on purpose: if it fails, the
	// donation insert is compensated with an explicit delete so no receipt
	// ever goes missing for a recorded donation. A failing compensation is
	// logged and the original error still surfaces.
	if err := s.receipts.Publish(ctx, donation.ID); err != nil {
		if delErr := s.db.WithContext(ctx).Delete(&domain.Donation{}, "id = ?", donation.ID).Error; delErr != nil {
			s.log.Error("compensating donation delete failed",
				zap.Int64("donation_id", int64(donation.ID)),
				zap.Error(delErr),
			)
		}
		return 0, err
	}

	return donation.ID, nil
}

func (s *Service) Confirm(ctx context.Context, id snowflake.ID, timestamp time.Time) error {
	var donation domain.Donation
	err := s.db.WithContext(ctx).First(&donation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if donation.Confirmed() {
		return domain.ErrAlreadyConfirmed
	}

	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	updates := map[string]interface{}{
		"timestamp_confirmed": timestamp,
	}
	if donation.SumConfirmed == nil {
		updates["sum_confirmed"] = donation.SumNotified
	}
	return s.db.WithContext(ctx).
		Model(&domain.Donation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Donation, error) {
	var donation domain.Donation
	err := s.db.WithContext(ctx).First(&donation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

func (s *Service) GetAggregateByTime(ctx context.Context, from, to time.Time) (domain.Aggregate, error) {
	var row struct {
		Sum   decimal.Decimal
		Count int64
	}
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(sum_confirmed), 0) AS sum, COUNT(*) AS count
		 FROM donations
		 WHERE timestamp_confirmed IS NOT NULL
		   AND timestamp_confirmed >= ? AND timestamp_confirmed <= ?`,
		from, to,
	).Scan(&row).Error
	if err != nil {
		return domain.Aggregate{}, err
	}
	return domain.Aggregate{Sum: row.Sum, Count: row.Count}, nil
}

func (s *Service) GetHistogramBySum(ctx context.Context, bucketWidth decimal.Decimal) ([]domain.HistogramBucket, error) {
	if !bucketWidth.IsPositive() {
		bucketWidth = decimal.NewFromInt(500)
	}
	var buckets []domain.HistogramBucket
	err := s.db.WithContext(ctx).Raw(
		`SELECT (CAST(sum_confirmed / ? AS INTEGER)) * ? AS bucket, COUNT(*) AS count
		 FROM donations
		 WHERE sum_confirmed IS NOT NULL
		 GROUP BY bucket
		 ORDER BY bucket ASC`,
		bucketWidth, bucketWidth,
	).Scan(&buckets).Error
	if err != nil {
		return nil, err
	}
	return buckets, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter, page, limit int) (domain.ListResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if page < 0 {
		page = 0
	}

	query := s.db.WithContext(ctx).Model(&domain.Donation{})
	if kid := strings.TrimSpace(filter.KID); kid != "" {
		query = query.Where("kid LIKE ?", "%"+kid+"%")
	}
	if donor := strings.TrimSpace(filter.Donor); donor != "" {
		query = query.Where(
			"donor_id IN (SELECT id FROM donors WHERE full_name LIKE ? OR email LIKE ?)",
			"%"+donor+"%", "%"+donor+"%",
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return domain.ListResponse{}, err
	}

	var rows []domain.Donation
	err := query.
		Order("timestamp_confirmed DESC, id DESC").
		Limit(limit).
		Offset(page * limit).
		Find(&rows).Error
	if err != nil {
		return domain.ListResponse{}, err
	}

	return domain.ListResponse{
		Rows:  rows,
		Pages: (total + int64(limit) - 1) / int64(limit),
	}, nil
}

func (s *Service) findByExternalRef(ctx context.Context, methodID int, externalRef string) (snowflake.ID, error) {
	var id snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&domain.Donation{}).
		Select("id").
		Where("payment_method_id = ? AND payment_external_ref = ?", methodID, externalRef).
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) donorIDForKID(ctx context.Context, kid string) (snowflake.ID, error) {
	var donorID snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&distributiondomain.Combining{}).
		Select("donor_id").
		Where("kid = ?", kid).
		Limit(1).
		Scan(&donorID).Error
	if err != nil {
		return 0, err
	}
	if donorID == 0 {
		return 0, domain.ErrKIDNotFound
	}
	return donorID, nil
}
