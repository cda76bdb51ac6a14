package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/xim/effekt-backend/internal/distribution/domain"
	"gorm.io/gorm"
)

type Repository struct{}

func Provide() domain.Repository { return &Repository{} }

func (r *Repository) KIDExists(ctx context.Context, db *gorm.DB, kid string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Combining{}).
		Where("kid = ?", kid).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MatchKIDsBySplit finds the donor's KIDs whose stored rows equal the split as
// a set: the number of (org, share) pairs matching the split must equal the
// split length, and so must the total number of rows under the KID. The second
// guard keeps a superset distribution from matching a subset split.
func (r *Repository) MatchKIDsBySplit(ctx context.Context, db *gorm.DB, split domain.Split, donorID snowflake.ID) ([]string, error) {
	if len(split) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(split)*2+3)
	sb.WriteString(`
		SELECT c.kid AS kid
		FROM distributions d
		INNER JOIN combining c ON c.distribution_id = d.id
		WHERE c.donor_id = ? AND (`)
	args = append(args, donorID)
	for i, line := range split {
		if i > 0 {
			sb.WriteString(" OR ")
		}
		sb.WriteString("(d.org_id = ? AND d.percentage_share = ?)")
		args = append(args, line.OrganizationID, line.Share)
	}
	sb.WriteString(`)
		GROUP BY c.kid
		HAVING COUNT(*) = ?
		   AND (SELECT COUNT(*) FROM combining c2 WHERE c2.kid = c.kid) = ?`)
	args = append(args, len(split), len(split))

	var kids []string
	if err := db.WithContext(ctx).Raw(sb.String(), args...).Scan(&kids).Error; err != nil {
		return nil, err
	}
	return kids, nil
}

func (r *Repository) InsertDistributions(ctx context.Context, tx *gorm.DB, rows []domain.Distribution) error {
	return tx.WithContext(ctx).Create(&rows).Error
}

func (r *Repository) InsertCombining(ctx context.Context, tx *gorm.DB, rows []domain.Combining) error {
	return tx.WithContext(ctx).Create(&rows).Error
}

func (r *Repository) GetSplitByKID(ctx context.Context, db *gorm.DB, kid string) ([]domain.SplitEntry, error) {
	var entries []domain.SplitEntry
	err := db.WithContext(ctx).Raw(
		`SELECT
			organizations.id AS organization_id,
			organizations.full_name AS full_name,
			organizations.abbrev AS abbrev,
			distributions.percentage_share AS share
		 FROM combining
		 INNER JOIN distributions ON combining.distribution_id = distributions.id
		 INNER JOIN organizations ON organizations.id = distributions.org_id
		 WHERE combining.kid = ?
		 ORDER BY distributions.percentage_share DESC, organizations.ordering ASC`,
		kid,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) DefaultOwnerID(ctx context.Context, db *gorm.DB) (snowflake.ID, error) {
	var id snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.DataOwner{}).
		Select("id").
		Where("is_default = ?", true).
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrNoDefaultOwner
	}
	return id, nil
}

func (r *Repository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page, limit int) (domain.ListResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if page < 0 {
		page = 0
	}

	where := "1=1"
	args := []interface{}{}
	if kid := strings.TrimSpace(filter.KID); kid != "" {
		where += " AND c.kid LIKE ?"
		args = append(args, "%"+kid+"%")
	}
	if donor := strings.TrimSpace(filter.Donor); donor != "" {
		where += " AND (donors.full_name LIKE ? OR donors.email LIKE ?)"
		args = append(args, "%"+donor+"%", "%"+donor+"%")
	}

	base := `
		FROM (SELECT DISTINCT kid, donor_id FROM combining) AS c
		LEFT JOIN (
			SELECT kid, SUM(sum_confirmed) AS total, COUNT(*) AS cnt
			FROM donations
			GROUP BY kid
		) AS agg ON agg.kid = c.kid
		INNER JOIN donors ON donors.id = c.donor_id
		WHERE ` + where

	var resp domain.ListResponse
	query := `
		SELECT
			c.kid AS kid,
			donors.full_name AS donor_name,
			donors.email AS email,
			COALESCE(agg.total, 0) AS sum,
			COALESCE(agg.cnt, 0) AS count` + base + `
		ORDER BY c.kid ASC
		LIMIT ? OFFSET ?`
	listArgs := append(append([]interface{}{}, args...), limit, page*limit)
	if err := db.WithContext(ctx).Raw(query, listArgs...).Scan(&resp.Rows).Error; err != nil {
		return domain.ListResponse{}, err
	}

	var total int64
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(*)`+base, args...).Scan(&total).Error; err != nil {
		return domain.ListResponse{}, err
	}
	resp.Pages = (total + int64(limit) - 1) / int64(limit)
	return resp, nil
}
