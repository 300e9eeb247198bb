package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() orgsettingsdomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*orgsettingsdomain.OrgSettings, error) {
	var settings orgsettingsdomain.OrgSettings
	err := db.WithContext(ctx).Raw(
		`SELECT org_id, quota_per_month, auto_close_hours, allowed_durations, reviewer_roles,
		 banned_roles, min_rank_roles, vacation_role, created_at, updated_at
		 FROM org_settings WHERE org_id = ?`,
		orgID,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.OrgID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, settings *orgsettingsdomain.OrgSettings) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO org_settings (
			org_id, quota_per_month, auto_close_hours, allowed_durations, reviewer_roles,
			banned_roles, min_rank_roles, vacation_role, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id) DO UPDATE SET
			quota_per_month = EXCLUDED.quota_per_month,
			auto_close_hours = EXCLUDED.auto_close_hours,
			allowed_durations = EXCLUDED.allowed_durations,
			reviewer_roles = EXCLUDED.reviewer_roles,
			banned_roles = EXCLUDED.banned_roles,
			min_rank_roles = EXCLUDED.min_rank_roles,
			vacation_role = EXCLUDED.vacation_role,
			updated_at = EXCLUDED.updated_at`,
		settings.OrgID,
		settings.QuotaPerMonth,
		settings.AutoCloseHours,
		settings.AllowedDurations,
		settings.ReviewerRoles,
		settings.BannedRoles,
		settings.MinRankRoles,
		settings.VacationRole,
		settings.CreatedAt,
		settings.UpdatedAt,
	).Error
}

func (r *repo) ListOrgIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(`SELECT org_id FROM org_settings ORDER BY org_id`).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
