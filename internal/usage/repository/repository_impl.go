package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	usagedomain "github.com/smallbiznis/leavehub/internal/usage/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() usagedomain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID, periodKey string) (*usagedomain.UsageEntry, error) {
	return r.find(ctx, db, orgID, memberID, periodKey, "")
}

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID, periodKey string) (*usagedomain.UsageEntry, error) {
	return r.find(ctx, db, orgID, memberID, periodKey, lockSuffix(db))
}

// lockSuffix returns the row-lock clause. SQLite locks the whole database
// per write transaction and rejects FOR UPDATE syntax.
func lockSuffix(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}

func (r *repo) find(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID, periodKey, suffix string) (*usagedomain.UsageEntry, error) {
	var entry usagedomain.UsageEntry
	err := db.WithContext(ctx).Raw(
		`SELECT org_id, member_id, period_key, count, total_days, last_taken_at, created_at, updated_at
		 FROM usage_entries WHERE org_id = ? AND member_id = ? AND period_key = ?`+suffix,
		orgID,
		memberID,
		periodKey,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.OrgID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, entry *usagedomain.UsageEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_entries (
			org_id, member_id, period_key, count, total_days, last_taken_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, member_id, period_key) DO UPDATE SET
			count = EXCLUDED.count,
			total_days = EXCLUDED.total_days,
			last_taken_at = EXCLUDED.last_taken_at,
			updated_at = EXCLUDED.updated_at`,
		entry.OrgID,
		entry.MemberID,
		entry.PeriodKey,
		entry.Count,
		entry.TotalDays,
		entry.LastTakenAt,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) SumForMember(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID) (int, int, error) {
	var row struct {
		Count     int
		TotalDays int
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(count), 0) AS count, COALESCE(SUM(total_days), 0) AS total_days
		 FROM usage_entries WHERE org_id = ? AND member_id = ?`,
		orgID,
		memberID,
	).Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	return row.Count, row.TotalDays, nil
}

func (r *repo) LastTakenAt(ctx context.Context, db *gorm.DB, orgID, memberID snowflake.ID) (*usagedomain.UsageEntry, error) {
	var entry usagedomain.UsageEntry
	err := db.WithContext(ctx).Raw(
		`SELECT org_id, member_id, period_key, count, total_days, last_taken_at, created_at, updated_at
		 FROM usage_entries
		 WHERE org_id = ? AND member_id = ? AND last_taken_at IS NOT NULL
		 ORDER BY last_taken_at DESC LIMIT 1`,
		orgID,
		memberID,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.OrgID == 0 {
		return nil, nil
	}
	return &entry, nil
}
