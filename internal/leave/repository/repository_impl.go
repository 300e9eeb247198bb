package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	leavedomain "github.com/smallbiznis/leavehub/internal/leave/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, org_id, member_id, status, start_date, end_date, duration_days,
	reason, contact, auto_close_at, reviewer_id, reviewed_at, review_comment, deny_reason,
	saved_roles, reminder_sent, activated_at, expired_at, early_returned_at, early_returned_by,
	recalled_at, recalled_by, auto_closed_at, created_at, updated_at`

type repo struct{}

func Provide() leavedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, request *leavedomain.LeaveRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO leave_requests (
			id, org_id, member_id, status, start_date, end_date, duration_days,
			reason, contact, auto_close_at, saved_roles, reminder_sent, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID,
		request.OrgID,
		request.MemberID,
		request.Status,
		request.StartDate,
		request.EndDate,
		request.DurationDays,
		request.Reason,
		request.Contact,
		request.AutoCloseAt,
		request.SavedRoles,
		request.ReminderSent,
		request.CreatedAt,
		request.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, request *leavedomain.LeaveRequest) error {
	return db.WithContext(ctx).Exec(
		`UPDATE leave_requests SET
			status = ?, reviewer_id = ?, reviewed_at = ?, review_comment = ?, deny_reason = ?,
			saved_roles = ?, reminder_sent = ?, activated_at = ?, expired_at = ?,
			early_returned_at = ?, early_returned_by = ?, recalled_at = ?, recalled_by = ?,
			auto_closed_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		request.Status,
		request.ReviewerID,
		request.ReviewedAt,
		request.ReviewComment,
		request.DenyReason,
		request.SavedRoles,
		request.ReminderSent,
		request.ActivatedAt,
		request.ExpiredAt,
		request.EarlyReturnedAt,
		request.EarlyReturnedBy,
		request.RecalledAt,
		request.RecalledBy,
		request.AutoClosedAt,
		request.UpdatedAt,
		request.OrgID,
		request.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*leavedomain.LeaveRequest, error) {
	return r.findByID(ctx, db, orgID, id, "")
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*leavedomain.LeaveRequest, error) {
	return r.findByID(ctx, db, orgID, id, lockSuffix(db))
}

// lockSuffix returns the row-lock clause. SQLite locks the whole database
// per write transaction and rejects FOR UPDATE syntax.
func lockSuffix(db *gorm.DB) string {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}

func (r *repo) findByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, suffix string) (*leavedomain.LeaveRequest, error) {
	var request leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM leave_requests WHERE org_id = ? AND id = ?`+suffix,
		orgID,
		id,
	).Scan(&request).Error
	if err != nil {
		return nil, err
	}
	if request.ID == 0 {
		return nil, nil
	}
	return &request, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, req leavedomain.ListRequest) ([]leavedomain.LeaveRequest, error) {
	query := `SELECT ` + selectColumns + ` FROM leave_requests WHERE org_id = ?`
	args := []interface{}{req.OrgID}
	if req.MemberID != 0 {
		query += ` AND member_id = ?`
		args = append(args, req.MemberID)
	}
	if req.Status != "" {
		query += ` AND status = ?`
		args = append(args, req.Status)
	}
	query += ` ORDER BY created_at DESC`

	var requests []leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(query, args...).Scan(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) ListActiveByEndDate(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]leavedomain.LeaveRequest, error) {
	var requests []leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM leave_requests
		 WHERE org_id = ? AND status = ? ORDER BY end_date ASC, id ASC`,
		orgID,
		leavedomain.StatusActive,
	).Scan(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) ListApprovedStarting(ctx context.Context, db *gorm.DB, orgID snowflake.ID, today time.Time) ([]leavedomain.LeaveRequest, error) {
	var requests []leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM leave_requests
		 WHERE org_id = ? AND status = ? AND start_date <= ? ORDER BY id ASC`,
		orgID,
		leavedomain.StatusApproved,
		today,
	).Scan(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) ListActiveEnded(ctx context.Context, db *gorm.DB, orgID snowflake.ID, today time.Time) ([]leavedomain.LeaveRequest, error) {
	var requests []leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM leave_requests
		 WHERE org_id = ? AND status = ? AND end_date <= ? ORDER BY id ASC`,
		orgID,
		leavedomain.StatusActive,
		today,
	).Scan(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) ListActiveNeedingReminder(ctx context.Context, db *gorm.DB, orgID snowflake.ID, endDate time.Time) ([]leavedomain.LeaveRequest, error) {
	var requests []leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM leave_requests
		 WHERE org_id = ? AND status = ? AND end_date = ? AND reminder_sent = ? ORDER BY id ASC`,
		orgID,
		leavedomain.StatusActive,
		endDate,
		false,
	).Scan(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) ListPendingPastAutoClose(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) ([]leavedomain.LeaveRequest, error) {
	var requests []leavedomain.LeaveRequest
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM leave_requests
		 WHERE org_id = ? AND status = ? AND auto_close_at <= ? ORDER BY id ASC`,
		orgID,
		leavedomain.StatusPending,
		now,
	).Scan(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repo) ListOrgIDsWithOpenRequests(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT org_id FROM leave_requests
		 WHERE status IN (?, ?, ?) ORDER BY org_id`,
		leavedomain.StatusPending,
		leavedomain.StatusApproved,
		leavedomain.StatusActive,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
