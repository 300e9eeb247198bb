package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, request *LeaveRequest) error
	Update(ctx context.Context, db *gorm.DB, request *LeaveRequest) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LeaveRequest, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LeaveRequest, error)
	List(ctx context.Context, db *gorm.DB, req ListRequest) ([]LeaveRequest, error)
	ListActiveByEndDate(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]LeaveRequest, error)

	// Scheduler scans, org-scoped so settings load once per org per pass.
	ListApprovedStarting(ctx context.Context, db *gorm.DB, orgID snowflake.ID, today time.Time) ([]LeaveRequest, error)
	ListActiveEnded(ctx context.Context, db *gorm.DB, orgID snowflake.ID, today time.Time) ([]LeaveRequest, error)
	ListActiveNeedingReminder(ctx context.Context, db *gorm.DB, orgID snowflake.ID, endDate time.Time) ([]LeaveRequest, error)
	ListPendingPastAutoClose(ctx context.Context, db *gorm.DB, orgID snowflake.ID, now time.Time) ([]LeaveRequest, error)
	ListOrgIDsWithOpenRequests(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error)
}
