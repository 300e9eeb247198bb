// Package domain contains the leave request model and its state machine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status represents lifecycle states for a leave request.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusApproved      Status = "APPROVED"
	StatusDenied        Status = "DENIED"
	StatusActive        Status = "ACTIVE"
	StatusEarlyReturned Status = "EARLY_RETURNED"
	StatusExpired       Status = "EXPIRED"
	StatusAutoClosed    Status = "AUTO_CLOSED"
	StatusRecalled      Status = "RECALLED"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusDenied, StatusEarlyReturned, StatusExpired, StatusAutoClosed, StatusRecalled:
		return true
	default:
		return false
	}
}

// LeaveRequest captures one member's time-bounded leave.
type LeaveRequest struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	OrgID    snowflake.ID `gorm:"not null;index:idx_leave_requests_org_status;index:idx_leave_requests_org_member"`
	MemberID snowflake.ID `gorm:"not null;index:idx_leave_requests_org_member"`
	Status   Status       `gorm:"type:text;not null;index:idx_leave_requests_org_status"`

	// StartDate and EndDate are calendar dates normalized to midnight UTC
	// in the reporting zone. EndDate = StartDate + DurationDays.
	StartDate    time.Time `gorm:"not null"`
	EndDate      time.Time `gorm:"not null"`
	DurationDays int       `gorm:"not null"`

	Reason  string `gorm:"type:text;not null;default:''"`
	Contact string `gorm:"type:text;not null;default:''"`

	AutoCloseAt time.Time `gorm:"not null"`

	ReviewerID    *snowflake.ID `gorm:""`
	ReviewedAt    *time.Time    `gorm:""`
	ReviewComment *string       `gorm:"type:text"`
	DenyReason    *string       `gorm:"type:text"`

	// SavedRoles is the member's role snapshot taken just before
	// activation, restored when the leave ends.
	SavedRoles   datatypes.JSONSlice[int64] `gorm:"type:jsonb"`
	ReminderSent bool                       `gorm:"not null;default:false"`

	ActivatedAt     *time.Time    `gorm:""`
	ExpiredAt       *time.Time    `gorm:""`
	EarlyReturnedAt *time.Time    `gorm:""`
	EarlyReturnedBy *snowflake.ID `gorm:""`
	RecalledAt      *time.Time    `gorm:""`
	RecalledBy      *snowflake.ID `gorm:""`
	AutoClosedAt    *time.Time    `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (LeaveRequest) TableName() string { return "leave_requests" }
