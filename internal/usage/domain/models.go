// Package domain contains persistence models for the leave usage ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// UsageEntry accumulates approved leave per member and calendar month.
// PeriodKey is YYYY-MM in the reporting time zone.
type UsageEntry struct {
	OrgID       snowflake.ID `gorm:"primaryKey"`
	MemberID    snowflake.ID `gorm:"primaryKey"`
	PeriodKey   string       `gorm:"primaryKey;type:text"`
	Count       int          `gorm:"not null;default:0"`
	TotalDays   int          `gorm:"not null;default:0"`
	LastTakenAt *time.Time   `gorm:""`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (UsageEntry) TableName() string { return "usage_entries" }

// MemberStats aggregates a member's lifetime and current-month usage.
type MemberStats struct {
	OrgID          snowflake.ID `json:"org_id"`
	MemberID       snowflake.ID `json:"member_id"`
	LifetimeCount  int          `json:"lifetime_count"`
	LifetimeDays   int          `json:"lifetime_days"`
	MonthCount     int          `json:"month_count"`
	MonthDays      int          `json:"month_days"`
	RemainingQuota int          `json:"remaining_quota"`
	LastTakenAt    *time.Time   `json:"last_taken_at,omitempty"`
}
