// Package domain contains persistence models for per-organization leave policy.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// OrgSettings captures the leave policy knobs for one organization.
type OrgSettings struct {
	OrgID            snowflake.ID                `gorm:"primaryKey"`
	QuotaPerMonth    int                         `gorm:"not null;default:1"`
	AutoCloseHours   int                         `gorm:"not null;default:24"`
	AllowedDurations datatypes.JSONSlice[int]    `gorm:"type:jsonb"`
	ReviewerRoles    datatypes.JSONSlice[int64]  `gorm:"type:jsonb"`
	BannedRoles      datatypes.JSONSlice[int64]  `gorm:"type:jsonb"`
	MinRankRoles     datatypes.JSONSlice[int64]  `gorm:"type:jsonb"`
	VacationRole     int64                       `gorm:"not null;default:0"`
	CreatedAt        time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (OrgSettings) TableName() string { return "org_settings" }

// Defaults returns the settings a fresh organization starts with.
func Defaults(orgID snowflake.ID) OrgSettings {
	now := time.Now().UTC()
	return OrgSettings{
		OrgID:            orgID,
		QuotaPerMonth:    1,
		AutoCloseHours:   24,
		AllowedDurations: datatypes.JSONSlice[int]{3, 7, 14},
		ReviewerRoles:    datatypes.JSONSlice[int64]{},
		BannedRoles:      datatypes.JSONSlice[int64]{},
		MinRankRoles:     datatypes.JSONSlice[int64]{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// AllowsDuration reports whether the requested duration is in the allowed set.
func (s OrgSettings) AllowsDuration(days int) bool {
	for _, allowed := range s.AllowedDurations {
		if allowed == days {
			return true
		}
	}
	return false
}

// AutoCloseAfter returns the pending-request timeout as a duration.
func (s OrgSettings) AutoCloseAfter() time.Duration {
	hours := s.AutoCloseHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}
