package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrSettingsNotFound = errors.New("org_settings_not_found")
	ErrInvalidQuota     = errors.New("invalid_quota")
	ErrInvalidAutoClose = errors.New("invalid_auto_close_hours")
	ErrInvalidDurations = errors.New("invalid_allowed_durations")
)

// UpdateSettingsRequest carries the admin-editable policy fields.
type UpdateSettingsRequest struct {
	OrgID            snowflake.ID
	QuotaPerMonth    *int
	AutoCloseHours   *int
	AllowedDurations []int
	ReviewerRoles    []int64
	BannedRoles      []int64
	MinRankRoles     []int64
	VacationRole     *int64
}

type Service interface {
	Get(ctx context.Context, orgID snowflake.ID) (*OrgSettings, error)
	Update(ctx context.Context, req UpdateSettingsRequest) (*OrgSettings, error)
}
