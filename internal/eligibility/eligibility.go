// Package eligibility evaluates the submission policy and the reviewer gate.
// All checks are pure functions over roles and settings so the order of
// failures stays stable and testable.
package eligibility

import (
	"errors"

	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
)

var (
	ErrRoleBanned            = errors.New("member_role_banned")
	ErrRankTooLow            = errors.New("member_rank_too_low")
	ErrQuotaExceeded         = errors.New("monthly_quota_exceeded")
	ErrReviewerNotAuthorized = errors.New("reviewer_not_authorized")
)

// CanSubmit checks the submission policy. The check order is part of the
// contract: banned role first, then minimum rank, then quota.
func CanSubmit(memberRoles []int64, settings *orgsettingsdomain.OrgSettings, monthCount int) error {
	if hasAny(memberRoles, settings.BannedRoles) {
		return ErrRoleBanned
	}
	if len(settings.MinRankRoles) > 0 && !hasAny(memberRoles, settings.MinRankRoles) {
		return ErrRankTooLow
	}
	// A quota of zero rejects every submission.
	if monthCount >= settings.QuotaPerMonth {
		return ErrQuotaExceeded
	}
	return nil
}

// IsReviewer reports whether the member may approve or deny requests.
// With no reviewer roles configured the gate stays closed.
func IsReviewer(memberRoles []int64, settings *orgsettingsdomain.OrgSettings) bool {
	if settings == nil || len(settings.ReviewerRoles) == 0 {
		return false
	}
	return hasAny(memberRoles, settings.ReviewerRoles)
}

func hasAny(memberRoles []int64, wanted []int64) bool {
	if len(memberRoles) == 0 || len(wanted) == 0 {
		return false
	}
	set := make(map[int64]struct{}, len(wanted))
	for _, role := range wanted {
		set[role] = struct{}{}
	}
	for _, role := range memberRoles {
		if _, ok := set[role]; ok {
			return true
		}
	}
	return false
}
