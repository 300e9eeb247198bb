package eligibility

import (
	"errors"
	"testing"

	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	"gorm.io/datatypes"
)

func settingsWith(banned, minRank, reviewers []int64, quota int) *orgsettingsdomain.OrgSettings {
	s := orgsettingsdomain.Defaults(1)
	s.BannedRoles = datatypes.JSONSlice[int64](banned)
	s.MinRankRoles = datatypes.JSONSlice[int64](minRank)
	s.ReviewerRoles = datatypes.JSONSlice[int64](reviewers)
	s.QuotaPerMonth = quota
	return &s
}

func TestCanSubmitOrdering(t *testing.T) {
	// A member who is banned, under-ranked and over quota must fail
	// on the ban first.
	settings := settingsWith([]int64{10}, []int64{20}, nil, 1)
	err := CanSubmit([]int64{10}, settings, 5)
	if !errors.Is(err, ErrRoleBanned) {
		t.Fatalf("expected ErrRoleBanned, got %v", err)
	}

	// Not banned but under-ranked and over quota: rank wins.
	err = CanSubmit([]int64{11}, settings, 5)
	if !errors.Is(err, ErrRankTooLow) {
		t.Fatalf("expected ErrRankTooLow, got %v", err)
	}

	// Ranked but over quota.
	err = CanSubmit([]int64{20}, settings, 5)
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// All clear.
	if err := CanSubmit([]int64{20}, settings, 0); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestCanSubmitNoRankRequirement(t *testing.T) {
	settings := settingsWith(nil, nil, nil, 1)
	if err := CanSubmit([]int64{99}, settings, 0); err != nil {
		t.Fatalf("expected nil with empty rank roles, got %v", err)
	}
}

func TestCanSubmitZeroQuotaRejectsAll(t *testing.T) {
	settings := settingsWith(nil, nil, nil, 0)
	if err := CanSubmit(nil, settings, 0); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("quota 0 must reject every submission, got %v", err)
	}
}

func TestIsReviewer(t *testing.T) {
	settings := settingsWith(nil, nil, []int64{30}, 1)
	if !IsReviewer([]int64{30, 31}, settings) {
		t.Fatal("member holding a reviewer role must pass the gate")
	}
	if IsReviewer([]int64{31}, settings) {
		t.Fatal("member without a reviewer role must not pass the gate")
	}
	if IsReviewer([]int64{30}, settingsWith(nil, nil, nil, 1)) {
		t.Fatal("empty reviewer role set keeps the gate closed")
	}
}
