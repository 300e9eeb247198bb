package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/leavehub/internal/clock"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	orgsettingsrepository "github.com/smallbiznis/leavehub/internal/orgsettings/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const orgID = snowflake.ID(42)

func newService(t *testing.T) orgsettingsdomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&orgsettingsdomain.OrgSettings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  orgsettingsrepository.Provide(),
	})
}

func TestGetReturnsDefaultsForUnknownOrg(t *testing.T) {
	svc := newService(t)

	settings, err := svc.Get(context.Background(), orgID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if settings.QuotaPerMonth != 1 {
		t.Fatalf("quota = %d, want default 1", settings.QuotaPerMonth)
	}
	if settings.AutoCloseHours != 24 {
		t.Fatalf("auto close hours = %d, want default 24", settings.AutoCloseHours)
	}
	if len(settings.AllowedDurations) != 3 {
		t.Fatalf("allowed durations = %v, want default set", settings.AllowedDurations)
	}
}

func TestUpdateIsPartial(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	quota := 3
	if _, err := svc.Update(ctx, orgsettingsdomain.UpdateSettingsRequest{
		OrgID:         orgID,
		QuotaPerMonth: &quota,
		ReviewerRoles: []int64{100, 200},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	hours := 48
	updated, err := svc.Update(ctx, orgsettingsdomain.UpdateSettingsRequest{
		OrgID:          orgID,
		AutoCloseHours: &hours,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	// Earlier fields survive a later partial update.
	if updated.QuotaPerMonth != 3 {
		t.Fatalf("quota = %d, want 3", updated.QuotaPerMonth)
	}
	if len(updated.ReviewerRoles) != 2 {
		t.Fatalf("reviewer roles = %v, want 2 entries", updated.ReviewerRoles)
	}
	if updated.AutoCloseHours != 48 {
		t.Fatalf("auto close hours = %d, want 48", updated.AutoCloseHours)
	}

	stored, err := svc.Get(ctx, orgID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.AutoCloseHours != 48 || stored.QuotaPerMonth != 3 {
		t.Fatalf("stored settings = %+v, want persisted update", stored)
	}
}

func TestUpdateValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	negQuota := -1
	if _, err := svc.Update(ctx, orgsettingsdomain.UpdateSettingsRequest{
		OrgID: orgID, QuotaPerMonth: &negQuota,
	}); !errors.Is(err, orgsettingsdomain.ErrInvalidQuota) {
		t.Fatalf("err = %v, want invalid quota", err)
	}

	zeroHours := 0
	if _, err := svc.Update(ctx, orgsettingsdomain.UpdateSettingsRequest{
		OrgID: orgID, AutoCloseHours: &zeroHours,
	}); !errors.Is(err, orgsettingsdomain.ErrInvalidAutoClose) {
		t.Fatalf("err = %v, want invalid auto close", err)
	}

	if _, err := svc.Update(ctx, orgsettingsdomain.UpdateSettingsRequest{
		OrgID: orgID, AllowedDurations: []int{7, 0},
	}); !errors.Is(err, orgsettingsdomain.ErrInvalidDurations) {
		t.Fatalf("err = %v, want invalid durations", err)
	}
}

func TestZeroQuotaIsValid(t *testing.T) {
	svc := newService(t)

	// Quota 0 is a legal setting that blocks all submissions.
	zero := 0
	updated, err := svc.Update(context.Background(), orgsettingsdomain.UpdateSettingsRequest{
		OrgID: orgID, QuotaPerMonth: &zero,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.QuotaPerMonth != 0 {
		t.Fatalf("quota = %d, want 0", updated.QuotaPerMonth)
	}
}
