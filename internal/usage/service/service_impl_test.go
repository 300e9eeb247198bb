package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/leavehub/internal/clock"
	usagedomain "github.com/smallbiznis/leavehub/internal/usage/domain"
	usagerepository "github.com/smallbiznis/leavehub/internal/usage/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	orgID    = snowflake.ID(11)
	memberID = snowflake.ID(22)
)

func newLedger(t *testing.T) (usagedomain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&usagedomain.UsageEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: clk,
		Repo:  usagerepository.Provide(),
	})
	return svc, db
}

func TestCreditAccumulates(t *testing.T) {
	svc, db := newLedger(t)
	ctx := context.Background()
	takenAt := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	if err := svc.Credit(ctx, db, orgID, memberID, "2026-05", 7, takenAt); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Credit(ctx, db, orgID, memberID, "2026-05", 3, takenAt.AddDate(0, 0, 10)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	count, err := svc.MonthCount(ctx, db, orgID, memberID, "2026-05")
	if err != nil {
		t.Fatalf("month count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	stats, err := svc.MemberStats(ctx, orgID, memberID, "2026-05", 3)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MonthDays != 10 {
		t.Fatalf("month days = %d, want 10", stats.MonthDays)
	}
	if stats.RemainingQuota != 1 {
		t.Fatalf("remaining quota = %d, want 1", stats.RemainingQuota)
	}
	if stats.LastTakenAt == nil {
		t.Fatalf("last taken at not recorded")
	}
}

func TestDebitClampsAtZero(t *testing.T) {
	svc, db := newLedger(t)
	ctx := context.Background()

	if err := svc.Credit(ctx, db, orgID, memberID, "2026-05", 3, time.Now()); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Debit(ctx, db, orgID, memberID, "2026-05", 10); err != nil {
		t.Fatalf("debit: %v", err)
	}

	stats, err := svc.MemberStats(ctx, orgID, memberID, "2026-05", 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MonthDays != 0 {
		t.Fatalf("month days = %d, want 0 after clamped debit", stats.MonthDays)
	}
	if stats.MonthCount != 0 {
		t.Fatalf("month count = %d, want 0 after debit", stats.MonthCount)
	}
}

func TestDebitReleasesQuotaSlot(t *testing.T) {
	svc, db := newLedger(t)
	ctx := context.Background()

	if err := svc.Credit(ctx, db, orgID, memberID, "2026-05", 7, time.Now()); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Credit(ctx, db, orgID, memberID, "2026-05", 3, time.Now()); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// A debit with no unused days still frees the month's slot.
	if err := svc.Debit(ctx, db, orgID, memberID, "2026-05", 0); err != nil {
		t.Fatalf("debit: %v", err)
	}
	count, err := svc.MonthCount(ctx, db, orgID, memberID, "2026-05")
	if err != nil {
		t.Fatalf("month count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 after releasing one slot", count)
	}

	stats, err := svc.MemberStats(ctx, orgID, memberID, "2026-05", 2)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MonthDays != 10 {
		t.Fatalf("month days = %d, want 10 untouched by zero-day debit", stats.MonthDays)
	}
	if stats.RemainingQuota != 1 {
		t.Fatalf("remaining quota = %d, want 1", stats.RemainingQuota)
	}
}

func TestDebitAgainstMissingMonthIsNoOp(t *testing.T) {
	svc, db := newLedger(t)
	ctx := context.Background()

	if err := svc.Debit(ctx, db, orgID, memberID, "2026-06", 5); err != nil {
		t.Fatalf("debit empty month: %v", err)
	}
	count, err := svc.MonthCount(ctx, db, orgID, memberID, "2026-06")
	if err != nil {
		t.Fatalf("month count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func TestStatsSpanMonths(t *testing.T) {
	svc, db := newLedger(t)
	ctx := context.Background()

	if err := svc.Credit(ctx, db, orgID, memberID, "2026-04", 14, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.Credit(ctx, db, orgID, memberID, "2026-05", 7, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	stats, err := svc.MemberStats(ctx, orgID, memberID, "2026-05", 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.LifetimeCount != 2 || stats.LifetimeDays != 21 {
		t.Fatalf("lifetime = %d/%d, want 2/21", stats.LifetimeCount, stats.LifetimeDays)
	}
	if stats.MonthDays != 7 {
		t.Fatalf("month days = %d, want 7", stats.MonthDays)
	}
	if stats.LastTakenAt == nil || stats.LastTakenAt.Month() != time.May {
		t.Fatalf("last taken at = %v, want the May credit", stats.LastTakenAt)
	}
}
