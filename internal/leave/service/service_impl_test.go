package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/leavehub/internal/clock"
	"github.com/smallbiznis/leavehub/internal/eligibility"
	leavedomain "github.com/smallbiznis/leavehub/internal/leave/domain"
	leaverepository "github.com/smallbiznis/leavehub/internal/leave/repository"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	"github.com/smallbiznis/leavehub/internal/providers/notify"
	"github.com/smallbiznis/leavehub/internal/providers/roles"
	usagedomain "github.com/smallbiznis/leavehub/internal/usage/domain"
	usagerepository "github.com/smallbiznis/leavehub/internal/usage/repository"
	usageservice "github.com/smallbiznis/leavehub/internal/usage/service"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	testOrgID        = snowflake.ID(1001)
	testMemberID     = snowflake.ID(2002)
	testReviewerID   = snowflake.ID(3003)
	testBannedID     = snowflake.ID(4004)
	reviewerRoleID   = int64(100)
	bannedRoleID     = int64(666)
	vacationRoleID   = int64(999)
	memberBaseRoleID = int64(10)
)

type mockSettingsService struct {
	settings *orgsettingsdomain.OrgSettings
}

func (m *mockSettingsService) Get(ctx context.Context, orgID snowflake.ID) (*orgsettingsdomain.OrgSettings, error) {
	return m.settings, nil
}

func (m *mockSettingsService) Update(ctx context.Context, req orgsettingsdomain.UpdateSettingsRequest) (*orgsettingsdomain.OrgSettings, error) {
	return m.settings, nil
}

type harness struct {
	svc      leavedomain.Service
	db       *gorm.DB
	clk      *clock.FakeClock
	cal      clock.Calendar
	dir      *roles.Directory
	usage    usagedomain.Service
	settings *orgsettingsdomain.OrgSettings
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&leavedomain.LeaveRequest{}, &usagedomain.UsageEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(now)
	cal := clock.NewCalendar("UTC")
	logger := zap.NewNop()

	settings := &orgsettingsdomain.OrgSettings{
		OrgID:            testOrgID,
		QuotaPerMonth:    1,
		AutoCloseHours:   24,
		AllowedDurations: datatypes.JSONSlice[int]{3, 7, 14},
		ReviewerRoles:    datatypes.JSONSlice[int64]{reviewerRoleID},
		BannedRoles:      datatypes.JSONSlice[int64]{bannedRoleID},
		MinRankRoles:     datatypes.JSONSlice[int64]{},
		VacationRole:     vacationRoleID,
	}

	dir := roles.NewDirectory()
	dir.SeedMember(testOrgID, testMemberID, []int64{memberBaseRoleID, 20})
	dir.SeedMember(testOrgID, testReviewerID, []int64{reviewerRoleID})
	dir.SeedMember(testOrgID, testBannedID, []int64{bannedRoleID})

	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB:    db,
		Log:   logger,
		Clock: clk,
		Repo:  usagerepository.Provide(),
	})

	svc := NewService(ServiceParam{
		DB:          db,
		Log:         logger,
		GenID:       node,
		Clock:       clk,
		Calendar:    cal,
		Repo:        leaverepository.Provide(),
		Settingssvc: &mockSettingsService{settings: settings},
		Ledger:      usageSvc,
		Roles:       dir,
		Sink:        notify.NoOpSink{},
	})

	return &harness{
		svc:      svc,
		db:       db,
		clk:      clk,
		cal:      cal,
		dir:      dir,
		usage:    usageSvc,
		settings: settings,
	}
}

// Base time: the morning before the leave starts.
var baseTime = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

func submit(t *testing.T, h *harness, memberID snowflake.ID) *leavedomain.LeaveRequest {
	t.Helper()
	created, err := h.svc.Submit(context.Background(), leavedomain.SubmitRequest{
		OrgID:     testOrgID,
		MemberID:  memberID,
		StartDate: "2026-03-10",
		Duration:  7,
		Reason:    "family trip",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return created
}

func approve(t *testing.T, h *harness, requestID snowflake.ID) *leavedomain.LeaveRequest {
	t.Helper()
	updated, err := h.svc.Approve(context.Background(), leavedomain.ReviewRequest{
		OrgID:      testOrgID,
		RequestID:  requestID,
		ReviewerID: testReviewerID,
		Comment:    "enjoy",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return updated
}

func memberRoles(t *testing.T, h *harness, memberID snowflake.ID) []int64 {
	t.Helper()
	current, err := h.dir.MemberRoles(context.Background(), testOrgID, memberID)
	if err != nil {
		t.Fatalf("member roles: %v", err)
	}
	return current
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)

	if created.Status != leavedomain.StatusPending {
		t.Fatalf("status = %s, want PENDING", created.Status)
	}
	wantStart := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !created.StartDate.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", created.StartDate, wantStart)
	}
	if !created.EndDate.Equal(wantStart.AddDate(0, 0, 7)) {
		t.Fatalf("end = %v, want start+7d", created.EndDate)
	}
	if !created.AutoCloseAt.Equal(baseTime.Add(24 * time.Hour)) {
		t.Fatalf("auto_close_at = %v, want submit+24h", created.AutoCloseAt)
	}
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, baseTime)
	ctx := context.Background()

	cases := []struct {
		name    string
		req     leavedomain.SubmitRequest
		wantErr error
	}{
		{
			name:    "malformed date",
			req:     leavedomain.SubmitRequest{OrgID: testOrgID, MemberID: testMemberID, StartDate: "soon", Duration: 7},
			wantErr: clock.ErrInvalidDate,
		},
		{
			name:    "start today",
			req:     leavedomain.SubmitRequest{OrgID: testOrgID, MemberID: testMemberID, StartDate: "2026-03-09", Duration: 7},
			wantErr: leavedomain.ErrDateNotFuture,
		},
		{
			name:    "disallowed duration",
			req:     leavedomain.SubmitRequest{OrgID: testOrgID, MemberID: testMemberID, StartDate: "2026-03-10", Duration: 5},
			wantErr: leavedomain.ErrInvalidDuration,
		},
		{
			name:    "banned role",
			req:     leavedomain.SubmitRequest{OrgID: testOrgID, MemberID: testBannedID, StartDate: "2026-03-10", Duration: 7},
			wantErr: eligibility.ErrRoleBanned,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Submit(ctx, tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestQuotaEnforcedAtSubmissionOnly(t *testing.T) {
	h := newHarness(t, baseTime)
	ctx := context.Background()

	first := submit(t, h, testMemberID)

	// A second pending request is allowed; the quota counts approvals.
	second, err := h.svc.Submit(ctx, leavedomain.SubmitRequest{
		OrgID: testOrgID, MemberID: testMemberID, StartDate: "2026-03-20", Duration: 3,
	})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	approve(t, h, first.ID)

	// Quota is now spent, so a third submission fails.
	_, err = h.svc.Submit(ctx, leavedomain.SubmitRequest{
		OrgID: testOrgID, MemberID: testMemberID, StartDate: "2026-03-25", Duration: 3,
	})
	if !errors.Is(err, eligibility.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want quota exceeded", err)
	}

	// But the already-pending request can still be approved.
	if _, err := h.svc.Deny(ctx, leavedomain.ReviewRequest{
		OrgID: testOrgID, RequestID: second.ID, ReviewerID: testReviewerID,
	}); err != nil {
		t.Fatalf("deny pending after quota spent: %v", err)
	}
}

func TestApproveCreditsLedger(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	updated := approve(t, h, created.ID)

	if updated.Status != leavedomain.StatusApproved {
		t.Fatalf("status = %s, want APPROVED", updated.Status)
	}
	if updated.ReviewerID == nil || *updated.ReviewerID != testReviewerID {
		t.Fatalf("reviewer not recorded")
	}
	if updated.ReviewedAt == nil {
		t.Fatalf("reviewed_at not set")
	}

	count, err := h.usage.MonthCount(context.Background(), h.db, testOrgID, testMemberID, h.cal.MonthKey(baseTime))
	if err != nil {
		t.Fatalf("month count: %v", err)
	}
	if count != 1 {
		t.Fatalf("month count = %d, want 1", count)
	}
}

func TestApproveRequiresReviewerRole(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)

	_, err := h.svc.Approve(context.Background(), leavedomain.ReviewRequest{
		OrgID: testOrgID, RequestID: created.ID, ReviewerID: testMemberID,
	})
	if !errors.Is(err, eligibility.ErrReviewerNotAuthorized) {
		t.Fatalf("err = %v, want reviewer not authorized", err)
	}
}

func TestDenyLeavesLedgerUntouched(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)

	updated, err := h.svc.Deny(context.Background(), leavedomain.ReviewRequest{
		OrgID: testOrgID, RequestID: created.ID, ReviewerID: testReviewerID, Comment: "short staffed",
	})
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if updated.Status != leavedomain.StatusDenied {
		t.Fatalf("status = %s, want DENIED", updated.Status)
	}
	if updated.DenyReason == nil || *updated.DenyReason != "short staffed" {
		t.Fatalf("deny reason not recorded")
	}

	count, err := h.usage.MonthCount(context.Background(), h.db, testOrgID, testMemberID, h.cal.MonthKey(baseTime))
	if err != nil {
		t.Fatalf("month count: %v", err)
	}
	if count != 0 {
		t.Fatalf("month count = %d, want 0", count)
	}
}

func TestAutoCloseOnlyPastDeadline(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	ctx := context.Background()

	if _, err := h.svc.AutoClose(ctx, testOrgID, created.ID); !errors.Is(err, leavedomain.ErrInvalidTransition) {
		t.Fatalf("auto close before deadline: err = %v, want invalid transition", err)
	}

	h.clk.Advance(25 * time.Hour)
	updated, err := h.svc.AutoClose(ctx, testOrgID, created.ID)
	if err != nil {
		t.Fatalf("auto close: %v", err)
	}
	if updated.Status != leavedomain.StatusAutoClosed {
		t.Fatalf("status = %s, want AUTO_CLOSED", updated.Status)
	}

	// Re-applying the transition is a rejected no-op.
	if _, err := h.svc.AutoClose(ctx, testOrgID, created.ID); !errors.Is(err, leavedomain.ErrInvalidTransition) {
		t.Fatalf("second auto close: err = %v, want invalid transition", err)
	}
}

func hasRole(roleIDs []int64, want int64) bool {
	for _, id := range roleIDs {
		if id == want {
			return true
		}
	}
	return false
}

func TestActivateGrantsVacationRole(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	// No time travel: activation before the start date is vetoed.
	if _, err := h.svc.Activate(ctx, testOrgID, created.ID); !errors.Is(err, leavedomain.ErrInvalidTransition) {
		t.Fatalf("early activate: err = %v, want invalid transition", err)
	}

	h.clk.Set(time.Date(2026, 3, 10, 0, 30, 0, 0, time.UTC))
	updated, err := h.svc.Activate(ctx, testOrgID, created.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if updated.Status != leavedomain.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", updated.Status)
	}

	// The grant is additive: existing roles stay in place.
	got := memberRoles(t, h, testMemberID)
	if len(got) != 3 || !hasRole(got, vacationRoleID) {
		t.Fatalf("roles after activate = %v, want base roles plus %d", got, vacationRoleID)
	}
	if !hasRole(got, memberBaseRoleID) || !hasRole(got, 20) {
		t.Fatalf("roles after activate = %v, base roles must survive", got)
	}
	if len(updated.SavedRoles) != 2 {
		t.Fatalf("saved roles = %v, want original snapshot", updated.SavedRoles)
	}
}

func TestExpireRestoresRoles(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	if _, err := h.svc.Activate(ctx, testOrgID, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// No time travel: expiry before the end date is vetoed.
	if _, err := h.svc.Expire(ctx, testOrgID, created.ID); !errors.Is(err, leavedomain.ErrInvalidTransition) {
		t.Fatalf("early expire: err = %v, want invalid transition", err)
	}

	h.clk.Set(time.Date(2026, 3, 17, 1, 0, 0, 0, time.UTC))
	updated, err := h.svc.Expire(ctx, testOrgID, created.ID)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if updated.Status != leavedomain.StatusExpired {
		t.Fatalf("status = %s, want EXPIRED", updated.Status)
	}

	got := memberRoles(t, h, testMemberID)
	if len(got) != 2 {
		t.Fatalf("roles after expire = %v, want restored snapshot", got)
	}
	if hasRole(got, vacationRoleID) {
		t.Fatalf("vacation role still present after expire: %v", got)
	}
}

func TestExpireKeepsMidLeaveGrants(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	if _, err := h.svc.Activate(ctx, testOrgID, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// A role granted while the member is away must survive deactivation.
	const promotedRoleID = int64(555)
	if err := h.dir.GrantRole(ctx, testOrgID, testMemberID, promotedRoleID); err != nil {
		t.Fatalf("grant: %v", err)
	}

	h.clk.Set(time.Date(2026, 3, 17, 1, 0, 0, 0, time.UTC))
	if _, err := h.svc.Expire(ctx, testOrgID, created.ID); err != nil {
		t.Fatalf("expire: %v", err)
	}

	got := memberRoles(t, h, testMemberID)
	if !hasRole(got, promotedRoleID) {
		t.Fatalf("roles after expire = %v, mid-leave grant %d lost", got, promotedRoleID)
	}
	if !hasRole(got, memberBaseRoleID) || !hasRole(got, 20) {
		t.Fatalf("roles after expire = %v, snapshot not restored", got)
	}
	if hasRole(got, vacationRoleID) {
		t.Fatalf("vacation role still present after expire: %v", got)
	}
}

func TestEarlyReturnDebitsUnusedDays(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	if _, err := h.svc.Activate(ctx, testOrgID, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	// Return after 3 of 7 days: 4 unused days flow back.
	h.clk.Set(time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC))
	updated, err := h.svc.EarlyReturn(ctx, leavedomain.ReturnRequest{
		OrgID: testOrgID, RequestID: created.ID, InitiatorID: testMemberID,
	})
	if err != nil {
		t.Fatalf("early return: %v", err)
	}
	if updated.Status != leavedomain.StatusEarlyReturned {
		t.Fatalf("status = %s, want EARLY_RETURNED", updated.Status)
	}

	stats, err := h.usage.MemberStats(ctx, testOrgID, testMemberID, h.cal.MonthKey(baseTime), h.settings.QuotaPerMonth)
	if err != nil {
		t.Fatalf("member stats: %v", err)
	}
	if stats.MonthDays != 3 {
		t.Fatalf("month days = %d, want 3", stats.MonthDays)
	}
	if stats.MonthCount != 0 {
		t.Fatalf("month count = %d, want quota slot released", stats.MonthCount)
	}
	if got := memberRoles(t, h, testMemberID); len(got) != 2 {
		t.Fatalf("roles after early return = %v, want restored snapshot", got)
	}
}

func TestEarlyReturnByStrangerRejected(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if _, err := h.svc.Activate(ctx, testOrgID, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	_, err := h.svc.EarlyReturn(ctx, leavedomain.ReturnRequest{
		OrgID: testOrgID, RequestID: created.ID, InitiatorID: testBannedID,
	})
	if !errors.Is(err, eligibility.ErrReviewerNotAuthorized) {
		t.Fatalf("err = %v, want reviewer not authorized", err)
	}
}

func TestRecallBeforeStartDebitsFullDuration(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	updated, err := h.svc.Recall(ctx, leavedomain.ReviewRequest{
		OrgID: testOrgID, RequestID: created.ID, ReviewerID: testReviewerID,
	})
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if updated.Status != leavedomain.StatusRecalled {
		t.Fatalf("status = %s, want RECALLED", updated.Status)
	}

	stats, err := h.usage.MemberStats(ctx, testOrgID, testMemberID, h.cal.MonthKey(baseTime), h.settings.QuotaPerMonth)
	if err != nil {
		t.Fatalf("member stats: %v", err)
	}
	if stats.MonthDays != 0 {
		t.Fatalf("month days = %d, want 0 after full debit", stats.MonthDays)
	}
	if stats.MonthCount != 0 {
		t.Fatalf("month count = %d, want quota slot released", stats.MonthCount)
	}
}

func TestRecallFreesQuotaForResubmission(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	if _, err := h.svc.Recall(ctx, leavedomain.ReviewRequest{
		OrgID: testOrgID, RequestID: created.ID, ReviewerID: testReviewerID,
	}); err != nil {
		t.Fatalf("recall: %v", err)
	}

	count, err := h.usage.MonthCount(ctx, h.db, testOrgID, testMemberID, h.cal.MonthKey(baseTime))
	if err != nil {
		t.Fatalf("month count: %v", err)
	}
	if count != 0 {
		t.Fatalf("month count after recall = %d, want 0", count)
	}

	// With quota 1, the freed slot lets the member submit again.
	if _, err := h.svc.Submit(ctx, leavedomain.SubmitRequest{
		OrgID: testOrgID, MemberID: testMemberID, StartDate: "2026-03-20", Duration: 3,
	}); err != nil {
		t.Fatalf("resubmit after recall: %v", err)
	}
}

func TestRecallAfterStartRejected(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	_, err := h.svc.Recall(context.Background(), leavedomain.ReviewRequest{
		OrgID: testOrgID, RequestID: created.ID, ReviewerID: testReviewerID,
	})
	if !errors.Is(err, leavedomain.ErrRecallTooLate) {
		t.Fatalf("err = %v, want recall too late", err)
	}
}

func TestMarkReminderSentOnce(t *testing.T) {
	h := newHarness(t, baseTime)
	created := submit(t, h, testMemberID)
	approve(t, h, created.ID)
	ctx := context.Background()

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	if _, err := h.svc.Activate(ctx, testOrgID, created.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	updated, err := h.svc.MarkReminderSent(ctx, testOrgID, created.ID)
	if err != nil {
		t.Fatalf("mark reminder: %v", err)
	}
	if !updated.ReminderSent {
		t.Fatalf("reminder_sent not set")
	}
	if updated.Status != leavedomain.StatusActive {
		t.Fatalf("status changed by reminder: %s", updated.Status)
	}

	if _, err := h.svc.MarkReminderSent(ctx, testOrgID, created.ID); !errors.Is(err, leavedomain.ErrInvalidTransition) {
		t.Fatalf("second reminder: err = %v, want invalid transition", err)
	}
}

func TestActiveRosterSortedByEndDate(t *testing.T) {
	h := newHarness(t, baseTime)
	ctx := context.Background()

	// Quota of 2 so both members' approvals fit their shared month.
	h.settings.QuotaPerMonth = 2
	other := snowflake.ID(5005)
	h.dir.SeedMember(testOrgID, other, []int64{memberBaseRoleID})

	long := submit(t, h, testMemberID)
	short, err := h.svc.Submit(ctx, leavedomain.SubmitRequest{
		OrgID: testOrgID, MemberID: other, StartDate: "2026-03-10", Duration: 3,
	})
	if err != nil {
		t.Fatalf("submit short: %v", err)
	}
	approve(t, h, long.ID)
	approve(t, h, short.ID)

	h.clk.Set(time.Date(2026, 3, 10, 1, 0, 0, 0, time.UTC))
	if _, err := h.svc.Activate(ctx, testOrgID, long.ID); err != nil {
		t.Fatalf("activate long: %v", err)
	}
	if _, err := h.svc.Activate(ctx, testOrgID, short.ID); err != nil {
		t.Fatalf("activate short: %v", err)
	}

	roster, err := h.svc.ActiveRoster(ctx, testOrgID)
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster size = %d, want 2", len(roster))
	}
	if roster[0].ID != short.ID {
		t.Fatalf("roster not sorted by end date: first = %d", roster[0].ID)
	}
}
