package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leavehub/internal/clock"
	"github.com/smallbiznis/leavehub/internal/eligibility"
	leavedomain "github.com/smallbiznis/leavehub/internal/leave/domain"
	obsmetrics "github.com/smallbiznis/leavehub/internal/observability/metrics"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
	"github.com/smallbiznis/leavehub/internal/providers/notify"
	"github.com/smallbiznis/leavehub/internal/providers/roles"
	usagedomain "github.com/smallbiznis/leavehub/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	calendar clock.Calendar
	repo     leavedomain.Repository

	settingssvc orgsettingsdomain.Service
	ledger      usagedomain.Ledger
	roles       roles.Provider
	sink        notify.Sink
	metrics     *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Calendar clock.Calendar
	Repo     leavedomain.Repository

	Settingssvc orgsettingsdomain.Service
	Ledger      usagedomain.Ledger
	Roles       roles.Provider
	Sink        notify.Sink
	Metrics     *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) leavedomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("leave.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		calendar: p.Calendar,
		repo:     p.Repo,

		settingssvc: p.Settingssvc,
		ledger:      p.Ledger,
		roles:       p.Roles,
		sink:        p.Sink,
		metrics:     p.Metrics,
	}
}

// Submit implements domain.Service.
func (s *Service) Submit(ctx context.Context, req leavedomain.SubmitRequest) (*leavedomain.LeaveRequest, error) {
	if req.OrgID == 0 {
		return nil, leavedomain.ErrInvalidOrganization
	}
	if req.MemberID == 0 {
		return nil, leavedomain.ErrInvalidMember
	}

	start, err := s.calendar.ParseDate(req.StartDate)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := s.calendar.Today(now)
	if !start.After(today) {
		return nil, leavedomain.ErrDateNotFuture
	}

	settings, err := s.settingssvc.Get(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}
	if !settings.AllowsDuration(req.Duration) {
		return nil, leavedomain.ErrInvalidDuration
	}

	memberRoles, err := s.roles.MemberRoles(ctx, req.OrgID, req.MemberID)
	if err != nil {
		return nil, err
	}

	var created *leavedomain.LeaveRequest
	err = s.db.Transaction(func(tx *gorm.DB) error {
		monthCount, err := s.ledger.MonthCount(ctx, tx, req.OrgID, req.MemberID, s.calendar.MonthKey(now))
		if err != nil {
			return err
		}
		if err := eligibility.CanSubmit(memberRoles, settings, monthCount); err != nil {
			return err
		}

		request := &leavedomain.LeaveRequest{
			ID:           s.genID.Generate(),
			OrgID:        req.OrgID,
			MemberID:     req.MemberID,
			Status:       leavedomain.StatusPending,
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, req.Duration),
			DurationDays: req.Duration,
			Reason:       req.Reason,
			Contact:      req.Contact,
			AutoCloseAt:  now.Add(settings.AutoCloseAfter()),
			SavedRoles:   datatypes.JSONSlice[int64]{},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Insert(ctx, tx, request); err != nil {
			return err
		}
		created = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSubmission(ctx, strconv.FormatInt(int64(req.OrgID), 10))
	s.notify(ctx, notify.Event{
		Type:      notify.EventSubmitted,
		OrgID:     created.OrgID,
		MemberID:  created.MemberID,
		RequestID: created.ID,
	})
	s.log.Info("leave request submitted",
		zap.Int64("org_id", int64(created.OrgID)),
		zap.Int64("request_id", int64(created.ID)),
		zap.Int("duration_days", created.DurationDays),
	)
	return created, nil
}

// Approve implements domain.Service.
func (s *Service) Approve(ctx context.Context, req leavedomain.ReviewRequest) (*leavedomain.LeaveRequest, error) {
	if _, err := s.reviewerGate(ctx, req.OrgID, req.ReviewerID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return s.transition(ctx, req.OrgID, req.RequestID, leavedomain.StatusApproved, notify.EventApproved, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		reviewer := req.ReviewerID
		request.ReviewerID = &reviewer
		request.ReviewedAt = &now
		if req.Comment != "" {
			comment := req.Comment
			request.ReviewComment = &comment
		}
		return s.ledger.Credit(ctx, tx, request.OrgID, request.MemberID, s.calendar.MonthKey(now), request.DurationDays, now)
	})
}

// Deny implements domain.Service.
func (s *Service) Deny(ctx context.Context, req leavedomain.ReviewRequest) (*leavedomain.LeaveRequest, error) {
	if _, err := s.reviewerGate(ctx, req.OrgID, req.ReviewerID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return s.transition(ctx, req.OrgID, req.RequestID, leavedomain.StatusDenied, notify.EventDenied, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		reviewer := req.ReviewerID
		request.ReviewerID = &reviewer
		request.ReviewedAt = &now
		if req.Comment != "" {
			reason := req.Comment
			request.DenyReason = &reason
		}
		return nil
	})
}

// AutoClose implements domain.Service. It only fires once the pending
// request has sat unreviewed past its deadline.
func (s *Service) AutoClose(ctx context.Context, orgID, requestID snowflake.ID) (*leavedomain.LeaveRequest, error) {
	now := s.clock.Now()
	return s.transition(ctx, orgID, requestID, leavedomain.StatusAutoClosed, notify.EventAutoClosed, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		if now.Before(request.AutoCloseAt) {
			return leavedomain.ErrInvalidTransition
		}
		request.AutoClosedAt = &now
		return nil
	})
}

// Activate implements domain.Service. The role grant happens before the
// status commit: a failed grant leaves the row APPROVED and the next
// reconciliation pass retries.
func (s *Service) Activate(ctx context.Context, orgID, requestID snowflake.ID) (*leavedomain.LeaveRequest, error) {
	settings, err := s.settingssvc.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := s.calendar.Today(now)
	return s.transition(ctx, orgID, requestID, leavedomain.StatusActive, notify.EventActivated, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		if today.Before(request.StartDate) {
			return leavedomain.ErrInvalidTransition
		}

		if settings.VacationRole != 0 {
			current, err := s.roles.MemberRoles(ctx, request.OrgID, request.MemberID)
			if err != nil {
				return obsmetrics.MarkExternalEffect(err)
			}
			snapshot := withoutRole(current, settings.VacationRole)
			if err := s.roles.GrantRole(ctx, request.OrgID, request.MemberID, settings.VacationRole); err != nil {
				return obsmetrics.MarkExternalEffect(err)
			}
			request.SavedRoles = datatypes.JSONSlice[int64](snapshot)
		}

		request.ActivatedAt = &now
		return nil
	})
}

// Expire implements domain.Service.
func (s *Service) Expire(ctx context.Context, orgID, requestID snowflake.ID) (*leavedomain.LeaveRequest, error) {
	settings, err := s.settingssvc.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := s.calendar.Today(now)
	return s.transition(ctx, orgID, requestID, leavedomain.StatusExpired, notify.EventExpired, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		if today.Before(request.EndDate) {
			return leavedomain.ErrInvalidTransition
		}
		if err := s.restoreRoles(ctx, settings, request); err != nil {
			return err
		}
		request.ExpiredAt = &now
		return nil
	})
}

// EarlyReturn implements domain.Service. Unused days flow back to the
// ledger so a member cut short keeps their quota for the month.
func (s *Service) EarlyReturn(ctx context.Context, req leavedomain.ReturnRequest) (*leavedomain.LeaveRequest, error) {
	settings, err := s.settingssvc.Get(ctx, req.OrgID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := s.calendar.Today(now)
	updated, err := s.transition(ctx, req.OrgID, req.RequestID, leavedomain.StatusEarlyReturned, notify.EventEarlyReturned, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		if req.InitiatorID != request.MemberID {
			initiatorRoles, err := s.roles.MemberRoles(ctx, request.OrgID, req.InitiatorID)
			if err != nil {
				return err
			}
			if !eligibility.IsReviewer(initiatorRoles, settings) {
				return eligibility.ErrReviewerNotAuthorized
			}
		}

		if err := s.restoreRoles(ctx, settings, request); err != nil {
			return err
		}

		elapsed := clock.DaysBetween(request.StartDate, today)
		if elapsed < 0 {
			elapsed = 0
		}
		unused := request.DurationDays - elapsed
		if unused < 0 {
			unused = 0
		}
		if unused > request.DurationDays {
			unused = request.DurationDays
		}
		if err := s.ledger.Debit(ctx, tx, request.OrgID, request.MemberID, s.creditPeriod(request, now), unused); err != nil {
			return err
		}
		if unused > 0 {
			s.metrics.RecordLedgerDebit(ctx, "early_return")
		}

		initiator := req.InitiatorID
		request.EarlyReturnedAt = &now
		request.EarlyReturnedBy = &initiator
		return nil
	})
	return updated, err
}

// Recall implements domain.Service. An approved leave can only be pulled
// back before it starts; the full duration flows back to the ledger.
func (s *Service) Recall(ctx context.Context, req leavedomain.ReviewRequest) (*leavedomain.LeaveRequest, error) {
	if _, err := s.reviewerGate(ctx, req.OrgID, req.ReviewerID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := s.calendar.Today(now)
	return s.transition(ctx, req.OrgID, req.RequestID, leavedomain.StatusRecalled, notify.EventRecalled, func(tx *gorm.DB, request *leavedomain.LeaveRequest) error {
		if !today.Before(request.StartDate) {
			return leavedomain.ErrRecallTooLate
		}
		if err := s.ledger.Debit(ctx, tx, request.OrgID, request.MemberID, s.creditPeriod(request, now), request.DurationDays); err != nil {
			return err
		}
		s.metrics.RecordLedgerDebit(ctx, "recall")

		reviewer := req.ReviewerID
		request.RecalledAt = &now
		request.RecalledBy = &reviewer
		return nil
	})
}

// MarkReminderSent implements domain.Service. The flag is a side
// annotation, not a status change, and is set at most once.
func (s *Service) MarkReminderSent(ctx context.Context, orgID, requestID snowflake.ID) (*leavedomain.LeaveRequest, error) {
	now := s.clock.Now()

	var updated *leavedomain.LeaveRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		request, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return leavedomain.ErrRequestNotFound
		}
		if request.Status != leavedomain.StatusActive || request.ReminderSent {
			return leavedomain.ErrInvalidTransition
		}

		request.ReminderSent = true
		request.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, request); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.Event{
		Type:      notify.EventReminder,
		OrgID:     updated.OrgID,
		MemberID:  updated.MemberID,
		RequestID: updated.ID,
	})
	return updated, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, req leavedomain.ListRequest) ([]leavedomain.LeaveRequest, error) {
	if req.OrgID == 0 {
		return nil, leavedomain.ErrInvalidOrganization
	}
	return s.repo.List(ctx, s.db, req)
}

// ActiveRoster implements domain.Service.
func (s *Service) ActiveRoster(ctx context.Context, orgID snowflake.ID) ([]leavedomain.LeaveRequest, error) {
	if orgID == 0 {
		return nil, leavedomain.ErrInvalidOrganization
	}
	return s.repo.ListActiveByEndDate(ctx, s.db, orgID)
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, orgID, requestID snowflake.ID) (*leavedomain.LeaveRequest, error) {
	request, err := s.repo.FindByID(ctx, s.db, orgID, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, leavedomain.ErrRequestNotFound
	}
	return request, nil
}

// transition runs the shared lock-check-mutate-commit cycle. The apply
// callback runs with the row locked and may veto the transition.
func (s *Service) transition(ctx context.Context, orgID, requestID snowflake.ID, to leavedomain.Status, event string, apply func(tx *gorm.DB, request *leavedomain.LeaveRequest) error) (*leavedomain.LeaveRequest, error) {
	if orgID == 0 {
		return nil, leavedomain.ErrInvalidOrganization
	}
	if requestID == 0 {
		return nil, leavedomain.ErrInvalidRequestID
	}

	var updated *leavedomain.LeaveRequest
	var from leavedomain.Status
	err := s.db.Transaction(func(tx *gorm.DB) error {
		request, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return leavedomain.ErrRequestNotFound
		}
		if !leavedomain.IsTransitionAllowed(request.Status, to) {
			return leavedomain.ErrInvalidTransition
		}
		from = request.Status

		if err := apply(tx, request); err != nil {
			return err
		}

		request.Status = to
		request.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, request); err != nil {
			return err
		}
		updated = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	obsmetrics.Scheduler().IncRequestTransition(string(from), string(to))
	s.metrics.RecordTransition(ctx, strconv.FormatInt(int64(orgID), 10), string(to))
	s.notify(ctx, notify.Event{
		Type:      event,
		OrgID:     updated.OrgID,
		MemberID:  updated.MemberID,
		RequestID: updated.ID,
	})
	s.log.Info("leave request transitioned",
		zap.Int64("org_id", int64(updated.OrgID)),
		zap.Int64("request_id", int64(updated.ID)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	return updated, nil
}

// restoreRoles revokes the vacation role and re-adds any snapshot roles
// the member lost during the leave. Roles granted externally while the
// leave ran are left untouched. Failures are tagged as external effects
// so the pass classifier treats them as retryable.
func (s *Service) restoreRoles(ctx context.Context, settings *orgsettingsdomain.OrgSettings, request *leavedomain.LeaveRequest) error {
	if settings.VacationRole == 0 {
		return nil
	}
	if err := s.roles.RevokeRole(ctx, request.OrgID, request.MemberID, settings.VacationRole); err != nil {
		return obsmetrics.MarkExternalEffect(err)
	}
	current, err := s.roles.MemberRoles(ctx, request.OrgID, request.MemberID)
	if err != nil {
		return obsmetrics.MarkExternalEffect(err)
	}
	held := make(map[int64]struct{}, len(current))
	for _, id := range current {
		held[id] = struct{}{}
	}
	for _, id := range request.SavedRoles {
		if id == settings.VacationRole {
			continue
		}
		if _, ok := held[id]; ok {
			continue
		}
		if err := s.roles.GrantRole(ctx, request.OrgID, request.MemberID, id); err != nil {
			return obsmetrics.MarkExternalEffect(err)
		}
	}
	return nil
}

func (s *Service) reviewerGate(ctx context.Context, orgID, reviewerID snowflake.ID) (*orgsettingsdomain.OrgSettings, error) {
	if orgID == 0 {
		return nil, leavedomain.ErrInvalidOrganization
	}
	if reviewerID == 0 {
		return nil, leavedomain.ErrInvalidMember
	}
	settings, err := s.settingssvc.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	reviewerRoles, err := s.roles.MemberRoles(ctx, orgID, reviewerID)
	if err != nil {
		return nil, err
	}
	if !eligibility.IsReviewer(reviewerRoles, settings) {
		return nil, eligibility.ErrReviewerNotAuthorized
	}
	return settings, nil
}

// creditPeriod resolves the month bucket the approval credited, so the
// debit lands in the same bucket.
func (s *Service) creditPeriod(request *leavedomain.LeaveRequest, now time.Time) string {
	if request.ReviewedAt != nil {
		return s.calendar.MonthKey(*request.ReviewedAt)
	}
	return s.calendar.MonthKey(now)
}

func (s *Service) notify(ctx context.Context, event notify.Event) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Notify(ctx, event); err != nil {
		s.log.Warn("notification sink failed",
			zap.String("event", event.Type),
			zap.Int64("request_id", int64(event.RequestID)),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordNotification(ctx, event.Type)
}

func withoutRole(roleIDs []int64, drop int64) []int64 {
	out := make([]int64, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id == drop {
			continue
		}
		out = append(out, id)
	}
	return out
}
