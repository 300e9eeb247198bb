// Package scheduler advances leave requests as a pure function of
// wall-clock time. Each pass re-derives its work set from the database,
// so re-running a pass is always safe.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leavehub/internal/clock"
	appconfig "github.com/smallbiznis/leavehub/internal/config"
	leavedomain "github.com/smallbiznis/leavehub/internal/leave/domain"
	obsmetrics "github.com/smallbiznis/leavehub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

const (
	PassLifecycle = "lifecycle"
	PassReminder  = "reminder"
	PassAutoClose = "auto_close"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	LeaveSvc  leavedomain.Service
	LeaveRepo leavedomain.Repository

	GenID    *snowflake.Node
	Clock    clock.Clock
	Calendar clock.Calendar
	Config   Config                           `optional:"true"`
	Policy   *appconfig.SchedulerPolicyHolder `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	calendar  clock.Calendar
	leaveSvc  leavedomain.Service
	leaveRepo leavedomain.Repository
	policy    *appconfig.SchedulerPolicyHolder

	locks orgLocks
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.LeaveSvc == nil || p.LeaveRepo == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		calendar:  p.Calendar,
		leaveSvc:  p.LeaveSvc,
		leaveRepo: p.LeaveRepo,
		policy:    p.Policy,
		locks:     newOrgLocks(),
	}, nil
}

func (s *Scheduler) runPass(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensurePassRun(ctx, name)
	if owner {
		s.logPassStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("pass", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncPassRun(name)

	err := fn(ctx)
	schedMetrics.ObservePassDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logPassFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft stop: the remaining work is re-derived on the
	// next tick, so it never bubbles up as a run failure.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncPassTimeout(name)
	}
	schedMetrics.IncPassError(name, err)
	if isTimeout {
		log.Warn("pass timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled pass a single time.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	passes := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{PassLifecycle, s.isPassEnabled(PassLifecycle), func(ctx context.Context) error {
			return s.runPass(ctx, PassLifecycle, s.cfg.PassTimeout, s.LifecyclePass)
		}},
		{PassReminder, s.isPassEnabled(PassReminder), func(ctx context.Context) error {
			return s.runPass(ctx, PassReminder, s.cfg.PassTimeout, s.ReminderPass)
		}},
		{PassAutoClose, s.isPassEnabled(PassAutoClose), func(ctx context.Context) error {
			return s.runPass(ctx, PassAutoClose, s.cfg.PassTimeout, s.AutoClosePass)
		}},
	}

	for _, pass := range passes {
		if pass.Enabled {
			err = errors.Join(err, pass.Run(parent))
		}
	}

	return err
}

// RunForever drives each pass off its own ticker until the context is done.
func (s *Scheduler) RunForever(ctx context.Context) {
	lifecycle := time.NewTicker(s.cfg.LifecycleInterval)
	defer lifecycle.Stop()
	reminder := time.NewTicker(s.cfg.ReminderInterval)
	defer reminder.Stop()
	autoClose := time.NewTicker(s.cfg.AutoCloseInterval)
	defer autoClose.Stop()

	schedMetrics := obsmetrics.Scheduler()
	run := func(name string, fn func(context.Context) error, tickAt time.Time) {
		lag := time.Since(tickAt)
		if lag > 0 {
			schedMetrics.ObserveRunLoopLag(lag)
		}
		if err := s.runPass(ctx, name, s.cfg.PassTimeout, fn); err != nil {
			s.log.Warn("scheduler pass failed", zap.String("pass", name), zap.Error(err))
		}
	}

	// Every pass runs once at startup so a restart never waits a full
	// interval to catch up.
	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-lifecycle.C:
			if s.isPassEnabled(PassLifecycle) {
				run(PassLifecycle, s.LifecyclePass, t)
			}
		case t := <-reminder.C:
			if s.isPassEnabled(PassReminder) {
				run(PassReminder, s.ReminderPass, t)
			}
		case t := <-autoClose.C:
			if s.isPassEnabled(PassAutoClose) {
				run(PassAutoClose, s.AutoClosePass, t)
			}
		}
	}
}

func (s *Scheduler) isPassEnabled(passName string) bool {
	enabled := s.cfg.EnabledPasses
	// The hot-reloadable policy file wins over the static config so a
	// pass can be paused without restarting the process.
	if s.policy != nil {
		enabled = s.policy.Get().EnabledPasses
	}
	// An empty list enables every pass.
	if len(enabled) == 0 {
		return true
	}
	for _, name := range enabled {
		if strings.EqualFold(name, passName) {
			return true
		}
	}
	return false
}

// LifecyclePass activates approved requests whose start date has arrived
// and expires active requests whose end date has passed.
func (s *Scheduler) LifecyclePass(ctx context.Context) error {
	ctx, run, owner := s.ensurePassRun(ctx, PassLifecycle)
	if owner {
		s.logPassStart(ctx, run)
		defer s.logPassFinish(ctx, run)
	}
	today := s.calendar.Today(s.clock.Now())

	return s.forEachOrg(ctx, PassLifecycle, run, func(orgID snowflake.ID) error {
		var orgErr error

		due, err := s.leaveRepo.ListApprovedStarting(ctx, s.db, orgID, today)
		if err != nil {
			return err
		}
		for _, request := range due {
			if ctx.Err() != nil {
				return errors.Join(orgErr, ctx.Err())
			}
			if _, err := s.leaveSvc.Activate(ctx, orgID, request.ID); err != nil {
				orgErr = errors.Join(orgErr, err)
				s.logSchedulerError(ctx, run, "scheduler.request.activate.failed", PassLifecycle, orgID, err,
					zap.String("request_id", idString(request.ID)),
				)
				continue
			}
			run.AddProcessed(1)
		}

		ended, err := s.leaveRepo.ListActiveEnded(ctx, s.db, orgID, today)
		if err != nil {
			return errors.Join(orgErr, err)
		}
		for _, request := range ended {
			if ctx.Err() != nil {
				return errors.Join(orgErr, ctx.Err())
			}
			if _, err := s.leaveSvc.Expire(ctx, orgID, request.ID); err != nil {
				orgErr = errors.Join(orgErr, err)
				s.logSchedulerError(ctx, run, "scheduler.request.expire.failed", PassLifecycle, orgID, err,
					zap.String("request_id", idString(request.ID)),
				)
				continue
			}
			run.AddProcessed(1)
		}

		return orgErr
	})
}

// ReminderPass annotates active requests with exactly one day left.
func (s *Scheduler) ReminderPass(ctx context.Context) error {
	ctx, run, owner := s.ensurePassRun(ctx, PassReminder)
	if owner {
		s.logPassStart(ctx, run)
		defer s.logPassFinish(ctx, run)
	}
	// One day remaining means end_date is tomorrow.
	tomorrow := s.calendar.Today(s.clock.Now()).AddDate(0, 0, 1)

	return s.forEachOrg(ctx, PassReminder, run, func(orgID snowflake.ID) error {
		var orgErr error

		due, err := s.leaveRepo.ListActiveNeedingReminder(ctx, s.db, orgID, tomorrow)
		if err != nil {
			return err
		}
		for _, request := range due {
			if ctx.Err() != nil {
				return errors.Join(orgErr, ctx.Err())
			}
			if _, err := s.leaveSvc.MarkReminderSent(ctx, orgID, request.ID); err != nil {
				orgErr = errors.Join(orgErr, err)
				s.logSchedulerError(ctx, run, "scheduler.request.reminder.failed", PassReminder, orgID, err,
					zap.String("request_id", idString(request.ID)),
				)
				continue
			}
			run.AddProcessed(1)
		}

		return orgErr
	})
}

// AutoClosePass closes pending requests that sat unreviewed past their
// deadline.
func (s *Scheduler) AutoClosePass(ctx context.Context) error {
	ctx, run, owner := s.ensurePassRun(ctx, PassAutoClose)
	if owner {
		s.logPassStart(ctx, run)
		defer s.logPassFinish(ctx, run)
	}
	now := s.clock.Now()

	return s.forEachOrg(ctx, PassAutoClose, run, func(orgID snowflake.ID) error {
		var orgErr error

		due, err := s.leaveRepo.ListPendingPastAutoClose(ctx, s.db, orgID, now)
		if err != nil {
			return err
		}
		for _, request := range due {
			if ctx.Err() != nil {
				return errors.Join(orgErr, ctx.Err())
			}
			if _, err := s.leaveSvc.AutoClose(ctx, orgID, request.ID); err != nil {
				orgErr = errors.Join(orgErr, err)
				s.logSchedulerError(ctx, run, "scheduler.request.auto_close.failed", PassAutoClose, orgID, err,
					zap.String("request_id", idString(request.ID)),
				)
				continue
			}
			run.AddProcessed(1)
		}

		return orgErr
	})
}

// forEachOrg fans a pass out over every organization with open requests,
// holding the per-org pass lock for the duration. A busy org is skipped
// and retried on the next tick; an org failure never aborts the others.
func (s *Scheduler) forEachOrg(ctx context.Context, pass string, run *passRun, fn func(orgID snowflake.ID) error) error {
	orgIDs, err := s.leaveRepo.ListOrgIDsWithOpenRequests(ctx, s.db)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.pass.scan.failed", pass, 0, err)
		return err
	}

	schedMetrics := obsmetrics.Scheduler()
	var passErr error
	for _, orgID := range orgIDs {
		if ctx.Err() != nil {
			return errors.Join(passErr, ctx.Err())
		}

		release, ok := s.locks.tryAcquire(pass, orgID)
		if !ok {
			schedMetrics.IncPassDeferred(pass, "org_busy")
			continue
		}
		err := fn(orgID)
		release()
		if err != nil {
			passErr = errors.Join(passErr, err)
		}
	}
	return passErr
}
