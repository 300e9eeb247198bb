package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/leavehub/internal/observability/context"
	obslogger "github.com/smallbiznis/leavehub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/leavehub/internal/observability/metrics"
	"go.uber.org/zap"
)

type passRun struct {
	pass           string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type passRunKey struct{}

func (r *passRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
	obsmetrics.Scheduler().AddPassProcessed(r.pass, count)
}

func (r *passRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) ensurePassRun(ctx context.Context, pass string) (context.Context, *passRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := passRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &passRun{
		pass:      pass,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, passRunKey{}, run)
	ctx = s.withLogContext(ctx, 0)
	return ctx, run, true
}

func passRunFromContext(ctx context.Context) *passRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(passRunKey{}).(*passRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) withLogContext(ctx context.Context, orgID snowflake.ID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	if orgID != 0 {
		ctx = obscontext.WithOrgID(ctx, orgID.String())
	}
	return ctx
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logPassStart(ctx context.Context, run *passRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.pass.start",
		zap.String("pass", run.pass),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logPassFinish(ctx context.Context, run *passRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("pass", run.pass),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.pass.finish", fields...)
		return
	}
	log.Info("scheduler.pass.finish", fields...)
}

func (s *Scheduler) logSchedulerError(ctx context.Context, run *passRun, msg string, pass string, orgID snowflake.ID, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	if run != nil {
		run.IncError()
	}
	ctx = s.withLogContext(ctx, orgID)
	errorType := obsmetrics.ClassifySchedulerErrorType(err)
	retryable := obsmetrics.IsSchedulerErrorRetryable(err)
	baseFields := []zap.Field{
		zap.String("pass", pass),
		zap.String("org_id", idString(orgID)),
		zap.String("error_type", errorType),
		zap.String("error", err.Error()),
		zap.Bool("retryable", retryable),
	}
	s.logger(ctx).Error(msg, append(baseFields, fields...)...)
}

func idString(id snowflake.ID) string {
	if id == 0 {
		return ""
	}
	return id.String()
}
