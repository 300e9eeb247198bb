package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	schedulerErrorTypeDeadlineExceeded = "deadline_exceeded"
	schedulerErrorTypeExternalEffect   = "external_effect"
	schedulerErrorTypeBusinessRule     = "business_rule"
	schedulerErrorTypeDB               = "db"
)

const (
	SchedulerErrorTypeDeadlineExceeded = schedulerErrorTypeDeadlineExceeded
	SchedulerErrorTypeExternalEffect   = schedulerErrorTypeExternalEffect
	SchedulerErrorTypeBusinessRule     = schedulerErrorTypeBusinessRule
	SchedulerErrorTypeDB               = schedulerErrorTypeDB
	SchedulerErrorTypeUnknown          = "unknown"
)

const (
	SchedulerPassReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerPassReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerPassReasonSerializationFailure = "serialization_failure"
	SchedulerPassReasonExternalEffect       = "external_effect"
	SchedulerPassReasonUnknown              = "unknown"
)

// errExternalEffect lets the role provider wrap failures so the pass
// classifier can mark them retryable without importing the domain package.
var errExternalEffect = errors.New("external_effect")

// MarkExternalEffect tags an error as a failed external side effect.
func MarkExternalEffect(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(errExternalEffect, err)
}

// IsExternalEffect reports whether the error carries the external effect tag.
func IsExternalEffect(err error) bool {
	return errors.Is(err, errExternalEffect)
}

// SchedulerMetrics captures reconciliation pass health signals.
type SchedulerMetrics struct {
	passRuns      *prometheus.CounterVec
	passDuration  *prometheus.HistogramVec
	passTimeouts  *prometheus.CounterVec
	passErrors    *prometheus.CounterVec
	passProcessed *prometheus.CounterVec
	passDeferred  *prometheus.CounterVec
	runLoopLag    prometheus.Observer
	transitions   *prometheus.CounterVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "leavehub"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	passRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "leavehub_scheduler_pass_runs_total",
		Help:        "Reconciliation pass runs by name.",
		ConstLabels: constLabels,
	}, []string{"pass"})
	passDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "leavehub_scheduler_pass_duration_seconds",
		Help:        "Reconciliation pass latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	}, []string{"pass"})
	passTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "leavehub_scheduler_pass_timeouts_total",
		Help:        "Reconciliation passes cut short by their deadline.",
		ConstLabels: constLabels,
	}, []string{"pass"})
	passErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "leavehub_scheduler_pass_errors_total",
		Help:        "Reconciliation pass errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"pass", "reason"})
	passProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "leavehub_scheduler_pass_processed_total",
		Help:        "Requests advanced by reconciliation passes.",
		ConstLabels: constLabels,
	}, []string{"pass"})
	passDeferred := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "leavehub_scheduler_pass_deferred_total",
		Help:        "Requests left for a later pass, by reason.",
		ConstLabels: constLabels,
	}, []string{"pass", "reason"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "leavehub_scheduler_runloop_lag_seconds",
		Help:        "Pass loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "leavehub_request_transition_total",
		Help:        "Leave request lifecycle transitions.",
		ConstLabels: constLabels,
	}, []string{"from", "to"})

	registerer.MustRegister(
		passRuns,
		passDuration,
		passTimeouts,
		passErrors,
		passProcessed,
		passDeferred,
		runLoopLag,
		transitions,
	)

	return &SchedulerMetrics{
		passRuns:      passRuns,
		passDuration:  passDuration,
		passTimeouts:  passTimeouts,
		passErrors:    passErrors,
		passProcessed: passProcessed,
		passDeferred:  passDeferred,
		runLoopLag:    runLoopLag,
		transitions:   transitions,
	}
}

// IncPassRun increments the run counter for a reconciliation pass.
func (m *SchedulerMetrics) IncPassRun(pass string) {
	if m == nil || m.passRuns == nil {
		return
	}
	m.passRuns.WithLabelValues(pass).Inc()
}

// ObservePassDuration records pass latency in seconds.
func (m *SchedulerMetrics) ObservePassDuration(pass string, duration time.Duration) {
	if m == nil || m.passDuration == nil {
		return
	}
	m.passDuration.WithLabelValues(pass).Observe(duration.Seconds())
}

// IncPassTimeout increments the timeout counter for a pass.
func (m *SchedulerMetrics) IncPassTimeout(pass string) {
	if m == nil || m.passTimeouts == nil {
		return
	}
	m.passTimeouts.WithLabelValues(pass).Inc()
}

// IncPassError increments the pass error counter with classification.
func (m *SchedulerMetrics) IncPassError(pass string, err error) {
	if m == nil || err == nil || m.passErrors == nil {
		return
	}
	m.passErrors.WithLabelValues(pass, ClassifySchedulerPassReason(err)).Inc()
}

// AddPassProcessed increments the processed counter for a pass by count.
func (m *SchedulerMetrics) AddPassProcessed(pass string, count int) {
	if m == nil || count <= 0 || m.passProcessed == nil {
		return
	}
	m.passProcessed.WithLabelValues(pass).Add(float64(count))
}

// IncPassDeferred increments the deferred counter for a pass and reason.
func (m *SchedulerMetrics) IncPassDeferred(pass, reason string) {
	if m == nil || m.passDeferred == nil {
		return
	}
	m.passDeferred.WithLabelValues(pass, reason).Inc()
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *SchedulerMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	lag := duration
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// IncRequestTransition increments lifecycle transition counters.
func (m *SchedulerMetrics) IncRequestTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	if err == nil {
		return SchedulerErrorTypeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerErrorTypeDeadlineExceeded
	}
	if IsExternalEffect(err) {
		return SchedulerErrorTypeExternalEffect
	}
	if isDBError(err) {
		return SchedulerErrorTypeDB
	}
	return SchedulerErrorTypeBusinessRule
}

// IsSchedulerErrorRetryable reports whether the pass error should be retried.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if IsExternalEffect(err) {
		return true
	}
	return isDBError(err)
}

// ClassifySchedulerPassReason maps pass errors to low-cardinality reasons.
func ClassifySchedulerPassReason(err error) string {
	if err == nil {
		return SchedulerPassReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return SchedulerPassReasonDeadlineExceeded
	}
	if IsExternalEffect(err) {
		return SchedulerPassReasonExternalEffect
	}
	if hasPGCode(err, "55P03") {
		return SchedulerPassReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return SchedulerPassReasonSerializationFailure
	}
	return SchedulerPassReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
