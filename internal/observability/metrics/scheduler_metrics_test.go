package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestClassifySchedulerPassReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerPassReasonDeadlineExceeded,
		},
		{
			name: "external_effect",
			err:  MarkExternalEffect(errors.New("role grant failed")),
			want: SchedulerPassReasonExternalEffect,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerPassReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerPassReasonSerializationFailure,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerPassReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerPassReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(MarkExternalEffect(errors.New("grant failed"))) {
		t.Fatal("external effect failures must be retried on the next pass")
	}
	if IsSchedulerErrorRetryable(errors.New("business rule")) {
		t.Fatal("business rule rejections must not be retried")
	}
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "leavehub-test", Environment: "test"})

	m.IncPassRun("lifecycle")
	m.IncPassRun("lifecycle")
	m.AddPassProcessed("lifecycle", 3)
	m.IncRequestTransition("APPROVED", "ACTIVE")

	if got := testutil.ToFloat64(m.passRuns.WithLabelValues("lifecycle")); got != 2 {
		t.Fatalf("pass runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.passProcessed.WithLabelValues("lifecycle")); got != 3 {
		t.Fatalf("pass processed = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("APPROVED", "ACTIVE")); got != 1 {
		t.Fatalf("transitions = %v, want 1", got)
	}
}
