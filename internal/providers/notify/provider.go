// Package notify carries lifecycle events to members and reviewers.
// Delivery is fire-and-forget; the engine never blocks or fails a
// transition on a sink error.
package notify

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Event names follow the transition that produced them.
const (
	EventSubmitted     = "leave.submitted"
	EventApproved      = "leave.approved"
	EventDenied        = "leave.denied"
	EventAutoClosed    = "leave.auto_closed"
	EventActivated     = "leave.activated"
	EventExpired       = "leave.expired"
	EventEarlyReturned = "leave.early_returned"
	EventRecalled      = "leave.recalled"
	EventReminder      = "leave.reminder"
)

type Event struct {
	Type      string
	OrgID     snowflake.ID
	MemberID  snowflake.ID
	RequestID snowflake.ID
	Detail    string
}

type Sink interface {
	Notify(ctx context.Context, event Event) error
}

// LogSink writes events to the structured log. It stands in for the
// chat-platform delivery channel in local deployments.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("notify")}
}

func (s *LogSink) Notify(ctx context.Context, event Event) error {
	s.log.Info("lifecycle event",
		zap.String("event", event.Type),
		zap.Int64("org_id", int64(event.OrgID)),
		zap.Int64("member_id", int64(event.MemberID)),
		zap.Int64("request_id", int64(event.RequestID)),
		zap.String("detail", event.Detail),
	)
	return nil
}

type NoOpSink struct{}

func (NoOpSink) Notify(ctx context.Context, event Event) error { return nil }

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = NoOpSink{}
)
