package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrRequestNotFound     = errors.New("leave_request_not_found")
	ErrInvalidTransition   = errors.New("invalid_transition")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidMember       = errors.New("invalid_member")
	ErrInvalidRequestID    = errors.New("invalid_request_id")
	ErrDateNotFuture       = errors.New("start_date_not_future")
	ErrInvalidDuration     = errors.New("invalid_duration")
	ErrRecallTooLate       = errors.New("recall_after_start")
)

// SubmitRequest carries a member's leave application.
type SubmitRequest struct {
	OrgID     snowflake.ID
	MemberID  snowflake.ID
	StartDate string
	Duration  int
	Reason    string
	Contact   string
}

// ReviewRequest carries an approve or deny decision.
type ReviewRequest struct {
	OrgID      snowflake.ID
	RequestID  snowflake.ID
	ReviewerID snowflake.ID
	Comment    string
}

// ReturnRequest carries an early return, initiated by the member on leave
// or forced by a reviewer.
type ReturnRequest struct {
	OrgID       snowflake.ID
	RequestID   snowflake.ID
	InitiatorID snowflake.ID
}

// ListRequest filters the request listing.
type ListRequest struct {
	OrgID    snowflake.ID
	MemberID snowflake.ID
	Status   Status
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*LeaveRequest, error)
	Approve(ctx context.Context, req ReviewRequest) (*LeaveRequest, error)
	Deny(ctx context.Context, req ReviewRequest) (*LeaveRequest, error)
	EarlyReturn(ctx context.Context, req ReturnRequest) (*LeaveRequest, error)
	Recall(ctx context.Context, req ReviewRequest) (*LeaveRequest, error)

	// Scheduler-driven transitions.
	AutoClose(ctx context.Context, orgID, requestID snowflake.ID) (*LeaveRequest, error)
	Activate(ctx context.Context, orgID, requestID snowflake.ID) (*LeaveRequest, error)
	Expire(ctx context.Context, orgID, requestID snowflake.ID) (*LeaveRequest, error)
	MarkReminderSent(ctx context.Context, orgID, requestID snowflake.ID) (*LeaveRequest, error)

	List(ctx context.Context, req ListRequest) ([]LeaveRequest, error)
	ActiveRoster(ctx context.Context, orgID snowflake.ID) ([]LeaveRequest, error)
	Get(ctx context.Context, orgID, requestID snowflake.ID) (*LeaveRequest, error)
}
