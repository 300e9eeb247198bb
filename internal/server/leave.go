package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	leavedomain "github.com/smallbiznis/leavehub/internal/leave/domain"
)

type submitLeaveRequest struct {
	MemberID  string `json:"member_id"`
	StartDate string `json:"start_date"`
	Duration  int    `json:"duration_days"`
	Reason    string `json:"reason"`
	Contact   string `json:"contact"`
}

type reviewLeaveRequest struct {
	ReviewerID string `json:"reviewer_id"`
	Comment    string `json:"comment"`
}

type earlyReturnLeaveRequest struct {
	InitiatorID string `json:"initiator_id"`
}

type leaveRequestResponse struct {
	ID       snowflake.ID       `json:"id"`
	OrgID    snowflake.ID       `json:"org_id"`
	MemberID snowflake.ID       `json:"member_id"`
	Status   leavedomain.Status `json:"status"`

	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DurationDays int    `json:"duration_days"`

	Reason  string `json:"reason,omitempty"`
	Contact string `json:"contact,omitempty"`

	AutoCloseAt time.Time `json:"auto_close_at"`

	ReviewerID    *snowflake.ID `json:"reviewer_id,omitempty"`
	ReviewedAt    *time.Time    `json:"reviewed_at,omitempty"`
	ReviewComment *string       `json:"review_comment,omitempty"`
	DenyReason    *string       `json:"deny_reason,omitempty"`

	ReminderSent bool `json:"reminder_sent"`

	ActivatedAt     *time.Time    `json:"activated_at,omitempty"`
	ExpiredAt       *time.Time    `json:"expired_at,omitempty"`
	EarlyReturnedAt *time.Time    `json:"early_returned_at,omitempty"`
	EarlyReturnedBy *snowflake.ID `json:"early_returned_by,omitempty"`
	RecalledAt      *time.Time    `json:"recalled_at,omitempty"`
	RecalledBy      *snowflake.ID `json:"recalled_by,omitempty"`
	AutoClosedAt    *time.Time    `json:"auto_closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const dateOnlyLayout = "2006-01-02"

func toLeaveRequestResponse(request *leavedomain.LeaveRequest) leaveRequestResponse {
	return leaveRequestResponse{
		ID:              request.ID,
		OrgID:           request.OrgID,
		MemberID:        request.MemberID,
		Status:          request.Status,
		StartDate:       request.StartDate.Format(dateOnlyLayout),
		EndDate:         request.EndDate.Format(dateOnlyLayout),
		DurationDays:    request.DurationDays,
		Reason:          request.Reason,
		Contact:         request.Contact,
		AutoCloseAt:     request.AutoCloseAt,
		ReviewerID:      request.ReviewerID,
		ReviewedAt:      request.ReviewedAt,
		ReviewComment:   request.ReviewComment,
		DenyReason:      request.DenyReason,
		ReminderSent:    request.ReminderSent,
		ActivatedAt:     request.ActivatedAt,
		ExpiredAt:       request.ExpiredAt,
		EarlyReturnedAt: request.EarlyReturnedAt,
		EarlyReturnedBy: request.EarlyReturnedBy,
		RecalledAt:      request.RecalledAt,
		RecalledBy:      request.RecalledBy,
		AutoClosedAt:    request.AutoClosedAt,
		CreatedAt:       request.CreatedAt,
		UpdatedAt:       request.UpdatedAt,
	}
}

func toLeaveRequestResponses(requests []leavedomain.LeaveRequest) []leaveRequestResponse {
	out := make([]leaveRequestResponse, 0, len(requests))
	for i := range requests {
		out = append(out, toLeaveRequestResponse(&requests[i]))
	}
	return out
}

func (s *Server) SubmitLeaveRequest(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req submitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	memberID, err := snowflake.ParseString(strings.TrimSpace(req.MemberID))
	if err != nil || memberID == 0 {
		AbortWithError(c, newValidationError("member_id", "invalid_id", "invalid identifier"))
		return
	}

	created, err := s.leaveSvc.Submit(c.Request.Context(), leavedomain.SubmitRequest{
		OrgID:     orgID,
		MemberID:  memberID,
		StartDate: strings.TrimSpace(req.StartDate),
		Duration:  req.Duration,
		Reason:    req.Reason,
		Contact:   req.Contact,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toLeaveRequestResponse(created))
}

func (s *Server) ApproveLeaveRequest(c *gin.Context) {
	s.review(c, s.leaveSvc.Approve)
}

func (s *Server) DenyLeaveRequest(c *gin.Context) {
	s.review(c, s.leaveSvc.Deny)
}

func (s *Server) RecallLeaveRequest(c *gin.Context) {
	s.review(c, s.leaveSvc.Recall)
}

func (s *Server) review(c *gin.Context, apply func(ctx context.Context, req leavedomain.ReviewRequest) (*leavedomain.LeaveRequest, error)) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	requestID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req reviewLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reviewerID, err := snowflake.ParseString(strings.TrimSpace(req.ReviewerID))
	if err != nil || reviewerID == 0 {
		AbortWithError(c, newValidationError("reviewer_id", "invalid_id", "invalid identifier"))
		return
	}

	updated, err := apply(c.Request.Context(), leavedomain.ReviewRequest{
		OrgID:      orgID,
		RequestID:  requestID,
		ReviewerID: reviewerID,
		Comment:    req.Comment,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaveRequestResponse(updated))
}

func (s *Server) EarlyReturnLeaveRequest(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	requestID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req earlyReturnLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	initiatorID, err := snowflake.ParseString(strings.TrimSpace(req.InitiatorID))
	if err != nil || initiatorID == 0 {
		AbortWithError(c, newValidationError("initiator_id", "invalid_id", "invalid identifier"))
		return
	}

	updated, err := s.leaveSvc.EarlyReturn(c.Request.Context(), leavedomain.ReturnRequest{
		OrgID:       orgID,
		RequestID:   requestID,
		InitiatorID: initiatorID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaveRequestResponse(updated))
}

func (s *Server) ListLeaveRequests(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	memberID, err := queryOptionalSnowflakeID(c, "member_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requests, err := s.leaveSvc.List(c.Request.Context(), leavedomain.ListRequest{
		OrgID:    orgID,
		MemberID: memberID,
		Status:   status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leave_requests": toLeaveRequestResponses(requests)})
}

func (s *Server) ListActiveRoster(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	requests, err := s.leaveSvc.ActiveRoster(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leave_requests": toLeaveRequestResponses(requests)})
}

func (s *Server) GetLeaveRequest(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	requestID, err := pathSnowflakeID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	request, err := s.leaveSvc.Get(c.Request.Context(), orgID, requestID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaveRequestResponse(request))
}

func parseStatusFilter(value string) (leavedomain.Status, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	status := leavedomain.Status(trimmed)
	switch status {
	case leavedomain.StatusPending, leavedomain.StatusApproved, leavedomain.StatusDenied,
		leavedomain.StatusActive, leavedomain.StatusEarlyReturned, leavedomain.StatusExpired,
		leavedomain.StatusAutoClosed, leavedomain.StatusRecalled:
		return status, nil
	default:
		return "", newValidationError("status", "invalid_status", "unknown status")
	}
}
