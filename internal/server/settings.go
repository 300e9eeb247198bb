package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orgsettingsdomain "github.com/smallbiznis/leavehub/internal/orgsettings/domain"
)

type updateOrgSettingsRequest struct {
	QuotaPerMonth    *int    `json:"quota_per_month"`
	AutoCloseHours   *int    `json:"auto_close_hours"`
	AllowedDurations []int   `json:"allowed_durations"`
	ReviewerRoles    []int64 `json:"reviewer_roles"`
	BannedRoles      []int64 `json:"banned_roles"`
	MinRankRoles     []int64 `json:"min_rank_roles"`
	VacationRole     *int64  `json:"vacation_role"`
}

type orgSettingsResponse struct {
	OrgID            snowflake.ID `json:"org_id"`
	QuotaPerMonth    int          `json:"quota_per_month"`
	AutoCloseHours   int          `json:"auto_close_hours"`
	AllowedDurations []int        `json:"allowed_durations"`
	ReviewerRoles    []int64      `json:"reviewer_roles"`
	BannedRoles      []int64      `json:"banned_roles"`
	MinRankRoles     []int64      `json:"min_rank_roles"`
	VacationRole     int64        `json:"vacation_role"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func toOrgSettingsResponse(settings *orgsettingsdomain.OrgSettings) orgSettingsResponse {
	return orgSettingsResponse{
		OrgID:            settings.OrgID,
		QuotaPerMonth:    settings.QuotaPerMonth,
		AutoCloseHours:   settings.AutoCloseHours,
		AllowedDurations: settings.AllowedDurations,
		ReviewerRoles:    settings.ReviewerRoles,
		BannedRoles:      settings.BannedRoles,
		MinRankRoles:     settings.MinRankRoles,
		VacationRole:     settings.VacationRole,
		UpdatedAt:        settings.UpdatedAt,
	}
}

func (s *Server) GetOrgSettings(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	settings, err := s.settingsSvc.Get(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrgSettingsResponse(settings))
}

func (s *Server) UpdateOrgSettings(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateOrgSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updated, err := s.settingsSvc.Update(c.Request.Context(), orgsettingsdomain.UpdateSettingsRequest{
		OrgID:            orgID,
		QuotaPerMonth:    req.QuotaPerMonth,
		AutoCloseHours:   req.AutoCloseHours,
		AllowedDurations: req.AllowedDurations,
		ReviewerRoles:    req.ReviewerRoles,
		BannedRoles:      req.BannedRoles,
		MinRankRoles:     req.MinRankRoles,
		VacationRole:     req.VacationRole,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrgSettingsResponse(updated))
}
