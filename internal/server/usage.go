package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetMemberUsage(c *gin.Context) {
	orgID, err := pathSnowflakeID(c, "org_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	memberID, err := pathSnowflakeID(c, "member_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	settings, err := s.settingsSvc.Get(ctx, orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	periodKey := s.calendar.MonthKey(s.clock.Now())
	stats, err := s.usageSvc.MemberStats(ctx, orgID, memberID, periodKey, settings.QuotaPerMonth)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"period_key": periodKey,
		"usage":      stats,
	})
}
