package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func pathSnowflakeID(c *gin.Context, name string) (snowflake.ID, error) {
	value := strings.TrimSpace(c.Param(name))
	parsed, err := snowflake.ParseString(value)
	if err != nil || parsed == 0 {
		return 0, newValidationError(name, "invalid_id", "invalid identifier")
	}
	return parsed, nil
}

func queryOptionalSnowflakeID(c *gin.Context, name string) (snowflake.ID, error) {
	value := strings.TrimSpace(c.Query(name))
	if value == "" {
		return 0, nil
	}
	parsed, err := snowflake.ParseString(value)
	if err != nil || parsed == 0 {
		return 0, newValidationError(name, "invalid_id", "invalid identifier")
	}
	return parsed, nil
}
