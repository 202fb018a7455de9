package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/constants"
)

// ClampLimit normalizes a requested item count. Values below 1 fall back to
// defaultLimit and values above maxLimit are capped.
func ClampLimit(limit, defaultLimit, maxLimit int) int {
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// ParseLimit reads the "limit" query parameter with inbox defaults applied.
func ParseLimit(c *gin.Context) int {
	return ParseLimitWithBounds(c, constants.DefaultInboxPageSize, constants.MaxInboxPageSize)
}

// ParseLimitWithBounds reads the "limit" query parameter with custom bounds.
// Unparseable values are treated as absent.
func ParseLimitWithBounds(c *gin.Context, defaultLimit, maxLimit int) int {
	limit := 0
	if val := c.Query("limit"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			limit = n
		}
	}
	return ClampLimit(limit, defaultLimit, maxLimit)
}
