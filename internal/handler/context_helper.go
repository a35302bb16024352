package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/attendance-api/internal/middleware"
	"github.com/schooldesk/attendance-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func pageFilter(c *gin.Context) (page, size int, sortBy, sortOrder string) {
	page = queryInt(c, "page", 1)
	size = queryInt(c, "limit", 20)
	sortBy = c.Query("sort")
	sortOrder = c.Query("order")
	return page, size, sortBy, sortOrder
}

func querySearch(c *gin.Context) string {
	return strings.TrimSpace(c.Query("search"))
}
