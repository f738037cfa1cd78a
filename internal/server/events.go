package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingeventdomain "github.com/quotient-hq/quotient/internal/billingevent/domain"
)

func (s *Server) ListEvents(c *gin.Context) {
	var query struct {
		Status string `form:"status"`
		Limit  int    `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	status := billingeventdomain.EventStatus(strings.TrimSpace(query.Status))
	switch status {
	case billingeventdomain.EventStatusPending,
		billingeventdomain.EventStatusProcessed,
		billingeventdomain.EventStatusIgnored,
		billingeventdomain.EventStatusFailed:
	default:
		AbortWithError(c, newValidationError("status", "invalid_status", "invalid value"))
		return
	}

	events, err := s.eventRepo.List(c.Request.Context(), s.db, status, query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}
