package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

type listActivityQuery struct {
	pagination.Pagination
	Action     string `form:"action"`
	TargetType string `form:"target_type"`
	TargetID   string `form:"target_id"`
	ActorType  string `form:"actor_type"`
	ActorID    string `form:"actor_id"`
	StartAt    string `form:"start_at"`
	EndAt      string `form:"end_at"`
	From       string `form:"from"`
	To         string `form:"to"`
}

func (s *Server) ListActivity(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var query listActivityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	startAt, err := parseOptionalTime(firstNonEmpty(query.StartAt, query.From), false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(firstNonEmpty(query.EndAt, query.To), true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), caller, auditdomain.ListAuditLogRequest{
		Pagination: query.Pagination,
		Action:     firstNonEmpty(query.Action),
		TargetType: firstNonEmpty(query.TargetType),
		TargetID:   firstNonEmpty(query.TargetID),
		ActorType:  firstNonEmpty(query.ActorType),
		ActorID:    firstNonEmpty(query.ActorID),
		StartAt:    startAt,
		EndAt:      endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
