package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billingoverview "github.com/smallbiznis/sekarnet/internal/billingoverview/domain"
)

type paymentStatisticsQuery struct {
	StartAt string `form:"start_at"`
	EndAt   string `form:"end_at"`
}

func (s *Server) GetPaymentStatistics(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var query paymentStatisticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	stats, err := s.billingOverviewSvc.GetPaymentStatistics(c.Request.Context(), caller, billingoverview.StatisticsRequest{
		Start: startAt,
		End:   endAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}
