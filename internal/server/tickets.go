package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ticketdomain "github.com/smallbiznis/sekarnet/internal/ticket/domain"
)

func (s *Server) ListTickets(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req ticketdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.ticketSvc.List(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateTicket(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req ticketdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.ticketSvc.Create(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetTicket(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	item, err := s.ticketSvc.Get(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) UpdateTicket(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req ticketdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.ticketSvc.Update(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) AssignTicket(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req ticketdomain.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.ticketSvc.Assign(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ResolveTicket(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req ticketdomain.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.ticketSvc.Resolve(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CloseTicket(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	item, err := s.ticketSvc.Close(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListTicketReplies(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	replies, err := s.ticketSvc.ListReplies(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": replies})
}

func (s *Server) AddTicketReply(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req ticketdomain.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	reply, err := s.ticketSvc.AddReply(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": reply})
}
