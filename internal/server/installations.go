package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	installationdomain "github.com/smallbiznis/sekarnet/internal/installation/domain"
)

type installationListFunc func(ctx context.Context, caller authdomain.Caller, req installationdomain.ListRequest) (installationdomain.ListResponse, error)

func (s *Server) ListInstallations(c *gin.Context) {
	s.listInstallations(c, s.installationSvc.ListAll)
}

func (s *Server) ListMyInstallations(c *gin.Context) {
	s.listInstallations(c, s.installationSvc.ListMine)
}

func (s *Server) ListAssignedInstallations(c *gin.Context) {
	s.listInstallations(c, s.installationSvc.ListAssigned)
}

func (s *Server) listInstallations(c *gin.Context, fn installationListFunc) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req installationdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := fn(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req installationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.installationSvc.Create(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) GetInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	item, err := s.installationSvc.Get(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ScheduleInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req installationdomain.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.installationSvc.Schedule(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) StartInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	item, err := s.installationSvc.Start(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CompleteInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req installationdomain.CompleteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, bindError(err))
			return
		}
	}

	item, err := s.installationSvc.Complete(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) FailInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req installationdomain.FailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	item, err := s.installationSvc.Fail(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) CancelInstallation(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	item, err := s.installationSvc.Cancel(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}
