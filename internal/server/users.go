package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
)

func (s *Server) ListUsers(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req authdomain.ListUserRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.authsvc.List(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUser(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	user, err := s.authsvc.Get(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}

func (s *Server) AdminUpdateUser(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req authdomain.AdminUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	user, err := s.authsvc.AdminUpdate(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}
