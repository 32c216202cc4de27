package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
)

// ListPackages is public; inactive packages are only listed for admins.
func (s *Server) ListPackages(c *gin.Context) {
	caller, _ := callerFromContext(c)

	var req catalogdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.catalogSvc.List(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPackage(c *gin.Context) {
	pkg, err := s.catalogSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pkg})
}

func (s *Server) CreatePackage(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req catalogdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	pkg, err := s.catalogSvc.Create(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": pkg})
}

func (s *Server) UpdatePackage(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req catalogdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	pkg, err := s.catalogSvc.Update(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pkg})
}

func (s *Server) DeactivatePackage(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	pkg, err := s.catalogSvc.Deactivate(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pkg})
}
