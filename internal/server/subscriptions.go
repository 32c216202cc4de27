package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
)

func (s *Server) ListSubscriptions(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req subscriptiondomain.ListSubscriptionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.subscriptionSvc.ListAll(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMySubscriptions(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req subscriptiondomain.ListSubscriptionRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	resp, err := s.subscriptionSvc.ListMine(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateSubscription(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	sub, err := s.subscriptionSvc.Create(c.Request.Context(), caller, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": sub})
}

func (s *Server) GetSubscription(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	sub, err := s.subscriptionSvc.Get(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) UpdateSubscription(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	var req subscriptiondomain.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	sub, err := s.subscriptionSvc.Update(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}

func (s *Server) SuspendSubscription(c *gin.Context) {
	s.subscriptionTransition(c, s.subscriptionSvc.Suspend)
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	s.subscriptionTransition(c, s.subscriptionSvc.Activate)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	s.subscriptionTransition(c, s.subscriptionSvc.Cancel)
}

type subscriptionTransitionFunc func(ctx context.Context, caller authdomain.Caller, id string) (*subscriptiondomain.Subscription, error)

func (s *Server) subscriptionTransition(c *gin.Context, fn subscriptionTransitionFunc) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	sub, err := fn(c.Request.Context(), caller, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sub})
}
