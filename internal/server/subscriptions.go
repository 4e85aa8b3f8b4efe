package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	subscriptiondomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
)

func (s *Server) registerSubscriptionRoutes() {
	s.engine.GET("/api/pricing", s.handlePricing)

	g := s.engine.Group("/api", s.AuthRequired())
	g.GET("/organizations/:id/subscriptions", s.handleListSubscriptions)
	g.GET("/organizations/:id/subscriptions/active", s.handleActiveSubscription)
	g.GET("/organizations/:id/subscription-status", s.handleSubscriptionStatus)
	g.POST("/organizations/:id/subscriptions", s.handleInitiateSubscription)
	g.POST("/organizations/:id/subscriptions/cancel", s.handleCancelSubscription)
	g.POST("/subscriptions/:id/confirm", s.handleConfirmSubscription)
	g.GET("/subscriptions/upcoming-renewals", s.handleUpcomingRenewals)
}

func (s *Server) handlePricing(c *gin.Context) {
	pricing, err := s.subscriptionSvc.GetPricing(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pricing)
}

func (s *Server) handleListSubscriptions(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	subs, err := s.subscriptionSvc.List(c.Request.Context(), id, principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

func (s *Server) handleActiveSubscription(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	sub, err := s.subscriptionSvc.GetActive(c.Request.Context(), id, principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) handleSubscriptionStatus(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	status, err := s.subscriptionSvc.GetStatus(c.Request.Context(), id, principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleInitiateSubscription(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req subscriptiondomain.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.subscriptionSvc.Initiate(c.Request.Context(), id, principal.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleCancelSubscription(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.subscriptionSvc.Cancel(c.Request.Context(), id, principal.UserID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auto_renew": false})
}

func (s *Server) handleConfirmSubscription(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req subscriptiondomain.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.subscriptionSvc.Confirm(c.Request.Context(), id, principal.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) handleUpcomingRenewals(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	org, err := s.callerOrganization(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	days, _ := strconv.Atoi(c.Query("days"))

	subs, err := s.subscriptionSvc.UpcomingRenewals(c.Request.Context(), org.ID, principal.UserID, days)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}
