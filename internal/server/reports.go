package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/parishkeep/parishkeep/internal/access"
)

// Report routes are the only surface behind the access gate. Billing
// and invite management stay reachable so a lapsed tenant can renew.
func (s *Server) registerReportRoutes() {
	g := s.engine.Group("/api/reports", s.AuthRequired(), s.RequireActiveOrGrace())
	g.GET("/overview", s.handleReportOverview)
}

func (s *Server) handleReportOverview(c *gin.Context) {
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

	stats, err := s.organizationSvc.GetStats(c.Request.Context(), org.ID, principal.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var decision access.Decision
	if v, ok := c.Get(contextAccessKey); ok {
		decision, _ = v.(access.Decision)
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"stats":        stats,
		"access":       decision,
	})
}
