package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	authdomain "github.com/parishkeep/parishkeep/internal/auth/domain"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
)

func (s *Server) registerInviteRoutes() {
	// Verification stays public so a prospective member can check a
	// code before creating an account.
	s.engine.GET("/api/invites/verify/:code", s.RateLimitVerify(), s.handleVerifyInvite)

	g := s.engine.Group("/api/invites", s.AuthRequired())
	g.POST("", s.handleCreateInvite)
	g.POST("/bulk", s.handleBulkCreateInvites)
	g.GET("", s.handleListInvites)
	g.GET("/stats", s.handleInviteStats)
	g.POST("/:id/revoke", s.handleRevokeInvite)
}

// inviteManager resolves the caller's tenant and rejects callers who
// may not manage its invites. The org owner always qualifies, even on
// a token minted before the org existed; everyone else needs an admin
// or superadmin role.
func (s *Server) inviteManager(c *gin.Context) (*authdomain.Principal, *orgdomain.Organization, error) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return nil, nil, ErrUnauthorized
	}
	org, err := s.callerOrganization(c)
	if err != nil {
		return nil, nil, err
	}
	if org.OwnerID != principal.UserID &&
		principal.Role != authdomain.RoleAdmin &&
		principal.Role != authdomain.RoleSuperadmin {
		return nil, nil, ErrForbidden
	}
	return principal, org, nil
}

func (s *Server) handleVerifyInvite(c *gin.Context) {
	verification, err := s.inviteSvc.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, verification)
}

func (s *Server) handleCreateInvite(c *gin.Context) {
	principal, org, err := s.inviteManager(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invitedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	code, err := s.inviteSvc.Create(c.Request.Context(), org.ID, principal.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, code)
}

func (s *Server) handleBulkCreateInvites(c *gin.Context) {
	principal, org, err := s.inviteManager(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req invitedomain.BulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	codes, err := s.inviteSvc.BulkCreate(c.Request.Context(), org.ID, principal.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"codes": codes})
}

func (s *Server) handleListInvites(c *gin.Context) {
	_, org, err := s.inviteManager(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	codes, err := s.inviteSvc.List(c.Request.Context(), org.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"codes": codes})
}

func (s *Server) handleInviteStats(c *gin.Context) {
	_, org, err := s.inviteManager(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stats, err := s.inviteSvc.Stats(c.Request.Context(), org.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRevokeInvite(c *gin.Context) {
	_, org, err := s.inviteManager(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	code, err := s.inviteSvc.Revoke(c.Request.Context(), id, org.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}
