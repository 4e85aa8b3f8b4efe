package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	authdomain "github.com/parishkeep/parishkeep/internal/auth/domain"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	subscriptiondomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
)

// ErrorHandlingMiddleware renders the last accumulated error once the
// handler chain finishes without writing a body.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "authentication required"}

	case errors.Is(err, ErrForbidden),
		errors.Is(err, orgdomain.ErrNotOwner),
		errors.Is(err, invitedomain.ErrNotCodeOwner):
		return http.StatusForbidden, errorPayload{Type: "forbidden", Message: "not allowed"}

	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, orgdomain.ErrOrganizationNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, invitedomain.ErrCodeNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "resource not found"}

	case errors.Is(err, authdomain.ErrEmailTaken),
		errors.Is(err, authdomain.ErrPhoneTaken),
		errors.Is(err, orgdomain.ErrOwnerAlreadyBound),
		errors.Is(err, subscriptiondomain.ErrNotPending),
		errors.Is(err, subscriptiondomain.ErrAlreadyTerminal),
		errors.Is(err, invitedomain.ErrCodeNotRedeemable):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}

	case errors.Is(err, orgdomain.ErrSubscriptionInactive),
		errors.Is(err, invitedomain.ErrOrganizationInactive):
		return http.StatusPaymentRequired, errorPayload{Type: "subscription_inactive", Message: err.Error()}

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, orgdomain.ErrInvalidType),
		errors.Is(err, orgdomain.ErrInvalidTier),
		errors.Is(err, orgdomain.ErrInvalidName),
		errors.Is(err, orgdomain.ErrInvalidSeatCount),
		errors.Is(err, subscriptiondomain.ErrInvalidPlanType),
		errors.Is(err, subscriptiondomain.ErrTransactionMismatch),
		errors.Is(err, invitedomain.ErrInvalidCodeFormat),
		errors.Is(err, invitedomain.ErrCodeInactive),
		errors.Is(err, invitedomain.ErrInvalidMaxUses),
		errors.Is(err, invitedomain.ErrInvalidBulkCount):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{Type: "too_many_requests", Message: "slow down"}

	case errors.Is(err, invitedomain.ErrGenerationExhausted):
		return http.StatusServiceUnavailable, errorPayload{Type: "service_unavailable", Message: err.Error()}
	}

	return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal server error"}
}
