package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parishkeep/parishkeep/internal/payment/razorpay"
)

func (s *Server) registerPaymentRoutes() {
	s.engine.POST("/api/webhooks/razorpay", s.handleRazorpayWebhook)
}

// handleRazorpayWebhook verifies and records gateway events. Activation
// still happens through the authenticated confirm endpoint; the webhook
// is an audit trail, not a trigger.
func (s *Server) handleRazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	signature := c.GetHeader("X-Razorpay-Signature")
	if err := s.payments.VerifyWebhookSignature(body, signature); err != nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	s.log.Info("razorpay webhook received",
		zap.String("event", event.Event),
		zap.String("order_id", event.Payload.Payment.Entity.OrderID),
		zap.String("payment_id", event.Payload.Payment.Entity.ID),
		zap.String("payment_status", event.Payload.Payment.Entity.Status),
	)

	c.JSON(http.StatusOK, gin.H{"received": true})
}
