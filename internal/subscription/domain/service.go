package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/parishkeep/parishkeep/internal/access"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotPending           = errors.New("subscription is not pending")
	ErrTransactionMismatch  = errors.New("transaction id does not match")
	ErrInvalidPlanType      = errors.New("invalid plan type")
	ErrAlreadyTerminal      = errors.New("subscription already cancelled or expired")
)

// Order is the payment order handed back to the client after initiation.
// It mirrors what the payment gateway returns for checkout.
type Order struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// OrderCreator creates a gateway order for a pending subscription. The
// payment package provides the implementation.
type OrderCreator interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
}

// InitiateRequest starts a purchase.
type InitiateRequest struct {
	PlanType      PlanType `json:"plan_type" binding:"required"`
	Seats         int      `json:"seats"`
	PaymentMethod string   `json:"payment_method"`
	Notes         *string  `json:"notes,omitempty"`
}

// InitiateResponse pairs the pending record with its payment order.
type InitiateResponse struct {
	Subscription *Subscription `json:"subscription"`
	Order        *Order        `json:"order"`
}

// ConfirmRequest completes a purchase. TransactionID must equal the
// order id issued at initiation.
type ConfirmRequest struct {
	TransactionID string  `json:"transaction_id" binding:"required"`
	PaymentID     string  `json:"payment_id"`
	ReceiptURL    *string `json:"receipt_url,omitempty"`
}

// StatusResponse is the subscription status surface for a tenant: the
// stored window plus the derived access decision.
type StatusResponse struct {
	OrganizationID     snowflake.ID    `json:"organization_id"`
	SubscriptionStatus string          `json:"subscription_status"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	AutoRenew          bool            `json:"auto_renew"`
	Access             access.Decision `json:"access"`
}

// Pricing is the public price card.
type Pricing struct {
	Currency            string `json:"currency"`
	SuperadminAmount    int64  `json:"superadmin_amount"`
	AdditionalAdminSeat int64  `json:"additional_admin_seat"`
	IncludedAdminSeats  int    `json:"included_admin_seats"`
	SubscriptionYears   int    `json:"subscription_years"`
	GraceDays           int    `json:"grace_days"`
}

// Service is the subscription application layer.
type Service interface {
	List(ctx context.Context, orgID, callerID snowflake.ID) ([]Subscription, error)
	GetActive(ctx context.Context, orgID, callerID snowflake.ID) (*Subscription, error)
	GetStatus(ctx context.Context, orgID, callerID snowflake.ID) (*StatusResponse, error)
	GetPricing(ctx context.Context) (*Pricing, error)
	Initiate(ctx context.Context, orgID, callerID snowflake.ID, req InitiateRequest) (*InitiateResponse, error)
	Confirm(ctx context.Context, subscriptionID, callerID snowflake.ID, req ConfirmRequest) (*Subscription, error)
	Cancel(ctx context.Context, orgID, callerID snowflake.ID) error
	UpcomingRenewals(ctx context.Context, orgID, callerID snowflake.ID, days int) ([]Subscription, error)
}
