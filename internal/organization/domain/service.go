package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrOwnerAlreadyBound    = errors.New("owner already has an organization")
	ErrInvalidName          = errors.New("organization name is required")
	ErrInvalidType          = errors.New("invalid organization type")
	ErrInvalidTier          = errors.New("invalid subscription tier")
	ErrNotOwner             = errors.New("caller does not own this organization")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrInvalidSeatCount     = errors.New("seat count must be positive")
)

// CreateRequest carries the fields needed to provision a tenant.
type CreateRequest struct {
	Name                 string           `json:"name" binding:"required"`
	Type                 OrganizationType `json:"type" binding:"required"`
	SubscriptionTier     SubscriptionTier `json:"subscription_tier" binding:"required"`
	ParentOrganizationID *snowflake.ID    `json:"parent_organization_id,omitempty"`
	ContactEmail         string           `json:"contact_email" binding:"required,email"`
	ContactPhone         *string          `json:"contact_phone,omitempty"`
	ContactAddress       map[string]any   `json:"contact_address,omitempty"`
}

// UpdateProfileRequest holds the mutable profile fields. Nil means leave
// the current value alone.
type UpdateProfileRequest struct {
	Name           *string        `json:"name,omitempty"`
	ContactEmail   *string        `json:"contact_email,omitempty"`
	ContactPhone   *string        `json:"contact_phone,omitempty"`
	ContactAddress map[string]any `json:"contact_address,omitempty"`
}

// PurchaseSeatsRequest asks for additional admin seats.
type PurchaseSeatsRequest struct {
	Seats int `json:"seats" binding:"required,min=1"`
}

// SeatPurchase reports the outcome of a seat purchase. The seats are
// granted immediately; the caller settles the returned order and then
// confirms the subscription it names.
type SeatPurchase struct {
	OrganizationID  snowflake.ID `json:"organization_id"`
	SubscriptionID  snowflake.ID `json:"subscription_id"`
	RazorpayOrderID string       `json:"razorpay_order_id"`
	SeatsAdded      int          `json:"seats_added"`
	MaxAdminSeats   int          `json:"max_admin_seats"`
	AmountDue       int64        `json:"amount_due"`
	Currency        string       `json:"currency"`
	EndDate         time.Time    `json:"end_date"`
}

// Stats is the per-tenant dashboard summary.
type Stats struct {
	OrganizationID     snowflake.ID       `json:"organization_id"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	SubscriptionEnd    time.Time          `json:"subscription_end"`
	MaxAdminSeats      int                `json:"max_admin_seats"`
	UsedAdminSeats     int                `json:"used_admin_seats"`
	ActiveInvites      int64              `json:"active_invites"`
	RedeemedInvites    int64              `json:"redeemed_invites"`
}

// Service is the organization application layer.
type Service interface {
	Create(ctx context.Context, ownerID snowflake.ID, req CreateRequest) (*Organization, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	GetMine(ctx context.Context, ownerID snowflake.ID) (*Organization, error)
	UpdateProfile(ctx context.Context, id, callerID snowflake.ID, req UpdateProfileRequest) (*Organization, error)
	PurchaseAdminSeats(ctx context.Context, id, callerID snowflake.ID, req PurchaseSeatsRequest) (*SeatPurchase, error)
	GetStats(ctx context.Context, id, callerID snowflake.ID) (*Stats, error)
}
