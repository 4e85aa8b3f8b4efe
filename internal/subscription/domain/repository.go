package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository defines the persistence operations for subscriptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, sub *Subscription) error
	FindByID(ctx context.Context, id snowflake.ID) (*Subscription, error)
	FindByOrganization(ctx context.Context, orgID snowflake.ID) ([]Subscription, error)
	FindActiveByOrganization(ctx context.Context, orgID snowflake.ID) (*Subscription, error)

	// Activate flips a pending subscription to active and stamps its
	// confirmed window and payment details in one UPDATE. It matches on
	// the pending status so a double confirm affects zero rows.
	Activate(ctx context.Context, id snowflake.ID, settle Settlement, start, end time.Time) error

	SetStatus(ctx context.Context, id snowflake.ID, status Status) error
	SetAutoRenew(ctx context.Context, id snowflake.ID, autoRenew bool) error

	// UpcomingRenewals lists active auto-renewing subscriptions whose
	// end date falls inside the lookahead window, across all tenants.
	// Only the scheduler's log sweep may use it; request paths go
	// through UpcomingRenewalsByOrganization.
	UpcomingRenewals(ctx context.Context, from, until time.Time) ([]Subscription, error)
	UpcomingRenewalsByOrganization(ctx context.Context, orgID snowflake.ID, from, until time.Time) ([]Subscription, error)
}

// Settlement is what the gateway reported for a settled payment,
// recorded on the row at confirmation.
type Settlement struct {
	TransactionID string
	PaymentID     string
	ReceiptURL    *string
	PaidAt        time.Time
}
