package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository defines the persistence operations for organizations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, org *Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindByOwner(ctx context.Context, ownerID snowflake.ID) (*Organization, error)
	UpdateProfile(ctx context.Context, org *Organization) error

	// AddAdminSeats issues a single atomic increment of max_admin_seats.
	AddAdminSeats(ctx context.Context, id snowflake.ID, seats int) error

	// IncrementUsedSeats atomically bumps used_admin_seats. It does not
	// check the cap; the over-grant window is accepted.
	IncrementUsedSeats(ctx context.Context, id snowflake.ID) error

	// ApplySubscriptionWindow replaces the tenant's subscription window
	// and status in one UPDATE.
	ApplySubscriptionWindow(ctx context.Context, id snowflake.ID, status SubscriptionStatus, start, end time.Time, autoRenew bool) error

	SetAutoRenew(ctx context.Context, id snowflake.ID, autoRenew bool) error
}
