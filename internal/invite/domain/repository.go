package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository defines the persistence operations for invite codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, code *InviteCode) error
	FindByID(ctx context.Context, id snowflake.ID) (*InviteCode, error)
	FindByCode(ctx context.Context, code string) (*InviteCode, error)
	ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]InviteCode, error)

	// Claim performs the conditional redemption: one UPDATE that bumps
	// current_uses only while the code is stored active, unexpired and
	// under its cap. It reports whether a row was claimed.
	Claim(ctx context.Context, code string, now time.Time) (bool, error)

	// AttachRedeemer records who redeemed the code, first redeemer only.
	AttachRedeemer(ctx context.Context, code string, userID snowflake.ID, at time.Time) error

	Revoke(ctx context.Context, id snowflake.ID, at time.Time) error

	CountByOrganization(ctx context.Context, orgID snowflake.ID, stored StoredStatus, redeemedOnly bool) (int64, error)
}
