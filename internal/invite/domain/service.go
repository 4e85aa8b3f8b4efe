package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrCodeNotFound         = errors.New("invite code not found")
	ErrCodeInactive         = errors.New("invite code is not active")
	ErrCodeNotRedeemable    = errors.New("invite code cannot be redeemed")
	ErrInvalidCodeFormat    = errors.New("invite code format is invalid")
	ErrGenerationExhausted  = errors.New("could not generate a unique invite code")
	ErrNotCodeOwner         = errors.New("caller's organization does not own this code")
	ErrOrganizationInactive = errors.New("organization cannot issue invites")
	ErrInvalidMaxUses       = errors.New("max uses must be positive")
	ErrInvalidBulkCount     = errors.New("bulk count out of range")
)

// MaxBulkCreate caps one bulk issuance request.
const MaxBulkCreate = 100

// CreateRequest issues a single code. Metadata is free-form issuer
// state, e.g. assign_to_group for post-signup placement.
type CreateRequest struct {
	Role           string         `json:"role"`
	MaxUses        int            `json:"max_uses"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	WelcomeMessage *string        `json:"welcome_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// BulkCreateRequest issues up to MaxBulkCreate codes with shared settings.
type BulkCreateRequest struct {
	Count          int            `json:"count" binding:"required,min=1"`
	Role           string         `json:"role"`
	MaxUses        int            `json:"max_uses"`
	ExpiresAt      *time.Time     `json:"expires_at,omitempty"`
	WelcomeMessage *string        `json:"welcome_message,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Verification is the public answer for a usable code. Lookups of
// inactive codes fail with ErrCodeInactive instead, so organization
// details never leak through a dead code.
type Verification struct {
	Valid            bool    `json:"valid"`
	Code             string  `json:"code"`
	Status           Status  `json:"status"`
	OrganizationID   string  `json:"organization_id"`
	OrganizationName string  `json:"organization_name"`
	Role             string  `json:"role"`
	WelcomeMessage   *string `json:"welcome_message,omitempty"`
}

// Redemption is the outcome of a successful claim, consumed by signup.
type Redemption struct {
	CodeID         snowflake.ID
	Code           string
	OrganizationID snowflake.ID
	Role           string
	WelcomeMessage *string
	Metadata       map[string]any
}

// CodeView is an InviteCode with its derived status attached.
type CodeView struct {
	InviteCode
	DerivedStatus Status `json:"derived_status"`
}

// StatsResponse summarises a tenant's invite activity. TotalUses is the
// lifetime redemption count across all codes, independent of their
// current status.
type StatsResponse struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Exhausted int64 `json:"exhausted"`
	Expired   int64 `json:"expired"`
	Revoked   int64 `json:"revoked"`
	Redeemed  int64 `json:"redeemed"`
	TotalUses int64 `json:"total_uses"`
}

// Service is the invite application layer.
type Service interface {
	Verify(ctx context.Context, code string) (*Verification, error)
	Create(ctx context.Context, orgID, createdBy snowflake.ID, req CreateRequest) (*InviteCode, error)
	BulkCreate(ctx context.Context, orgID, createdBy snowflake.ID, req BulkCreateRequest) ([]InviteCode, error)

	// Redeem claims one use of the code atomically. The caller creates
	// the identity afterwards and then calls AttachRedeemer.
	Redeem(ctx context.Context, code string) (*Redemption, error)
	AttachRedeemer(ctx context.Context, code string, userID snowflake.ID) error

	Revoke(ctx context.Context, id, callerOrgID snowflake.ID) (*InviteCode, error)
	List(ctx context.Context, orgID snowflake.ID) ([]CodeView, error)
	Stats(ctx context.Context, orgID snowflake.ID) (*StatsResponse, error)
}
