// Package domain contains invite code models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// StoredStatus is what the row records. Expiry and exhaustion are
// derived at read time, never written back.
type StoredStatus string

const (
	StoredActive  StoredStatus = "active"
	StoredRevoked StoredStatus = "revoked"
)

// Status is the effective state of a code after deriving expiry and
// exhaustion from the row.
type Status string

const (
	StatusActive    Status = "active"
	StatusRevoked   Status = "revoked"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
)

// InviteCode is a redeemable join code in the form #XXXX000. The code
// column carries a unique index; generation relies on it to resolve
// collisions.
type InviteCode struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Code           string        `gorm:"type:text;not null;uniqueIndex:ux_invite_codes_code" json:"code"`
	OrganizationID snowflake.ID  `gorm:"not null;index" json:"organization_id"`
	Role           string        `gorm:"type:text;not null;default:'member'" json:"role"`
	Status         StoredStatus  `gorm:"type:text;not null;default:'active'" json:"status"`
	MaxUses        int           `gorm:"not null;default:1" json:"max_uses"`
	CurrentUses    int           `gorm:"not null;default:0" json:"current_uses"`
	ExpiresAt      time.Time     `gorm:"not null" json:"expires_at"`
	WelcomeMessage *string       `gorm:"type:text" json:"welcome_message,omitempty"`
	// Metadata carries issuer extras such as assign_to_group, handed
	// back verbatim on redemption.
	Metadata  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedBy snowflake.ID      `gorm:"not null" json:"created_by"`
	UsedBy    *snowflake.ID     `json:"used_by,omitempty"`
	UsedAt    *time.Time        `json:"used_at,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (InviteCode) TableName() string { return "invite_codes" }

// DeriveStatus computes the effective status of a code at the given
// instant. Revocation wins over everything, then expiry, then
// exhaustion.
func DeriveStatus(code InviteCode, now time.Time) Status {
	if code.Status == StoredRevoked {
		return StatusRevoked
	}
	// A code is usable through its expiry instant; only strictly past
	// the deadline does it expire.
	if now.After(code.ExpiresAt) {
		return StatusExpired
	}
	if code.CurrentUses >= code.MaxUses {
		return StatusExhausted
	}
	return StatusActive
}
