// Package domain contains persistence models for the organization service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// OrganizationType distinguishes hierarchical tenants.
type OrganizationType string

const (
	TypeDiocese OrganizationType = "diocese"
	TypeParish  OrganizationType = "parish"
)

// SubscriptionTier is the plan the tenant signed up for.
type SubscriptionTier string

const (
	TierSuperadmin SubscriptionTier = "superadmin"
	TierAdmin      SubscriptionTier = "admin"
)

// SubscriptionStatus is the stored status on the organization itself. The
// derived access state (active/grace/expired) is computed from this plus the
// end date, never stored.
type SubscriptionStatus string

const (
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Organization represents a tenant. Seat counters and the subscription
// window live on the row; both are only ever mutated through atomic
// UPDATEs because multiple API instances share the store.
type Organization struct {
	ID                    snowflake.ID       `gorm:"primaryKey" json:"id"`
	Name                  string             `gorm:"type:text;not null" json:"name"`
	Slug                  string             `gorm:"type:text;not null" json:"slug"`
	Type                  OrganizationType   `gorm:"type:text;not null" json:"type"`
	SubscriptionTier      SubscriptionTier   `gorm:"type:text;not null" json:"subscription_tier"`
	OwnerID               snowflake.ID       `gorm:"not null;uniqueIndex:ux_organizations_owner" json:"owner_id"`
	ParentOrganizationID  *snowflake.ID      `gorm:"index" json:"parent_organization_id,omitempty"`
	MaxAdminSeats         int                `gorm:"not null;default:0" json:"max_admin_seats"`
	UsedAdminSeats        int                `gorm:"not null;default:0" json:"used_admin_seats"`
	AllowedBranches       int                `gorm:"not null;default:1" json:"allowed_branches"`
	SubscriptionStatus    SubscriptionStatus `gorm:"type:text;not null;default:'trial'" json:"subscription_status"`
	SubscriptionStartDate time.Time          `gorm:"not null" json:"subscription_start_date"`
	SubscriptionEndDate   time.Time          `gorm:"not null" json:"subscription_end_date"`
	// No database default: gorm drops zero-value fields that carry a
	// default tag, which would silently turn false into true on insert.
	AutoRenew      bool              `gorm:"not null" json:"auto_renew"`
	ContactEmail   string            `gorm:"type:text;not null" json:"contact_email"`
	ContactPhone   *string           `gorm:"type:text" json:"contact_phone,omitempty"`
	ContactAddress datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"contact_address"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// CanIssueInvites reports whether the stored status permits invite creation.
// Trial tenants may invite; seat purchase is stricter and requires active.
func (o Organization) CanIssueInvites() bool {
	return o.SubscriptionStatus == SubscriptionActive || o.SubscriptionStatus == SubscriptionTrial
}
