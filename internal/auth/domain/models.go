// Package domain contains identity models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is the user's role within their organization.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleMember     Role = "member"
)

// User is an identity. Email or phone may be absent but never both;
// web accounts register with email, mobile accounts with phone.
type User struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email          *string       `gorm:"type:text" json:"email,omitempty"`
	Phone          *string       `gorm:"type:text" json:"phone,omitempty"`
	PasswordHash   string        `gorm:"type:text;not null" json:"-"`
	FirstName      string        `gorm:"type:text;not null" json:"first_name"`
	LastName       string        `gorm:"type:text" json:"last_name"`
	Role           Role          `gorm:"type:text;not null;default:'member'" json:"role"`
	OrganizationID *snowflake.ID `gorm:"index" json:"organization_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
