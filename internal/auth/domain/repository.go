package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository defines the persistence operations for users.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	BindOrganization(ctx context.Context, id, orgID snowflake.ID, role Role) error
	CountByOrganization(ctx context.Context, orgID snowflake.ID, role Role) (int64, error)
}
