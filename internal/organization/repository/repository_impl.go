package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/organization/domain"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed organization repository.
func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindByOwner(ctx context.Context, ownerID snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "owner_id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrOrganizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) UpdateProfile(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", org.ID).
		Updates(map[string]any{
			"name":            org.Name,
			"slug":            org.Slug,
			"contact_email":   org.ContactEmail,
			"contact_phone":   org.ContactPhone,
			"contact_address": org.ContactAddress,
			"updated_at":      org.UpdatedAt,
		}).Error
}

func (r *repository) AddAdminSeats(ctx context.Context, id snowflake.ID, seats int) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Update("max_admin_seats", gorm.Expr("max_admin_seats + ?", seats))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func (r *repository) IncrementUsedSeats(ctx context.Context, id snowflake.ID) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Update("used_admin_seats", gorm.Expr("used_admin_seats + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func (r *repository) ApplySubscriptionWindow(ctx context.Context, id snowflake.ID, status domain.SubscriptionStatus, start, end time.Time, autoRenew bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subscription_status":     status,
			"subscription_start_date": start,
			"subscription_end_date":   end,
			"auto_renew":              autoRenew,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}

func (r *repository) SetAutoRenew(ctx context.Context, id snowflake.ID, autoRenew bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Update("auto_renew", autoRenew)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrOrganizationNotFound
	}
	return nil
}
