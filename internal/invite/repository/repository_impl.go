package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/invite/domain"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed invite code repository.
func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, code *domain.InviteCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.InviteCode, error) {
	var code domain.InviteCode
	err := r.db.WithContext(ctx).First(&code, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *repository) FindByCode(ctx context.Context, raw string) (*domain.InviteCode, error) {
	var code domain.InviteCode
	err := r.db.WithContext(ctx).First(&code, "code = ?", raw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *repository) ListByOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.InviteCode, error) {
	var codes []domain.InviteCode
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// Claim is the whole redemption race in one statement. Every guard
// lives in the WHERE clause so two concurrent redeemers of a last use
// cannot both pass.
func (r *repository) Claim(ctx context.Context, raw string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&domain.InviteCode{}).
		Where("code = ? AND status = ? AND expires_at >= ? AND current_uses < max_uses",
			raw, domain.StoredActive, now).
		Updates(map[string]any{
			"current_uses": gorm.Expr("current_uses + 1"),
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) AttachRedeemer(ctx context.Context, raw string, userID snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&domain.InviteCode{}).
		Where("code = ? AND used_by IS NULL", raw).
		Updates(map[string]any{
			"used_by": userID,
			"used_at": at,
		}).Error
}

func (r *repository) Revoke(ctx context.Context, id snowflake.ID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&domain.InviteCode{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.StoredRevoked,
			"updated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func (r *repository) CountByOrganization(ctx context.Context, orgID snowflake.ID, stored domain.StoredStatus, redeemedOnly bool) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.InviteCode{}).
		Where("organization_id = ? AND status = ?", orgID, stored)
	if redeemedOnly {
		q = q.Where("current_uses > 0")
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
