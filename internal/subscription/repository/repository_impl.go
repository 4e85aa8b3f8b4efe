package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/subscription/domain"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a gorm-backed subscription repository.
func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *domain.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).First(&sub, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindByOrganization(ctx context.Context, orgID snowflake.ID) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) FindActiveByOrganization(ctx context.Context, orgID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND plan_type = ?", orgID, domain.StatusActive, domain.PlanSuperadmin).
		Order("end_date DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repository) Activate(ctx context.Context, id snowflake.ID, settle domain.Settlement, start, end time.Time) error {
	fields := map[string]any{
		"status":         domain.StatusActive,
		"transaction_id": settle.TransactionID,
		"payment_date":   settle.PaidAt,
		"start_date":     start,
		"end_date":       end,
	}
	if settle.PaymentID != "" {
		fields["razorpay_payment_id"] = settle.PaymentID
	}
	if settle.ReceiptURL != nil {
		fields["receipt_url"] = *settle.ReceiptURL
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotPending
	}
	return nil
}

func (r *repository) SetStatus(ctx context.Context, id snowflake.ID, status domain.Status) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repository) SetAutoRenew(ctx context.Context, id snowflake.ID, autoRenew bool) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("id = ?", id).
		Update("auto_renew", autoRenew)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}

func (r *repository) UpcomingRenewals(ctx context.Context, from, until time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND auto_renew = ? AND end_date >= ? AND end_date < ?",
			domain.StatusActive, true, from, until).
		Order("end_date ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) UpcomingRenewalsByOrganization(ctx context.Context, orgID snowflake.ID, from, until time.Time) ([]domain.Subscription, error) {
	var subs []domain.Subscription
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND status = ? AND auto_renew = ? AND end_date >= ? AND end_date < ?",
			orgID, domain.StatusActive, true, from, until).
		Order("end_date ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
