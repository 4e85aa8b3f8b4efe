// Package domain contains subscription models and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlanType identifies what a subscription pays for.
type PlanType string

const (
	PlanSuperadmin      PlanType = "superadmin"
	PlanAdditionalAdmin PlanType = "additional_admin"
)

// Status is the lifecycle state of a subscription record. Only the
// transitions pending->active, active->cancelled and active->expired
// are meaningful; everything else is rejected.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// BillingCycleYearly is the only cycle sold; the column exists so the
// ledger stays honest if shorter cycles are ever introduced.
const BillingCycleYearly = "yearly"

// Subscription is one purchase record. The organization row carries the
// authoritative access window; subscriptions are the purchase ledger.
type Subscription struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	OrganizationID  snowflake.ID `gorm:"not null;index:idx_subscriptions_org_status" json:"organization_id"`
	PlanType        PlanType     `gorm:"type:text;not null" json:"plan_type"`
	Status          Status       `gorm:"type:text;not null;index:idx_subscriptions_org_status" json:"status"`
	Amount          int64        `gorm:"not null" json:"amount"`
	Currency        string       `gorm:"type:text;not null" json:"currency"`
	Seats           int          `gorm:"not null;default:0" json:"seats"`
	StartDate       time.Time    `gorm:"not null" json:"start_date"`
	EndDate         time.Time    `gorm:"not null" json:"end_date"`
	BillingCycle    string       `gorm:"type:text;not null" json:"billing_cycle"`
	// No database default: gorm drops zero-value fields that carry a
	// default tag, which would silently turn false into true on insert.
	AutoRenew         bool       `gorm:"not null" json:"auto_renew"`
	RazorpayOrderID   *string    `gorm:"type:text" json:"razorpay_order_id,omitempty"`
	TransactionID     *string    `gorm:"type:text" json:"transaction_id,omitempty"`
	RazorpayPaymentID *string    `gorm:"type:text" json:"razorpay_payment_id,omitempty"`
	PaymentMethod     *string    `gorm:"type:text" json:"payment_method,omitempty"`
	PaymentDate       *time.Time `json:"payment_date,omitempty"`
	ReceiptURL        *string    `gorm:"type:text" json:"receipt_url,omitempty"`
	Notes             *string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
