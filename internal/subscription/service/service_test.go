package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/access"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	orgrepository "github.com/parishkeep/parishkeep/internal/organization/repository"
	"github.com/parishkeep/parishkeep/internal/subscription/domain"
	"github.com/parishkeep/parishkeep/internal/subscription/repository"
)

type fakeOrders struct {
	calls int
}

func (f *fakeOrders) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*domain.Order, error) {
	f.calls++
	return &domain.Order{
		OrderID:  fmt.Sprintf("order_fake_%d", f.calls),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func setupSubTest(t *testing.T) (*gorm.DB, domain.Service, *clock.FakeClock, *snowflake.Node, *fakeOrders) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	db.Exec(`CREATE TABLE organizations (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		type TEXT NOT NULL,
		subscription_tier TEXT NOT NULL,
		owner_id BIGINT NOT NULL UNIQUE,
		parent_organization_id BIGINT,
		max_admin_seats INTEGER NOT NULL DEFAULT 0,
		used_admin_seats INTEGER NOT NULL DEFAULT 0,
		allowed_branches INTEGER NOT NULL DEFAULT 1,
		subscription_status TEXT NOT NULL DEFAULT 'trial',
		subscription_start_date TIMESTAMP NOT NULL,
		subscription_end_date TIMESTAMP NOT NULL,
		auto_renew BOOLEAN NOT NULL DEFAULT TRUE,
		contact_email TEXT NOT NULL,
		contact_phone TEXT,
		contact_address TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	db.Exec(`CREATE TABLE subscriptions (
		id BIGINT PRIMARY KEY,
		organization_id BIGINT NOT NULL,
		plan_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		amount BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'INR',
		seats INTEGER NOT NULL DEFAULT 0,
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP NOT NULL,
		billing_cycle TEXT NOT NULL DEFAULT 'yearly',
		auto_renew BOOLEAN NOT NULL,
		razorpay_order_id TEXT,
		transaction_id TEXT,
		razorpay_payment_id TEXT,
		payment_method TEXT,
		payment_date TIMESTAMP,
		receipt_url TEXT,
		notes TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	pricing := config.NewStaticPricingHolder(config.DefaultPricingConfig())
	orders := &fakeOrders{}

	svc := NewService(
		db,
		repository.NewRepository(db),
		orgrepository.NewRepository(db),
		orders,
		pricing,
		clk,
		node,
		zaptest.NewLogger(t),
	)
	return db, svc, clk, node, orders
}

func seedOrg(t *testing.T, db *gorm.DB, node *snowflake.Node, clk *clock.FakeClock, status orgdomain.SubscriptionStatus) *orgdomain.Organization {
	t.Helper()

	now := clk.Now()
	org := &orgdomain.Organization{
		ID:                    node.Generate(),
		Name:                  "Holy Cross Diocese",
		Slug:                  "holy-cross-diocese",
		Type:                  orgdomain.TypeDiocese,
		SubscriptionTier:      orgdomain.TierSuperadmin,
		OwnerID:               node.Generate(),
		MaxAdminSeats:         2,
		UsedAdminSeats:        1,
		AllowedBranches:       1,
		SubscriptionStatus:    status,
		SubscriptionStartDate: now,
		SubscriptionEndDate:   clock.AddYears(now, 1),
		AutoRenew:             true,
		ContactEmail:          "office@holycross.example",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, db.Create(org).Error)
	return org
}

func TestInitiateSubscription(t *testing.T) {
	db, svc, clk, node, orders := setupSubTest(t)
	ctx := context.Background()

	t.Run("SuperadminPlanCreatesPendingWithOrder", func(t *testing.T) {
		org := seedOrg(t, db, node, clk, orgdomain.SubscriptionTrial)

		resp, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
			PlanType: domain.PlanSuperadmin,
		})
		require.NoError(t, err)

		sub := resp.Subscription
		assert.Equal(t, domain.StatusPending, sub.Status)
		assert.Equal(t, int64(99999), sub.Amount)
		require.NotNil(t, sub.RazorpayOrderID)
		assert.Equal(t, resp.Order.OrderID, *sub.RazorpayOrderID)
		assert.Equal(t, clk.Now(), sub.StartDate)
		assert.Equal(t, clock.AddYears(clk.Now(), 1), sub.EndDate)
		assert.Equal(t, 1, orders.calls)
	})

	t.Run("RenewalRestartsWindowFromNow", func(t *testing.T) {
		org := seedOrg(t, db, node, clk, orgdomain.SubscriptionActive)

		resp, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
			PlanType: domain.PlanSuperadmin,
		})
		require.NoError(t, err)
		assert.WithinDuration(t, clk.Now(), resp.Subscription.StartDate, time.Second)
		assert.WithinDuration(t, clock.AddYears(clk.Now(), 1), resp.Subscription.EndDate, time.Second)
	})

	t.Run("PaymentMethodAndNotesRecorded", func(t *testing.T) {
		org := seedOrg(t, db, node, clk, orgdomain.SubscriptionTrial)

		notes := "renewal discussed over phone"
		resp, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
			PlanType:      domain.PlanSuperadmin,
			PaymentMethod: "upi",
			Notes:         &notes,
		})
		require.NoError(t, err)

		var stored domain.Subscription
		require.NoError(t, db.First(&stored, "id = ?", resp.Subscription.ID).Error)
		assert.Equal(t, domain.BillingCycleYearly, stored.BillingCycle)
		require.NotNil(t, stored.PaymentMethod)
		assert.Equal(t, "upi", *stored.PaymentMethod)
		require.NotNil(t, stored.Notes)
		assert.Equal(t, notes, *stored.Notes)
	})

	t.Run("SeatPlanNeedsPositiveCount", func(t *testing.T) {
		org := seedOrg(t, db, node, clk, orgdomain.SubscriptionActive)
		_, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
			PlanType: domain.PlanAdditionalAdmin,
		})
		assert.ErrorIs(t, err, orgdomain.ErrInvalidSeatCount)
	})

	t.Run("SeatPlanRequiresActiveSubscription", func(t *testing.T) {
		org := seedOrg(t, db, node, clk, orgdomain.SubscriptionTrial)
		_, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
			PlanType: domain.PlanAdditionalAdmin,
			Seats:    1,
		})
		assert.ErrorIs(t, err, orgdomain.ErrSubscriptionInactive)
	})

	t.Run("UnknownPlanRejected", func(t *testing.T) {
		org := seedOrg(t, db, node, clk, orgdomain.SubscriptionTrial)
		_, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{PlanType: "gold"})
		assert.ErrorIs(t, err, domain.ErrInvalidPlanType)
	})
}

func TestConfirmSubscription(t *testing.T) {
	db, svc, clk, node, _ := setupSubTest(t)
	ctx := context.Background()

	org := seedOrg(t, db, node, clk, orgdomain.SubscriptionTrial)
	resp, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
		PlanType: domain.PlanSuperadmin,
	})
	require.NoError(t, err)
	sub := resp.Subscription

	t.Run("MismatchedTransactionRejected", func(t *testing.T) {
		_, err := svc.Confirm(ctx, sub.ID, org.OwnerID, domain.ConfirmRequest{
			TransactionID: "order_someone_elses",
		})
		assert.ErrorIs(t, err, domain.ErrTransactionMismatch)
	})

	t.Run("MatchingTransactionActivatesAndReplacesWindow", func(t *testing.T) {
		receipt := "https://rzp.example/receipts/1"
		confirmed, err := svc.Confirm(ctx, sub.ID, org.OwnerID, domain.ConfirmRequest{
			TransactionID: *sub.RazorpayOrderID,
			PaymentID:     "pay_settled_1",
			ReceiptURL:    &receipt,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.StatusActive, confirmed.Status)
		require.NotNil(t, confirmed.TransactionID)
		assert.Equal(t, *sub.RazorpayOrderID, *confirmed.TransactionID)
		require.NotNil(t, confirmed.RazorpayPaymentID)
		assert.Equal(t, "pay_settled_1", *confirmed.RazorpayPaymentID)
		require.NotNil(t, confirmed.PaymentDate)
		assert.WithinDuration(t, clk.Now(), *confirmed.PaymentDate, time.Second)
		require.NotNil(t, confirmed.ReceiptURL)
		assert.Equal(t, receipt, *confirmed.ReceiptURL)

		var updated orgdomain.Organization
		require.NoError(t, db.First(&updated, "id = ?", org.ID).Error)
		assert.Equal(t, orgdomain.SubscriptionActive, updated.SubscriptionStatus)
		assert.WithinDuration(t, sub.StartDate, updated.SubscriptionStartDate, time.Second)
		assert.WithinDuration(t, sub.EndDate, updated.SubscriptionEndDate, time.Second)
	})

	t.Run("DoubleConfirmRejected", func(t *testing.T) {
		_, err := svc.Confirm(ctx, sub.ID, org.OwnerID, domain.ConfirmRequest{
			TransactionID: *sub.RazorpayOrderID,
		})
		assert.ErrorIs(t, err, domain.ErrNotPending)
	})

	t.Run("SeatPlanGrantsSeatsAtIntent", func(t *testing.T) {
		seatResp, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
			PlanType: domain.PlanAdditionalAdmin,
			Seats:    2,
		})
		require.NoError(t, err)

		var granted orgdomain.Organization
		require.NoError(t, db.First(&granted, "id = ?", org.ID).Error)
		assert.Equal(t, 4, granted.MaxAdminSeats)
		assert.WithinDuration(t, granted.SubscriptionEndDate, seatResp.Subscription.EndDate, time.Second)

		_, err = svc.Confirm(ctx, seatResp.Subscription.ID, org.OwnerID, domain.ConfirmRequest{
			TransactionID: *seatResp.Subscription.RazorpayOrderID,
		})
		require.NoError(t, err)

		// Confirm mirrors the purchase window onto the organization;
		// the capacity was already granted at intent.
		var updated orgdomain.Organization
		require.NoError(t, db.First(&updated, "id = ?", org.ID).Error)
		assert.Equal(t, 4, updated.MaxAdminSeats)
		assert.WithinDuration(t, seatResp.Subscription.EndDate, updated.SubscriptionEndDate, time.Second)
	})
}

func TestCancelSubscription(t *testing.T) {
	db, svc, clk, node, _ := setupSubTest(t)
	ctx := context.Background()

	org := seedOrg(t, db, node, clk, orgdomain.SubscriptionTrial)
	resp, err := svc.Initiate(ctx, org.ID, org.OwnerID, domain.InitiateRequest{
		PlanType: domain.PlanSuperadmin,
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, resp.Subscription.ID, org.OwnerID, domain.ConfirmRequest{
		TransactionID: *resp.Subscription.RazorpayOrderID,
	})
	require.NoError(t, err)

	var before orgdomain.Organization
	require.NoError(t, db.First(&before, "id = ?", org.ID).Error)

	require.NoError(t, svc.Cancel(ctx, org.ID, org.OwnerID))

	// The paid window survives the cancellation; only renewal stops.
	var after orgdomain.Organization
	require.NoError(t, db.First(&after, "id = ?", org.ID).Error)
	assert.False(t, after.AutoRenew)
	assert.Equal(t, orgdomain.SubscriptionActive, after.SubscriptionStatus)
	assert.WithinDuration(t, before.SubscriptionEndDate, after.SubscriptionEndDate, time.Second)

	var sub domain.Subscription
	require.NoError(t, db.First(&sub, "id = ?", resp.Subscription.ID).Error)
	assert.False(t, sub.AutoRenew)
	assert.Equal(t, domain.StatusCancelled, sub.Status)

	assert.ErrorIs(t, svc.Cancel(ctx, org.ID, org.OwnerID), domain.ErrAlreadyTerminal)
}

func TestGetStatus(t *testing.T) {
	db, svc, clk, node, _ := setupSubTest(t)
	ctx := context.Background()

	org := seedOrg(t, db, node, clk, orgdomain.SubscriptionActive)

	t.Run("ActiveTenant", func(t *testing.T) {
		status, err := svc.GetStatus(ctx, org.ID, org.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, access.StateActive, status.Access.State)
		assert.Equal(t, 365, status.Access.DaysRemaining)
	})

	t.Run("GraceTenant", func(t *testing.T) {
		clk.Advance(370 * 24 * time.Hour)
		defer clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		status, err := svc.GetStatus(ctx, org.ID, org.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, access.StateGrace, status.Access.State)
		assert.Equal(t, 5, status.Access.DaysPastDue)
	})

	t.Run("ExpiredTenant", func(t *testing.T) {
		clk.Advance((365 + 40) * 24 * time.Hour)
		defer clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

		status, err := svc.GetStatus(ctx, org.ID, org.OwnerID)
		require.NoError(t, err)
		assert.Equal(t, access.StateExpired, status.Access.State)
	})
}

func TestUpcomingRenewals(t *testing.T) {
	db, svc, clk, node, _ := setupSubTest(t)
	ctx := context.Background()

	now := clk.Now()
	mkSub := func(orgID snowflake.ID, end time.Time, autoRenew bool, status domain.Status) snowflake.ID {
		sub := &domain.Subscription{
			ID:             node.Generate(),
			OrganizationID: orgID,
			PlanType:       domain.PlanSuperadmin,
			Status:         status,
			Amount:         99999,
			Currency:       "INR",
			StartDate:      clock.AddYears(end, -1),
			EndDate:        end,
			BillingCycle:   domain.BillingCycleYearly,
			AutoRenew:      autoRenew,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		require.NoError(t, db.Create(sub).Error)
		return sub.ID
	}

	mine := seedOrg(t, db, node, clk, orgdomain.SubscriptionActive)
	other := seedOrg(t, db, node, clk, orgdomain.SubscriptionActive)

	renewing := mkSub(mine.ID, clock.AddDays(now, 10), true, domain.StatusActive)
	mkSub(mine.ID, clock.AddDays(now, 45), true, domain.StatusActive)
	optedOut := mkSub(mine.ID, clock.AddDays(now, 10), false, domain.StatusActive)
	mkSub(mine.ID, clock.AddDays(now, 10), true, domain.StatusCancelled)
	mkSub(other.ID, clock.AddDays(now, 10), true, domain.StatusActive)

	t.Run("OptOutSurvivesPersistence", func(t *testing.T) {
		var stored domain.Subscription
		require.NoError(t, db.First(&stored, "id = ?", optedOut).Error)
		assert.False(t, stored.AutoRenew)
	})

	t.Run("OnlyOwnTenantRowsReturned", func(t *testing.T) {
		subs, err := svc.UpcomingRenewals(ctx, mine.ID, mine.OwnerID, 30)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, renewing, subs[0].ID)
	})

	t.Run("StrangerRejected", func(t *testing.T) {
		_, err := svc.UpcomingRenewals(ctx, mine.ID, other.OwnerID, 30)
		assert.ErrorIs(t, err, orgdomain.ErrNotOwner)
	})
}
