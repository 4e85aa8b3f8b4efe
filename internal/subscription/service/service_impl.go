package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/access"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	"github.com/parishkeep/parishkeep/internal/subscription/domain"
)

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	orgs    orgdomain.Repository
	orders  domain.OrderCreator
	pricing *config.PricingConfigHolder
	clk     clock.Clock
	genID   *snowflake.Node
	log     *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	orgs orgdomain.Repository,
	orders domain.OrderCreator,
	pricing *config.PricingConfigHolder,
	clk clock.Clock,
	genID *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:      gdb,
		repo:    repo,
		orgs:    orgs,
		orders:  orders,
		pricing: pricing,
		clk:     clk,
		genID:   genID,
		log:     log,
	}
}

func (s *service) List(ctx context.Context, orgID, callerID snowflake.ID) ([]domain.Subscription, error) {
	if _, err := s.ownedOrganization(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	return s.repo.FindByOrganization(ctx, orgID)
}

func (s *service) GetActive(ctx context.Context, orgID, callerID snowflake.ID) (*domain.Subscription, error) {
	if _, err := s.ownedOrganization(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	return s.repo.FindActiveByOrganization(ctx, orgID)
}

func (s *service) GetStatus(ctx context.Context, orgID, callerID snowflake.ID) (*domain.StatusResponse, error) {
	org, err := s.ownedOrganization(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}

	graceDays := s.pricing.Get().GraceDays
	decision := access.Evaluate(string(org.SubscriptionStatus), org.SubscriptionEndDate, s.clk.Now(), graceDays)

	return &domain.StatusResponse{
		OrganizationID:     org.ID,
		SubscriptionStatus: string(org.SubscriptionStatus),
		StartDate:          org.SubscriptionStartDate,
		EndDate:            org.SubscriptionEndDate,
		AutoRenew:          org.AutoRenew,
		Access:             decision,
	}, nil
}

func (s *service) GetPricing(ctx context.Context) (*domain.Pricing, error) {
	p := s.pricing.Get()
	return &domain.Pricing{
		Currency:            p.Currency,
		SuperadminAmount:    p.SuperadminAmount,
		AdditionalAdminSeat: p.AdditionalAdminSeat,
		IncludedAdminSeats:  p.IncludedAdminSeats,
		SubscriptionYears:   p.SubscriptionYears,
		GraceDays:           p.GraceDays,
	}, nil
}

func (s *service) Initiate(ctx context.Context, orgID, callerID snowflake.ID, req domain.InitiateRequest) (*domain.InitiateResponse, error) {
	org, err := s.ownedOrganization(ctx, orgID, callerID)
	if err != nil {
		return nil, err
	}

	prices := s.pricing.Get()
	now := s.clk.Now()

	var amount int64
	var seats int
	start := now
	var end = clock.AddYears(start, prices.SubscriptionYears)

	switch req.PlanType {
	case domain.PlanSuperadmin:
		amount = prices.SuperadminAmount
		seats = prices.IncludedAdminSeats
		// Renewals restart the window from now. Confirm replaces the
		// organization's window wholesale, so an early renewal shortens
		// nothing silently: the client sees the dates on the order.
	case domain.PlanAdditionalAdmin:
		if req.Seats <= 0 {
			return nil, orgdomain.ErrInvalidSeatCount
		}
		if org.SubscriptionStatus != orgdomain.SubscriptionActive {
			return nil, orgdomain.ErrSubscriptionInactive
		}
		seats = req.Seats
		amount = prices.AdditionalAdminSeat * int64(req.Seats)
		// Seat purchases ride the current window instead of opening
		// their own year.
		end = org.SubscriptionEndDate
	default:
		return nil, domain.ErrInvalidPlanType
	}

	subID := s.genID.Generate()
	receipt := fmt.Sprintf("sub_%s", subID.String())
	order, err := s.orders.CreateOrder(ctx, amount, prices.Currency, receipt)
	if err != nil {
		return nil, err
	}

	sub := &domain.Subscription{
		ID:              subID,
		OrganizationID:  org.ID,
		PlanType:        req.PlanType,
		Status:          domain.StatusPending,
		Amount:          amount,
		Currency:        prices.Currency,
		Seats:           seats,
		StartDate:       start,
		EndDate:         end,
		BillingCycle:    domain.BillingCycleYearly,
		AutoRenew:       true,
		RazorpayOrderID: &order.OrderID,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if method := strings.TrimSpace(req.PaymentMethod); method != "" {
		sub.PaymentMethod = &method
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if sub.PlanType == domain.PlanAdditionalAdmin {
			// Capacity is granted at purchase-intent time, before the
			// payment settles.
			if err := s.orgs.WithTx(tx).AddAdminSeats(ctx, org.ID, seats); err != nil {
				return err
			}
		}
		return s.repo.WithTx(tx).Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription initiated",
		zap.String("subscription_id", subID.String()),
		zap.String("plan_type", string(req.PlanType)),
		zap.Int64("amount", amount),
	)

	return &domain.InitiateResponse{Subscription: sub, Order: order}, nil
}

func (s *service) Confirm(ctx context.Context, subscriptionID, callerID snowflake.ID, req domain.ConfirmRequest) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	org, err := s.ownedOrganization(ctx, sub.OrganizationID, callerID)
	if err != nil {
		return nil, err
	}
	if sub.Status != domain.StatusPending {
		return nil, domain.ErrNotPending
	}
	if sub.RazorpayOrderID == nil || *sub.RazorpayOrderID != req.TransactionID {
		return nil, domain.ErrTransactionMismatch
	}

	settle := domain.Settlement{
		TransactionID: req.TransactionID,
		PaymentID:     req.PaymentID,
		ReceiptURL:    req.ReceiptURL,
		PaidAt:        s.clk.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Activate(ctx, sub.ID, settle, sub.StartDate, sub.EndDate); err != nil {
			return err
		}

		// The confirmed window replaces whatever the organization
		// carried, trial included. Seat purchases carry the window
		// they copied at purchase time, so this holds for them too;
		// their capacity was already granted at intent.
		return s.orgs.WithTx(tx).ApplySubscriptionWindow(ctx,
			org.ID, orgdomain.SubscriptionActive, sub.StartDate, sub.EndDate, org.AutoRenew)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("subscription confirmed",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("transaction_id", req.TransactionID),
	)

	return s.repo.FindByID(ctx, sub.ID)
}

// Cancel marks the current plan subscription cancelled and turns off
// auto renewal. The organization keeps its window until the end date;
// the sweep and the request-time gate handle what happens after.
func (s *service) Cancel(ctx context.Context, orgID, callerID snowflake.ID) error {
	org, err := s.ownedOrganization(ctx, orgID, callerID)
	if err != nil {
		return err
	}

	sub, err := s.latestPlanSubscription(ctx, orgID)
	if err != nil {
		return err
	}
	if sub.Status == domain.StatusCancelled || sub.Status == domain.StatusExpired {
		return domain.ErrAlreadyTerminal
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.SetStatus(ctx, sub.ID, domain.StatusCancelled); err != nil {
			return err
		}
		if err := repo.SetAutoRenew(ctx, sub.ID, false); err != nil {
			return err
		}
		return s.orgs.WithTx(tx).SetAutoRenew(ctx, org.ID, false)
	})
	if err != nil {
		return err
	}

	s.log.Info("subscription cancelled",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("organization_id", orgID.String()),
	)
	return nil
}

func (s *service) UpcomingRenewals(ctx context.Context, orgID, callerID snowflake.ID, days int) ([]domain.Subscription, error) {
	if _, err := s.ownedOrganization(ctx, orgID, callerID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = s.pricing.Get().RenewalWindowDays
	}
	now := s.clk.Now()
	return s.repo.UpcomingRenewalsByOrganization(ctx, orgID, now, clock.AddDays(now, days))
}

// latestPlanSubscription returns the newest superadmin plan record for
// the tenant regardless of status, so Cancel can tell "nothing to
// cancel" apart from "already terminal".
func (s *service) latestPlanSubscription(ctx context.Context, orgID snowflake.ID) (*domain.Subscription, error) {
	subs, err := s.repo.FindByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].PlanType == domain.PlanSuperadmin {
			return &subs[i], nil
		}
	}
	return nil, domain.ErrSubscriptionNotFound
}

func (s *service) ownedOrganization(ctx context.Context, orgID, callerID snowflake.ID) (*orgdomain.Organization, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.OwnerID != callerID {
		return nil, orgdomain.ErrNotOwner
	}
	return org, nil
}
