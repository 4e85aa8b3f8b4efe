package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	userdomain "github.com/parishkeep/parishkeep/internal/auth/domain"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	"github.com/parishkeep/parishkeep/internal/organization/domain"
	subdomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
	"github.com/parishkeep/parishkeep/pkg/db"
)

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	users   userdomain.Repository
	subs    subdomain.Repository
	invites invitedomain.Repository
	orders  subdomain.OrderCreator
	pricing *config.PricingConfigHolder
	clk     clock.Clock
	genID   *snowflake.Node
	log     *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	users userdomain.Repository,
	subs subdomain.Repository,
	invites invitedomain.Repository,
	orders subdomain.OrderCreator,
	pricing *config.PricingConfigHolder,
	clk clock.Clock,
	genID *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:      gdb,
		repo:    repo,
		users:   users,
		subs:    subs,
		invites: invites,
		orders:  orders,
		pricing: pricing,
		clk:     clk,
		genID:   genID,
		log:     log,
	}
}

func (s *service) Create(ctx context.Context, ownerID snowflake.ID, req domain.CreateRequest) (*domain.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	switch req.Type {
	case domain.TypeDiocese, domain.TypeParish:
	default:
		return nil, domain.ErrInvalidType
	}
	switch req.SubscriptionTier {
	case domain.TierSuperadmin, domain.TierAdmin:
	default:
		return nil, domain.ErrInvalidTier
	}

	if _, err := s.repo.FindByOwner(ctx, ownerID); err == nil {
		return nil, domain.ErrOwnerAlreadyBound
	} else if err != domain.ErrOrganizationNotFound {
		return nil, err
	}

	prices := s.pricing.Get()
	now := s.clk.Now()
	start := now
	end := clock.AddYears(now, prices.SubscriptionYears)

	// Only the superadmin tier ships with admin seats; the owner does
	// not occupy one.
	seats := 0
	role := userdomain.RoleAdmin
	if req.SubscriptionTier == domain.TierSuperadmin {
		seats = prices.IncludedAdminSeats
		role = userdomain.RoleSuperadmin
	}

	address := datatypes.JSONMap{}
	for k, v := range req.ContactAddress {
		address[k] = v
	}

	org := &domain.Organization{
		ID:                    s.genID.Generate(),
		Name:                  name,
		Slug:                  slug.Make(name),
		Type:                  req.Type,
		SubscriptionTier:      req.SubscriptionTier,
		OwnerID:               ownerID,
		ParentOrganizationID:  req.ParentOrganizationID,
		MaxAdminSeats:         seats,
		UsedAdminSeats:        0,
		AllowedBranches:       1,
		SubscriptionStatus:    domain.SubscriptionTrial,
		SubscriptionStartDate: start,
		SubscriptionEndDate:   end,
		AutoRenew:             true,
		ContactEmail:          strings.TrimSpace(req.ContactEmail),
		ContactPhone:          req.ContactPhone,
		ContactAddress:        address,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	// The seeded subscription carries a live order so the owner can pay
	// it straight away.
	var seedSub *subdomain.Subscription
	if req.SubscriptionTier == domain.TierSuperadmin {
		subID := s.genID.Generate()
		order, err := s.orders.CreateOrder(ctx, prices.SuperadminAmount, prices.Currency, fmt.Sprintf("sub_%s", subID.String()))
		if err != nil {
			return nil, err
		}
		seedSub = &subdomain.Subscription{
			ID:              subID,
			OrganizationID:  org.ID,
			PlanType:        subdomain.PlanSuperadmin,
			Status:          subdomain.StatusPending,
			Amount:          prices.SuperadminAmount,
			Currency:        prices.Currency,
			Seats:           seats,
			StartDate:       start,
			EndDate:         end,
			BillingCycle:    subdomain.BillingCycleYearly,
			AutoRenew:       true,
			RazorpayOrderID: &order.OrderID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, org); err != nil {
			return err
		}

		if err := s.users.WithTx(tx).BindOrganization(ctx, ownerID, org.ID, role); err != nil {
			return err
		}

		if seedSub != nil {
			if err := s.subs.WithTx(tx).Create(ctx, seedSub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrOwnerAlreadyBound
		}
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("organization_id", org.ID.String()),
		zap.String("tier", string(org.SubscriptionTier)),
	)

	return org, nil
}

func (s *service) GetByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) GetMine(ctx context.Context, ownerID snowflake.ID) (*domain.Organization, error) {
	return s.repo.FindByOwner(ctx, ownerID)
}

func (s *service) UpdateProfile(ctx context.Context, id, callerID snowflake.ID, req domain.UpdateProfileRequest) (*domain.Organization, error) {
	org, err := s.ownedOrganization(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != "" {
			org.Name = name
			org.Slug = slug.Make(name)
		}
	}
	if req.ContactEmail != nil {
		org.ContactEmail = strings.TrimSpace(*req.ContactEmail)
	}
	if req.ContactPhone != nil {
		org.ContactPhone = req.ContactPhone
	}
	if req.ContactAddress != nil {
		address := datatypes.JSONMap{}
		for k, v := range req.ContactAddress {
			address[k] = v
		}
		org.ContactAddress = address
	}
	org.UpdatedAt = s.clk.Now()

	if err := s.repo.UpdateProfile(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// PurchaseAdminSeats grants the seats before any payment settles. The
// increment is a single atomic UPDATE so concurrent purchases both
// land; the cap is allowed to run ahead of collected revenue.
func (s *service) PurchaseAdminSeats(ctx context.Context, id, callerID snowflake.ID, req domain.PurchaseSeatsRequest) (*domain.SeatPurchase, error) {
	if req.Seats <= 0 {
		return nil, domain.ErrInvalidSeatCount
	}

	org, err := s.ownedOrganization(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionStatus != domain.SubscriptionActive {
		return nil, domain.ErrSubscriptionInactive
	}

	prices := s.pricing.Get()
	now := s.clk.Now()
	amount := prices.AdditionalAdminSeat * int64(req.Seats)

	subID := s.genID.Generate()
	order, err := s.orders.CreateOrder(ctx, amount, prices.Currency, fmt.Sprintf("sub_%s", subID.String()))
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).AddAdminSeats(ctx, org.ID, req.Seats); err != nil {
			return err
		}

		// The seat subscription rides the organization's current
		// window instead of opening its own year.
		sub := &subdomain.Subscription{
			ID:              subID,
			OrganizationID:  org.ID,
			PlanType:        subdomain.PlanAdditionalAdmin,
			Status:          subdomain.StatusPending,
			Amount:          amount,
			Currency:        prices.Currency,
			Seats:           req.Seats,
			StartDate:       now,
			EndDate:         org.SubscriptionEndDate,
			BillingCycle:    subdomain.BillingCycleYearly,
			AutoRenew:       true,
			RazorpayOrderID: &order.OrderID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return s.subs.WithTx(tx).Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.FindByID(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	return &domain.SeatPurchase{
		OrganizationID:  org.ID,
		SubscriptionID:  subID,
		RazorpayOrderID: order.OrderID,
		SeatsAdded:      req.Seats,
		MaxAdminSeats:   updated.MaxAdminSeats,
		AmountDue:       amount,
		Currency:        prices.Currency,
		EndDate:         org.SubscriptionEndDate,
	}, nil
}

func (s *service) GetStats(ctx context.Context, id, callerID snowflake.ID) (*domain.Stats, error) {
	org, err := s.ownedOrganization(ctx, id, callerID)
	if err != nil {
		return nil, err
	}

	active, err := s.invites.CountByOrganization(ctx, org.ID, invitedomain.StoredActive, false)
	if err != nil {
		return nil, err
	}
	redeemed, err := s.invites.CountByOrganization(ctx, org.ID, invitedomain.StoredActive, true)
	if err != nil {
		return nil, err
	}

	return &domain.Stats{
		OrganizationID:     org.ID,
		SubscriptionStatus: org.SubscriptionStatus,
		SubscriptionEnd:    org.SubscriptionEndDate,
		MaxAdminSeats:      org.MaxAdminSeats,
		UsedAdminSeats:     org.UsedAdminSeats,
		ActiveInvites:      active,
		RedeemedInvites:    redeemed,
	}, nil
}

func (s *service) ownedOrganization(ctx context.Context, id, callerID snowflake.ID) (*domain.Organization, error) {
	org, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if org.OwnerID != callerID {
		return nil, domain.ErrNotOwner
	}
	return org, nil
}
