package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/auth/domain"
	"github.com/parishkeep/parishkeep/internal/auth/repository"
	"github.com/parishkeep/parishkeep/internal/auth/token"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	inviterepository "github.com/parishkeep/parishkeep/internal/invite/repository"
	inviteservice "github.com/parishkeep/parishkeep/internal/invite/service"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	orgrepository "github.com/parishkeep/parishkeep/internal/organization/repository"
)

type authFixture struct {
	db      *gorm.DB
	svc     domain.Service
	invites invitedomain.Service
	clk     *clock.FakeClock
	node    *snowflake.Node
}

func setupAuthTest(t *testing.T) *authFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	db.Exec(`CREATE TABLE users (
		id BIGINT PRIMARY KEY,
		email TEXT UNIQUE,
		phone TEXT UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'member',
		organization_id BIGINT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
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
	db.Exec(`CREATE TABLE invite_codes (
		id BIGINT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		organization_id BIGINT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		status TEXT NOT NULL DEFAULT 'active',
		max_uses INTEGER NOT NULL DEFAULT 1,
		current_uses INTEGER NOT NULL DEFAULT 0,
		expires_at TIMESTAMP NOT NULL,
		welcome_message TEXT,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_by BIGINT NOT NULL,
		used_by BIGINT,
		used_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	// jwt checks expiry against the wall clock, so the fake clock has to
	// start at the present for issued tokens to parse.
	clk := clock.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	pricing := config.NewStaticPricingHolder(config.DefaultPricingConfig())
	log := zaptest.NewLogger(t)

	orgs := orgrepository.NewRepository(db)
	invites := inviteservice.NewService(db, inviterepository.NewRepository(db), orgs, pricing, clk, node, log)

	svc := NewService(
		db,
		repository.NewRepository(db),
		invites,
		orgs,
		token.NewIssuer("test-secret"),
		clk,
		node,
		log,
	)
	return &authFixture{db: db, svc: svc, invites: invites, clk: clk, node: node}
}

func (f *authFixture) seedOrg(t *testing.T) *orgdomain.Organization {
	t.Helper()

	now := f.clk.Now()
	org := &orgdomain.Organization{
		ID:                    f.node.Generate(),
		Name:                  "All Saints Parish",
		Slug:                  "all-saints-parish",
		Type:                  orgdomain.TypeParish,
		SubscriptionTier:      orgdomain.TierSuperadmin,
		OwnerID:               f.node.Generate(),
		MaxAdminSeats:         2,
		UsedAdminSeats:        1,
		AllowedBranches:       1,
		SubscriptionStatus:    orgdomain.SubscriptionActive,
		SubscriptionStartDate: now,
		SubscriptionEndDate:   clock.AddYears(now, 1),
		AutoRenew:             true,
		ContactEmail:          "office@allsaints.example",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	require.NoError(t, f.db.Create(org).Error)
	return org
}

func TestRegisterAndLogin(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()

	resp, err := f.svc.Register(ctx, domain.RegisterRequest{
		Email:     "Sexton@Example.Com",
		Password:  "a long passphrase",
		FirstName: "Sam",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	require.NotNil(t, resp.User.Email)
	assert.Equal(t, "sexton@example.com", *resp.User.Email)
	assert.Equal(t, domain.RoleMember, resp.User.Role)
	assert.Nil(t, resp.User.OrganizationID)

	t.Run("DuplicateEmailRejected", func(t *testing.T) {
		_, err := f.svc.Register(ctx, domain.RegisterRequest{
			Email:     "sexton@example.com",
			Password:  "another passphrase",
			FirstName: "Sam",
		})
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
	})

	t.Run("LoginWithCorrectPassword", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, domain.LoginRequest{
			Email:    "sexton@example.com",
			Password: "a long passphrase",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("LoginWithWrongPassword", func(t *testing.T) {
		_, err := f.svc.Login(ctx, domain.LoginRequest{
			Email:    "sexton@example.com",
			Password: "nope",
		})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("TokenRoundTripsThroughAuthenticate", func(t *testing.T) {
		principal, err := f.svc.Authenticate(ctx, resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, principal.UserID)
	})
}

func TestRegisterWithInviteCode(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()
	org := f.seedOrg(t)

	code, err := f.invites.Create(ctx, org.ID, org.OwnerID, invitedomain.CreateRequest{Role: "admin"})
	require.NoError(t, err)

	resp, err := f.svc.Register(ctx, domain.RegisterRequest{
		Email:      "curate@allsaints.example",
		Password:   "a long passphrase",
		FirstName:  "Chris",
		InviteCode: code.Code,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.User.OrganizationID)
	assert.Equal(t, org.ID, *resp.User.OrganizationID)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)

	var updated orgdomain.Organization
	require.NoError(t, f.db.First(&updated, "id = ?", org.ID).Error)
	assert.Equal(t, 2, updated.UsedAdminSeats)

	var usedBy int64
	f.db.Raw("SELECT used_by FROM invite_codes WHERE id = ?", code.ID).Scan(&usedBy)
	assert.Equal(t, resp.User.ID.Int64(), usedBy)

	t.Run("ConsumedCodeCannotRegisterAgain", func(t *testing.T) {
		_, err := f.svc.Register(ctx, domain.RegisterRequest{
			Email:      "second@allsaints.example",
			Password:   "a long passphrase",
			FirstName:  "Sal",
			InviteCode: code.Code,
		})
		assert.ErrorIs(t, err, invitedomain.ErrCodeNotRedeemable)
	})
}

func TestMobileRegisterAndLogin(t *testing.T) {
	f := setupAuthTest(t)
	ctx := context.Background()
	org := f.seedOrg(t)

	code, err := f.invites.Create(ctx, org.ID, org.OwnerID, invitedomain.CreateRequest{})
	require.NoError(t, err)

	resp, err := f.svc.MobileRegister(ctx, domain.MobileRegisterRequest{
		Phone:      "+919876543210",
		Password:   "a long passphrase",
		FirstName:  "Maya",
		InviteCode: code.Code,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.User.Phone)
	assert.Equal(t, "+919876543210", *resp.User.Phone)
	assert.Equal(t, domain.RoleMember, resp.User.Role)
	require.NotNil(t, resp.User.OrganizationID)
	assert.Equal(t, org.ID, *resp.User.OrganizationID)

	login, err := f.svc.MobileLogin(ctx, domain.MobileLoginRequest{
		Phone:    "+919876543210",
		Password: "a long passphrase",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)
}
