package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	authdomain "github.com/parishkeep/parishkeep/internal/auth/domain"
	userrepository "github.com/parishkeep/parishkeep/internal/auth/repository"
	authservice "github.com/parishkeep/parishkeep/internal/auth/service"
	"github.com/parishkeep/parishkeep/internal/auth/token"
	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	inviterepository "github.com/parishkeep/parishkeep/internal/invite/repository"
	inviteservice "github.com/parishkeep/parishkeep/internal/invite/service"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	orgrepository "github.com/parishkeep/parishkeep/internal/organization/repository"
	orgservice "github.com/parishkeep/parishkeep/internal/organization/service"
	subdomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
	subrepository "github.com/parishkeep/parishkeep/internal/subscription/repository"
)

type stubOrders struct {
	calls int
}

func (f *stubOrders) CreateOrder(_ context.Context, amount int64, currency, receipt string) (*subdomain.Order, error) {
	f.calls++
	return &subdomain.Order{
		OrderID:  fmt.Sprintf("order_stub_%d", f.calls),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

type serverFixture struct {
	engine    *gin.Engine
	authSvc   authdomain.Service
	orgSvc    orgdomain.Service
	inviteSvc invitedomain.Service
	node      *snowflake.Node
}

func setupServerTest(t *testing.T) *serverFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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
		auto_renew BOOLEAN NOT NULL,
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

	// jwt checks expiry against the wall clock, so the fake clock has to
	// start at the present for issued tokens to parse.
	clk := clock.NewFakeClock(time.Now().UTC().Truncate(time.Second))
	pricing := config.NewStaticPricingHolder(config.DefaultPricingConfig())
	log := zaptest.NewLogger(t)

	orgRepo := orgrepository.NewRepository(db)
	userRepo := userrepository.NewRepository(db)
	subRepo := subrepository.NewRepository(db)
	inviteRepo := inviterepository.NewRepository(db)

	inviteSvc := inviteservice.NewService(db, inviteRepo, orgRepo, pricing, clk, node, log)
	orgSvc := orgservice.NewService(db, orgRepo, userRepo, subRepo, inviteRepo, &stubOrders{}, pricing, clk, node, log)
	authSvc := authservice.NewService(db, userRepo, inviteSvc, orgRepo, token.NewIssuer("test-secret"), clk, node, log)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	s := &Server{
		engine:          engine,
		cfg:             &config.Config{},
		db:              db,
		log:             log,
		clk:             clk,
		genID:           node,
		pricing:         pricing,
		authSvc:         authSvc,
		organizationSvc: orgSvc,
		inviteSvc:       inviteSvc,
	}
	s.registerInviteRoutes()

	return &serverFixture{
		engine:    engine,
		authSvc:   authSvc,
		orgSvc:    orgSvc,
		inviteSvc: inviteSvc,
		node:      node,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestInviteManagementRequiresManagerRole(t *testing.T) {
	f := setupServerTest(t)
	ctx := context.Background()

	owner, err := f.authSvc.Register(ctx, authdomain.RegisterRequest{
		Email:     "rector@stmark.example",
		Password:  "a long passphrase",
		FirstName: "Ruth",
	})
	require.NoError(t, err)

	org, err := f.orgSvc.Create(ctx, owner.User.ID, orgdomain.CreateRequest{
		Name:             "St Mark Parish",
		Type:             orgdomain.TypeParish,
		SubscriptionTier: orgdomain.TierAdmin,
		ContactEmail:     "office@stmark.example",
	})
	require.NoError(t, err)

	seed, err := f.inviteSvc.Create(ctx, org.ID, owner.User.ID, invitedomain.CreateRequest{MaxUses: 5})
	require.NoError(t, err)

	member, err := f.authSvc.Register(ctx, authdomain.RegisterRequest{
		Email:      "chorister@stmark.example",
		Password:   "another passphrase",
		FirstName:  "Morgan",
		InviteCode: seed.Code,
	})
	require.NoError(t, err)

	t.Run("MemberCannotCreate", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/invites", member.Token, gin.H{"max_uses": 1})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("MemberCannotList", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/invites", member.Token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("MemberCannotRevoke", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/invites/%s/revoke", seed.ID), member.Token, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		verification, err := f.inviteSvc.Verify(ctx, seed.Code)
		require.NoError(t, err)
		assert.True(t, verification.Valid)
	})

	// The owner's token predates the organization, so creation must go
	// through the ownership fallback rather than the token claim.
	t.Run("OwnerCreates", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/invites", owner.Token, gin.H{"max_uses": 1})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("AnonymousRejected", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/invites", "", gin.H{"max_uses": 1})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("VerifyStaysPublic", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/invites/verify/"+seed.Code[1:], "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
