package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/clock"
	"github.com/parishkeep/parishkeep/internal/config"
	"github.com/parishkeep/parishkeep/internal/invite/domain"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	"github.com/parishkeep/parishkeep/pkg/db"
)

// maxGenerateAttempts bounds the insert-retry loop when generated codes
// collide on the unique index.
const maxGenerateAttempts = 50

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	orgs    orgdomain.Repository
	pricing *config.PricingConfigHolder
	clk     clock.Clock
	genID   *snowflake.Node
	log     *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	orgs orgdomain.Repository,
	pricing *config.PricingConfigHolder,
	clk clock.Clock,
	genID *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:      gdb,
		repo:    repo,
		orgs:    orgs,
		pricing: pricing,
		clk:     clk,
		genID:   genID,
		log:     log,
	}
}

// NormalizeCode uppercases the input and restores the leading hash that
// clients routinely strip when typing codes.
func NormalizeCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code != "" && !strings.HasPrefix(code, "#") {
		code = "#" + code
	}
	return code
}

func (s *service) Verify(ctx context.Context, raw string) (*domain.Verification, error) {
	code := NormalizeCode(raw)
	if !domain.ValidFormat(code) {
		return nil, domain.ErrInvalidCodeFormat
	}

	rec, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	// Dead codes answer with their status only; the organization stays
	// hidden from whoever typed the code.
	status := domain.DeriveStatus(*rec, s.clk.Now())
	if status != domain.StatusActive {
		return nil, fmt.Errorf("%w: %s", domain.ErrCodeInactive, status)
	}

	org, err := s.orgs.FindByID(ctx, rec.OrganizationID)
	if err != nil {
		return nil, err
	}

	return &domain.Verification{
		Valid:            true,
		Code:             rec.Code,
		Status:           status,
		OrganizationID:   org.ID.String(),
		OrganizationName: org.Name,
		Role:             rec.Role,
		WelcomeMessage:   rec.WelcomeMessage,
	}, nil
}

func (s *service) Create(ctx context.Context, orgID, createdBy snowflake.ID, req domain.CreateRequest) (*domain.InviteCode, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.CanIssueInvites() {
		return nil, domain.ErrOrganizationInactive
	}
	return s.issue(ctx, s.repo, org.ID, createdBy, req)
}

func (s *service) BulkCreate(ctx context.Context, orgID, createdBy snowflake.ID, req domain.BulkCreateRequest) ([]domain.InviteCode, error) {
	if req.Count < 1 || req.Count > domain.MaxBulkCreate {
		return nil, domain.ErrInvalidBulkCount
	}

	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.CanIssueInvites() {
		return nil, domain.ErrOrganizationInactive
	}

	single := domain.CreateRequest{
		Role:           req.Role,
		MaxUses:        req.MaxUses,
		ExpiresAt:      req.ExpiresAt,
		WelcomeMessage: req.WelcomeMessage,
		Metadata:       req.Metadata,
	}

	codes := make([]domain.InviteCode, 0, req.Count)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for i := 0; i < req.Count; i++ {
			code, err := s.issue(ctx, repo, org.ID, createdBy, single)
			if err != nil {
				return err
			}
			codes = append(codes, *code)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// issue inserts a freshly generated code, retrying on unique index
// collisions rather than pre-checking for free codes.
func (s *service) issue(ctx context.Context, repo domain.Repository, orgID, createdBy snowflake.ID, req domain.CreateRequest) (*domain.InviteCode, error) {
	maxUses := req.MaxUses
	if maxUses == 0 {
		maxUses = 1
	}
	if maxUses < 1 {
		return nil, domain.ErrInvalidMaxUses
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = "member"
	}

	now := s.clk.Now()
	expiresAt := clock.AddMonths(now, s.pricing.Get().InviteExpiryMonths)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		raw, err := domain.GenerateCode()
		if err != nil {
			return nil, err
		}

		code := &domain.InviteCode{
			ID:             s.genID.Generate(),
			Code:           raw,
			OrganizationID: orgID,
			Role:           role,
			Status:         domain.StoredActive,
			MaxUses:        maxUses,
			CurrentUses:    0,
			ExpiresAt:      expiresAt,
			WelcomeMessage: req.WelcomeMessage,
			Metadata:       metadata,
			CreatedBy:      createdBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		err = repo.Create(ctx, code)
		if err == nil {
			return code, nil
		}
		if db.IsDuplicateKeyErr(err) {
			continue
		}
		return nil, err
	}
	return nil, domain.ErrGenerationExhausted
}

func (s *service) Redeem(ctx context.Context, raw string) (*domain.Redemption, error) {
	code := NormalizeCode(raw)
	if !domain.ValidFormat(code) {
		return nil, domain.ErrInvalidCodeFormat
	}

	claimed, err := s.repo.Claim(ctx, code, s.clk.Now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		if _, err := s.repo.FindByCode(ctx, code); err != nil {
			return nil, err
		}
		return nil, domain.ErrCodeNotRedeemable
	}

	rec, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	s.log.Info("invite code redeemed",
		zap.String("code", rec.Code),
		zap.String("organization_id", rec.OrganizationID.String()),
	)

	return &domain.Redemption{
		CodeID:         rec.ID,
		Code:           rec.Code,
		OrganizationID: rec.OrganizationID,
		Role:           rec.Role,
		WelcomeMessage: rec.WelcomeMessage,
		Metadata:       rec.Metadata,
	}, nil
}

func (s *service) AttachRedeemer(ctx context.Context, raw string, userID snowflake.ID) error {
	return s.repo.AttachRedeemer(ctx, NormalizeCode(raw), userID, s.clk.Now())
}

// Revoke is idempotent: revoking an expired, exhausted or already
// revoked code still lands on revoked.
func (s *service) Revoke(ctx context.Context, id, callerOrgID snowflake.ID) (*domain.InviteCode, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.OrganizationID != callerOrgID {
		return nil, domain.ErrNotCodeOwner
	}

	if err := s.repo.Revoke(ctx, id, s.clk.Now()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, orgID snowflake.ID) ([]domain.CodeView, error) {
	codes, err := s.repo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	views := make([]domain.CodeView, 0, len(codes))
	for _, c := range codes {
		views = append(views, domain.CodeView{
			InviteCode:    c,
			DerivedStatus: domain.DeriveStatus(c, now),
		})
	}
	return views, nil
}

func (s *service) Stats(ctx context.Context, orgID snowflake.ID) (*domain.StatsResponse, error) {
	codes, err := s.repo.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	stats := &domain.StatsResponse{Total: int64(len(codes))}
	for _, c := range codes {
		switch domain.DeriveStatus(c, now) {
		case domain.StatusActive:
			stats.Active++
		case domain.StatusExhausted:
			stats.Exhausted++
		case domain.StatusExpired:
			stats.Expired++
		case domain.StatusRevoked:
			stats.Revoked++
		}
		if c.CurrentUses > 0 {
			stats.Redeemed++
		}
		stats.TotalUses += int64(c.CurrentUses)
	}
	return stats, nil
}
