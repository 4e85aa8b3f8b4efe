package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/parishkeep/parishkeep/internal/auth/domain"
	"github.com/parishkeep/parishkeep/internal/auth/password"
	"github.com/parishkeep/parishkeep/internal/auth/token"
	"github.com/parishkeep/parishkeep/internal/clock"
	invitedomain "github.com/parishkeep/parishkeep/internal/invite/domain"
	orgdomain "github.com/parishkeep/parishkeep/internal/organization/domain"
	"github.com/parishkeep/parishkeep/pkg/db"
)

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	invites invitedomain.Service
	orgs    orgdomain.Repository
	issuer  *token.Issuer
	clk     clock.Clock
	genID   *snowflake.Node
	log     *zap.Logger
}

func NewService(
	gdb *gorm.DB,
	repo domain.Repository,
	invites invitedomain.Service,
	orgs orgdomain.Repository,
	issuer *token.Issuer,
	clk clock.Clock,
	genID *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:      gdb,
		repo:    repo,
		invites: invites,
		orgs:    orgs,
		issuer:  issuer,
		clk:     clk,
		genID:   genID,
		log:     log,
	}
}

func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if err != domain.ErrUserNotFound {
		return nil, err
	}

	user, err := s.createAccount(ctx, &email, nil, req.Password, req.FirstName, req.LastName, req.InviteCode)
	if err != nil {
		return nil, err
	}
	return s.respond(user, token.WebTTL)
}

func (s *service) MobileRegister(ctx context.Context, req domain.MobileRegisterRequest) (*domain.AuthResponse, error) {
	phone := strings.TrimSpace(req.Phone)
	if _, err := s.repo.FindByPhone(ctx, phone); err == nil {
		return nil, domain.ErrPhoneTaken
	} else if err != domain.ErrUserNotFound {
		return nil, err
	}

	user, err := s.createAccount(ctx, nil, &phone, req.Password, req.FirstName, req.LastName, req.InviteCode)
	if err != nil {
		return nil, err
	}
	return s.respond(user, token.MobileTTL)
}

// createAccount builds the user row, redeeming an invite first when one
// is supplied. The invite claim happens before the insert; a failed
// insert does not return the use, which keeps redemption single-shot.
func (s *service) createAccount(ctx context.Context, email, phone *string, plaintext, firstName, lastName, inviteCode string) (*domain.User, error) {
	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, err
	}

	now := s.clk.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         domain.RoleMember,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var redemption *invitedomain.Redemption
	if inviteCode != "" {
		redemption, err = s.invites.Redeem(ctx, inviteCode)
		if err != nil {
			return nil, err
		}
		user.OrganizationID = &redemption.OrganizationID
		user.Role = roleFromInvite(redemption.Role)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		if redemption != nil && user.Role == domain.RoleAdmin {
			return s.orgs.WithTx(tx).IncrementUsedSeats(ctx, redemption.OrganizationID)
		}
		return nil
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			if email != nil {
				return nil, domain.ErrEmailTaken
			}
			return nil, domain.ErrPhoneTaken
		}
		return nil, err
	}

	if redemption != nil {
		if err := s.invites.AttachRedeemer(ctx, redemption.Code, user.ID); err != nil {
			s.log.Warn("failed to record invite redeemer",
				zap.String("code", redemption.Code),
				zap.Error(err),
			)
		}
	}

	return user, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.respond(user, token.WebTTL)
}

func (s *service) MobileLogin(ctx context.Context, req domain.MobileLoginRequest) (*domain.AuthResponse, error) {
	user, err := s.repo.FindByPhone(ctx, strings.TrimSpace(req.Phone))
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.respond(user, token.MobileTTL)
}

func (s *service) Authenticate(ctx context.Context, raw string) (*domain.Principal, error) {
	claims, err := s.issuer.Parse(raw)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	principal := &domain.Principal{
		UserID: userID,
		Role:   domain.Role(claims.Role),
	}
	if claims.OrganizationID != "" {
		orgID, err := snowflake.ParseString(claims.OrganizationID)
		if err != nil {
			return nil, domain.ErrInvalidToken
		}
		principal.OrganizationID = &orgID
	}
	return principal, nil
}

func (s *service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) respond(user *domain.User, ttl time.Duration) (*domain.AuthResponse, error) {
	signed, err := s.issuer.Issue(user.ID, string(user.Role), user.OrganizationID, s.clk.Now(), ttl)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponse{Token: signed, User: user}, nil
}

func roleFromInvite(role string) domain.Role {
	switch role {
	case "admin":
		return domain.RoleAdmin
	case "superadmin":
		return domain.RoleSuperadmin
	default:
		return domain.RoleMember
	}
}
