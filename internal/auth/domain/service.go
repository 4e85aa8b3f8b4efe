package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPhoneTaken         = errors.New("phone already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// RegisterRequest creates a web account. An invite code is optional;
// when present the account joins the inviting organization.
type RegisterRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name"`
	InviteCode string `json:"invite_code"`
}

// MobileRegisterRequest creates a phone account. Mobile signup always
// goes through an invite code.
type MobileRegisterRequest struct {
	Phone      string `json:"phone" binding:"required"`
	Password   string `json:"password" binding:"required,min=8"`
	FirstName  string `json:"first_name" binding:"required"`
	LastName   string `json:"last_name"`
	InviteCode string `json:"invite_code" binding:"required"`
}

// LoginRequest authenticates a web account.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// MobileLoginRequest authenticates a phone account.
type MobileLoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the signed token plus the account it belongs to.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Principal is the authenticated caller extracted from a token.
type Principal struct {
	UserID         snowflake.ID
	Role           Role
	OrganizationID *snowflake.ID
}

// Service is the identity application layer.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	MobileRegister(ctx context.Context, req MobileRegisterRequest) (*AuthResponse, error)
	MobileLogin(ctx context.Context, req MobileLoginRequest) (*AuthResponse, error)
	Authenticate(ctx context.Context, token string) (*Principal, error)
	GetUser(ctx context.Context, id snowflake.ID) (*User, error)
}
