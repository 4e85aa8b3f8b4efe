package auth

import (
	"go.uber.org/fx"

	"github.com/parishkeep/parishkeep/internal/auth/repository"
	"github.com/parishkeep/parishkeep/internal/auth/service"
	"github.com/parishkeep/parishkeep/internal/auth/token"
	"github.com/parishkeep/parishkeep/internal/config"
)

func newIssuer(cfg *config.Config) *token.Issuer {
	return token.NewIssuer(cfg.AuthJWTSecret)
}

var Module = fx.Module("auth.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(newIssuer),
	fx.Provide(service.NewService),
)
