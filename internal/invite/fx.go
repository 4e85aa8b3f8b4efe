package invite

import (
	"go.uber.org/fx"

	"github.com/parishkeep/parishkeep/internal/invite/repository"
	"github.com/parishkeep/parishkeep/internal/invite/service"
)

var Module = fx.Module("invite.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
