package organization

import (
	"go.uber.org/fx"

	"github.com/parishkeep/parishkeep/internal/organization/repository"
	"github.com/parishkeep/parishkeep/internal/organization/service"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
