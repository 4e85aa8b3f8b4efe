package subscription

import (
	"go.uber.org/fx"

	"github.com/parishkeep/parishkeep/internal/subscription/repository"
	"github.com/parishkeep/parishkeep/internal/subscription/service"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
