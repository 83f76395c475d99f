package roster

import (
	"github.com/simroster/simroster/internal/roster/repository"
	"github.com/simroster/simroster/internal/roster/service"
	"go.uber.org/fx"
)

var Module = fx.Module("roster.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
