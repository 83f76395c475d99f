package tariff

import (
	"github.com/simroster/simroster/internal/tariff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tariff.service",
	fx.Provide(service.NewService),
)
