package workflow

import (
	"github.com/simroster/simroster/internal/workflow/repository"
	"github.com/simroster/simroster/internal/workflow/service"
	"go.uber.org/fx"
)

var Module = fx.Module("workflow.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewEngine),
)
