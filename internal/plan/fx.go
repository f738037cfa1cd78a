package plan

import (
	"github.com/quotient-hq/quotient/internal/plan/repository"
	"github.com/quotient-hq/quotient/internal/plan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
