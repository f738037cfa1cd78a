package limit

import (
	"github.com/quotient-hq/quotient/internal/limit/repository"
	"github.com/quotient-hq/quotient/internal/limit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("limit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
