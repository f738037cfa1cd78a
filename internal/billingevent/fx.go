package billingevent

import (
	"github.com/quotient-hq/quotient/internal/billingevent/repository"
	"github.com/quotient-hq/quotient/internal/billingevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
