package customer

import (
	"github.com/quotient-hq/quotient/internal/customer/repository"
	"github.com/quotient-hq/quotient/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
