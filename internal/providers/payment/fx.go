package payment

import (
	"github.com/quotient-hq/quotient/internal/providers/payment/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.payment",
	fx.Provide(stripe.NewClient),
)
