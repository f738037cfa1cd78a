package dunning

import "go.uber.org/fx"

var Module = fx.Module("dunning.service",
	fx.Provide(New),
)
