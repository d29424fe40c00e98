package loyalty

import "go.uber.org/fx"

var Module = fx.Module("loyalty.service",
	fx.Provide(
		NewService,
		NewRecorder,
	),
)

var Routes = fx.Module("loyalty.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
