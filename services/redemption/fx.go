package redemption

import "go.uber.org/fx"

var Module = fx.Module("redemption.service",
	fx.Provide(
		NewStampRecorder,
		NewService,
	),
)

var Routes = fx.Module("redemption.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
