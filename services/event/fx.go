package event

import "go.uber.org/fx"

var Module = fx.Module("event.service",
	fx.Provide(NewService),
)

var Routes = fx.Module("event.http",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
