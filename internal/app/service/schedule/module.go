package schedule

import "go.uber.org/fx"

// Module exposes the schedule service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
