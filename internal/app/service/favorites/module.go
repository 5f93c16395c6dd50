package favorites

import "go.uber.org/fx"

// Module exposes the favorites service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
