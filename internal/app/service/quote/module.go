package quote

import "go.uber.org/fx"

// Module exposes the quote engine via Fx.
var Module = fx.Options(
	fx.Provide(NewEngine),
)
