package billpay

import (
	"go.uber.org/fx"

	"github.com/fernpay/paydesk/internal/app/service/saga"
)

var Module = fx.Options(
	fx.Provide(
		NewClient,
		func(c *Client) saga.ProviderAdapter { return c },
	),
)
