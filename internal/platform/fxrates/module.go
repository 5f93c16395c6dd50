package fxrates

import (
	"go.uber.org/fx"

	"github.com/fernpay/paydesk/internal/app/service/quote"
)

var Module = fx.Options(
	fx.Provide(
		NewClient,
		func(c *Client) quote.RateSource { return c },
		func(c *Client) quote.FeeSource { return c },
	),
)
