package ledgerapi

import (
	"go.uber.org/fx"

	"github.com/fernpay/paydesk/internal/app/service/quote"
	"github.com/fernpay/paydesk/internal/app/service/saga"
)

var Module = fx.Options(
	fx.Provide(
		NewClient,
		func(c *Client) saga.Ledger { return c },
		func(c *Client) quote.AccountSource { return c },
	),
)
