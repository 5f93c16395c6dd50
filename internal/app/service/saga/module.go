package saga

import (
	"go.uber.org/fx"

	"github.com/fernpay/paydesk/internal/app/service/favorites"
	"github.com/fernpay/paydesk/internal/app/service/orderstore"
	"github.com/fernpay/paydesk/internal/app/service/schedule"
)

// Module exposes the saga coordinator and its background sweeper via Fx.
// The concrete stores are bound to the coordinator's capability interfaces
// here; ledger/provider/rate capabilities are bound by the platform modules.
var Module = fx.Options(
	fx.Provide(
		NewCoordinator,
		NewSweeper,
		func(c *Coordinator) Orchestrator { return c },
		func(s *orderstore.Store) OrderStore { return s },
		func(s *schedule.Service) SchedulePlanner { return s },
		func(s *favorites.Service) FavoriteStore { return s },
	),
	fx.Invoke(runSweeper),
)
