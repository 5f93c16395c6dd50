package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fernpay/paydesk/internal/app/api/server"
	"github.com/fernpay/paydesk/internal/app/service/favorites"
	"github.com/fernpay/paydesk/internal/app/service/orderstore"
	"github.com/fernpay/paydesk/internal/app/service/quote"
	"github.com/fernpay/paydesk/internal/app/service/saga"
	"github.com/fernpay/paydesk/internal/app/service/schedule"
	"github.com/fernpay/paydesk/internal/platform/billpay"
	"github.com/fernpay/paydesk/internal/platform/db"
	"github.com/fernpay/paydesk/internal/platform/fxrates"
	"github.com/fernpay/paydesk/internal/platform/ledgerapi"
	"github.com/fernpay/paydesk/pkg/config"
	"github.com/fernpay/paydesk/pkg/logger"
	"github.com/fernpay/paydesk/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	server.Module,
	ledgerapi.Module,
	fxrates.Module,
	billpay.Module,
	quote.Module,
	orderstore.Module,
	schedule.Module,
	favorites.Module,
	saga.Module,
)
