package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cfgpkg "github.com/fernpay/paydesk/pkg/config"
)

// DurationBuckets covers the latency range of external ledger/provider calls,
// in milliseconds.
var DurationBuckets = []float64{
	25, 50, 75, 100, 150, 200, 300, 400, 500,
	750, 1000, 1500, 2000,
	3000, 5000, 7500, 10000, 15000,
	30000, 60000,
}

// Set holds the payment orchestration metrics. All counters are registered on
// the default registry at construction.
type Set struct {
	OrdersSubmitted *prometheus.CounterVec
	LedgerCalls     *prometheus.CounterVec
	ProviderCalls   *prometheus.CounterVec
	RefundFailures  prometheus.Counter
	OrdersSwept     prometheus.Counter
	SagaDuration    *prometheus.HistogramVec
}

func New() *Set {
	return &Set{
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "paydesk",
			Name:      "orders_submitted_total",
			Help:      "Payment orders reaching a response, by type and final status.",
		}, []string{"type", "status"}),
		LedgerCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "paydesk",
			Name:      "ledger_calls_total",
			Help:      "Ledger debit/refund calls, by operation and outcome.",
		}, []string{"op", "outcome"}),
		ProviderCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "paydesk",
			Name:      "provider_calls_total",
			Help:      "Provider submissions, by payment type and outcome.",
		}, []string{"type", "outcome"}),
		RefundFailures: promauto.NewCounter(prometheus.CounterOpts{
			Subsystem: "paydesk",
			Name:      "refund_failures_total",
			Help:      "Compensating refunds that failed and need reconciliation.",
		}),
		OrdersSwept: promauto.NewCounter(prometheus.CounterOpts{
			Subsystem: "paydesk",
			Name:      "orders_swept_total",
			Help:      "Stuck SUBMITTED orders failed by the background sweeper.",
		}),
		SagaDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Subsystem: "paydesk",
			Name:      "saga_duration_ms",
			Help:      "End-to-end submission duration in milliseconds.",
			Buckets:   DurationBuckets,
		}, []string{"type"}),
	}
}

// runListener exposes /metrics on the configured metrics address.
func runListener(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, _ *Set) {
	if cfg.MetricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics listener started", "addr", cfg.MetricsAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Errorf("metrics listener error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(runListener),
)
