package saga

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fernpay/paydesk/internal/models"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
	"github.com/fernpay/paydesk/pkg/metrics"
	"github.com/fernpay/paydesk/pkg/types"
)

// Sweeper fails orders stuck in SUBMITTED: the debit call failed (or never
// confirmed) and no attempt ever reached the provider, so there is nothing to
// compensate. Orders whose attempt progressed past CREATED are left for
// operational reconciliation.
type Sweeper struct {
	log     *zap.SugaredLogger
	store   OrderStore
	metrics *metrics.Set
	maxAge  time.Duration
}

func NewSweeper(log *zap.SugaredLogger, store OrderStore, m *metrics.Set, cfg *cfgpkg.Config) *Sweeper {
	return &Sweeper{log: log, store: store, metrics: m, maxAge: cfg.Sweeper.MaxAge}
}

// SweepOnce fails every eligible stuck order and returns how many it swept.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	orders, err := s.store.FindStuckSubmitted(ctx, cutoff, 100)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, order := range orders {
		if attemptProgressed(order) {
			s.log.Warnw("stuck order has a submitted attempt, leaving for reconciliation", "order_id", order.ID)
			continue
		}
		msg := "debit not confirmed before timeout"
		for _, a := range order.Attempts {
			if a.Status == types.AttemptStatusCreated {
				if err := s.store.UpdateAttempt(ctx, a.ID, types.AttemptStatusFailed, nil, &msg); err != nil {
					s.log.Errorw("sweep: failed to fail attempt", "attempt_id", a.ID, "err", err)
				}
			}
		}
		if err := s.store.UpdateOrder(ctx, order.ID, map[string]any{
			"status":        types.OrderStatusFailed,
			"error_message": msg,
		}); err != nil {
			s.log.Errorw("sweep: failed to fail order", "order_id", order.ID, "err", err)
			continue
		}
		s.metrics.OrdersSwept.Inc()
		swept++
	}
	if swept > 0 {
		s.log.Infow("swept stuck orders", "count", swept)
	}
	return swept, nil
}

func attemptProgressed(order *models.PaymentOrder) bool {
	for _, a := range order.Attempts {
		if a.Status != types.AttemptStatusCreated {
			return true
		}
	}
	return false
}

// runSweeper drives the sweeper on a fixed interval for the process lifetime.
func runSweeper(lc fx.Lifecycle, log *zap.SugaredLogger, sweeper *Sweeper, cfg *cfgpkg.Config) {
	if !cfg.Sweeper.Enabled {
		return
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("sweeper started", "interval", cfg.Sweeper.Interval, "max_age", cfg.Sweeper.MaxAge)
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Sweeper.Interval)
				defer ticker.Stop()
				for {
					select {
					case <-loopCtx.Done():
						return
					case <-ticker.C:
						if _, err := sweeper.SweepOnce(loopCtx); err != nil {
							log.Errorw("sweep failed", "err", err)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}
