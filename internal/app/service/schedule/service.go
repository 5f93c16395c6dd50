package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fernpay/paydesk/internal/models"
	cfgpkg "github.com/fernpay/paydesk/pkg/config"
	"github.com/fernpay/paydesk/pkg/tool"
	"github.com/fernpay/paydesk/pkg/types"
)

// All recurrence math is done in UTC at a fixed hour to avoid DST ambiguity.
const DefaultHour = 9

// CronExpression renders the recurrence as a standard 5-field cron spec.
func CronExpression(freq types.ScheduleFrequency, hour int) (string, error) {
	switch freq {
	case types.ScheduleFrequencyWeekly:
		return fmt.Sprintf("0 %d * * 1", hour), nil
	case types.ScheduleFrequencyMonthly:
		return fmt.Sprintf("0 %d 1 * *", hour), nil
	case types.ScheduleFrequencyYearly:
		return fmt.Sprintf("0 %d 1 1 *", hour), nil
	default:
		return "", fmt.Errorf("unsupported frequency: %s", freq)
	}
}

// NextRunAt computes the first run strictly after now: weekly lands on the
// next Monday, monthly on the 1st of the next month, yearly on Jan 1 of the
// next year, always at the fixed hour in UTC.
func NextRunAt(freq types.ScheduleFrequency, now time.Time, hour int) (time.Time, error) {
	now = now.UTC()
	switch freq {
	case types.ScheduleFrequencyWeekly:
		days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		d := now.AddDate(0, 0, days)
		return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC), nil
	case types.ScheduleFrequencyMonthly:
		return time.Date(now.Year(), now.Month()+1, 1, hour, 0, 0, 0, time.UTC), nil
	case types.ScheduleFrequencyYearly:
		return time.Date(now.Year()+1, 1, 1, hour, 0, 0, 0, time.UTC), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported frequency: %s", freq)
	}
}

// Service persists recurring-payment schedules. It only writes the schedule
// row; a separate runner re-submits orders when next_run_at passes.
type Service struct {
	db   *gorm.DB
	cfg  *cfgpkg.Config
	log  *zap.SugaredLogger
	hour int
}

func NewService(db *gorm.DB, cfg *cfgpkg.Config, log *zap.SugaredLogger) *Service {
	hour := cfg.Schedule.Hour
	if hour < 0 || hour > 23 {
		hour = DefaultHour
	}
	return &Service{db: db, cfg: cfg, log: log, hour: hour}
}

// Create persists an ACTIVE schedule derived from a completed submission.
// Metadata carries enough of the order to reconstruct a new submission.
func (s *Service) Create(ctx context.Context, order *models.PaymentOrder, freq types.ScheduleFrequency) (*models.PaymentSchedule, error) {
	if !freq.Valid() {
		return nil, fmt.Errorf("unsupported frequency: %s", freq)
	}

	expr, err := CronExpression(freq, s.hour)
	if err != nil {
		return nil, err
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	next, err := NextRunAt(freq, time.Now(), s.hour)
	if err != nil {
		return nil, err
	}

	metadata := datatypes.JSONMap{
		"source_account_id": order.SourceAccountID,
		"target_amount":     order.TargetAmount.String(),
		"target_currency":   order.TargetCurrency,
		"provider":          order.Provider,
		"details":           map[string]any(order.Metadata),
	}

	row := &models.PaymentSchedule{
		ID:        tool.GenerateUUIDV7(),
		UserID:    order.UserID,
		Type:      order.Type,
		Status:    types.ScheduleStatusActive,
		Frequency: freq,
		Cron:      expr,
		NextRunAt: next,
		Timezone:  "UTC",
		Metadata:  metadata,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	s.log.Infow("payment schedule created", "schedule_id", row.ID, "user_id", row.UserID, "cron", expr, "next_run_at", next)
	return row, nil
}
