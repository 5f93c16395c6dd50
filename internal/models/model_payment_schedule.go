package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fernpay/paydesk/pkg/types"
)

// PaymentSchedule is an optional recurring-payment definition. Its lifecycle
// is independent of the order that created it; a separate runner re-submits
// with a freshly minted idempotency key per run.
type PaymentSchedule struct {
	ID        string                  `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID    string                  `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	Type      types.PaymentType       `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Status    types.ScheduleStatus    `gorm:"column:status;type:varchar(32);not null" json:"status"`
	Frequency types.ScheduleFrequency `gorm:"column:frequency;type:varchar(16);not null" json:"frequency"`
	Cron      string                  `gorm:"column:cron;type:varchar(64);not null" json:"cron"`
	NextRunAt time.Time               `gorm:"column:next_run_at;not null;index" json:"next_run_at"`
	Timezone  string                  `gorm:"column:timezone;type:varchar(64);not null" json:"timezone"`
	// Metadata carries enough of the original submission to mint a new one.
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (PaymentSchedule) TableName() string {
	return "payment_schedule"
}
