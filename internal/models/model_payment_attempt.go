package models

import (
	"time"

	"github.com/fernpay/paydesk/pkg/types"
)

// PaymentAttempt is one provider call belonging to an order. Status only
// moves forward (CREATED -> SUBMITTED -> FAILED); it never regresses.
type PaymentAttempt struct {
	ID             string              `gorm:"column:id;primary_key;type:uuid" json:"id"`
	PaymentOrderID string              `gorm:"column:payment_order_id;type:uuid;not null;index" json:"payment_order_id"`
	Provider       string              `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	Status         types.AttemptStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	ProviderRef    *string             `gorm:"column:provider_ref;type:varchar(128);default:null" json:"provider_ref"`
	ErrorMessage   *string             `gorm:"column:error_message;type:text;default:null" json:"error_message"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempt"
}
