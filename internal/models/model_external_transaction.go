package models

import (
	"time"

	"gorm.io/datatypes"
)

// ExternalTransaction mirrors the provider-side transaction record, keyed by
// the provider's transaction id so an asynchronous callback can locate the
// order later. Upserted, never duplicated.
type ExternalTransaction struct {
	ID                    string            `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Provider              string            `gorm:"column:provider;type:varchar(64);not null;uniqueIndex:unique_provider_tx,priority:1" json:"provider"`
	ProviderTransactionID string            `gorm:"column:provider_transaction_id;type:varchar(128);not null;uniqueIndex:unique_provider_tx,priority:2" json:"provider_transaction_id"`
	PaymentOrderID        string            `gorm:"column:payment_order_id;type:uuid;not null;index" json:"payment_order_id"`
	Status                string            `gorm:"column:status;type:varchar(64);not null" json:"status"`
	Payload               datatypes.JSONMap `gorm:"column:payload;type:jsonb;default:'{}'" json:"payload"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

func (ExternalTransaction) TableName() string {
	return "external_transaction"
}
