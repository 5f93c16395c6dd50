package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fernpay/paydesk/pkg/types"
)

// PaymentTemplate is a reusable "favorite provider target" for faster repeat
// payments. Best effort only; it never blocks a submission.
type PaymentTemplate struct {
	ID               string            `gorm:"column:id;primary_key;type:uuid" json:"id"`
	UserID           string            `gorm:"column:user_id;type:varchar(64);not null;uniqueIndex:unique_user_fav,priority:1" json:"user_id"`
	Type             types.PaymentType `gorm:"column:type;type:varchar(32);not null;uniqueIndex:unique_user_fav,priority:2" json:"type"`
	Provider         string            `gorm:"column:provider;type:varchar(64);not null;uniqueIndex:unique_user_fav,priority:3" json:"provider"`
	ProviderEntityID string            `gorm:"column:provider_entity_id;type:varchar(128);not null;uniqueIndex:unique_user_fav,priority:4" json:"provider_entity_id"`
	Fields           datatypes.JSONMap `gorm:"column:fields;type:jsonb;default:'{}'" json:"fields"`
	LastUsedAt       time.Time         `gorm:"column:last_used_at;not null" json:"last_used_at"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (PaymentTemplate) TableName() string {
	return "payment_template"
}
