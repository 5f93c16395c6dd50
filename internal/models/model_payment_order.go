package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fernpay/paydesk/pkg/types"
)

// PaymentOrder is one logical payment request. Exactly one row exists per
// (user_id, type, idempotency_key); re-submission with the same key returns
// this row unchanged. Rows are never deleted.
type PaymentOrder struct {
	ID             string            `gorm:"column:id;primary_key;type:uuid;index:idx_order_user_id_id,priority:2,sort:desc" json:"id"`
	UserID         string            `gorm:"column:user_id;type:varchar(64);not null;index:idx_order_user_id_id,priority:1;uniqueIndex:unique_user_type_idem_key,priority:1" json:"user_id"`
	Type           types.PaymentType `gorm:"column:type;type:varchar(32);not null;uniqueIndex:unique_user_type_idem_key,priority:2" json:"type"`
	IdempotencyKey string            `gorm:"column:idempotency_key;type:varchar(128);not null;uniqueIndex:unique_user_type_idem_key,priority:3" json:"idempotency_key"`

	SourceAccountID string           `gorm:"column:source_account_id;type:varchar(64);not null" json:"source_account_id"`
	SourceCurrency  string           `gorm:"column:source_currency;type:varchar(8);not null" json:"source_currency"`
	// SourceAmount is the quoted debit amount and already includes the fee.
	SourceAmount   decimal.Decimal  `gorm:"column:source_amount;type:numeric(20,8);not null" json:"source_amount"`
	TargetAmount   decimal.Decimal  `gorm:"column:target_amount;type:numeric(20,8);not null" json:"target_amount"`
	TargetCurrency string           `gorm:"column:target_currency;type:varchar(8);not null" json:"target_currency"`
	FeeAmount      decimal.Decimal  `gorm:"column:fee_amount;type:numeric(20,8);not null" json:"fee_amount"`
	FeeCurrency    string           `gorm:"column:fee_currency;type:varchar(8);not null" json:"fee_currency"`
	FxRate         *decimal.Decimal `gorm:"column:fx_rate;type:numeric(20,8);default:null" json:"fx_rate"`
	FxProvider     *string          `gorm:"column:fx_provider;type:varchar(64);default:null" json:"fx_provider"`

	Status       types.OrderStatus `gorm:"column:status;type:varchar(32);not null;index" json:"status"`
	Provider     string            `gorm:"column:provider;type:varchar(64);not null" json:"provider"`
	ProviderRef  *string           `gorm:"column:provider_ref;type:varchar(128);default:null" json:"provider_ref"`
	ExternalTxID *string           `gorm:"column:external_tx_id;type:varchar(128);default:null" json:"external_tx_id"`
	ErrorMessage *string           `gorm:"column:error_message;type:text;default:null" json:"error_message"`
	SubmittedAt  time.Time         `gorm:"column:submitted_at;not null" json:"submitted_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at;default:null" json:"completed_at"`

	// Metadata carries the provider payload details (biller id, subscriber
	// number, gift card product, ...) as an opaque blob.
	Metadata datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`

	Attempts []*PaymentAttempt `gorm:"foreignKey:PaymentOrderID" json:"attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PaymentOrder) TableName() string {
	return "payment_order"
}

// DebitReference is the deterministic ledger reference for the order's debit;
// retried debits with the same reference apply once at the ledger.
func (o *PaymentOrder) DebitReference() string {
	return "po:" + o.ID + ":debit"
}

// RefundReference is the deterministic ledger reference for the compensating
// refund.
func (o *PaymentOrder) RefundReference() string {
	return "po:" + o.ID + ":refund"
}

// CustomIdentifier tags provider submissions so callbacks can be correlated
// back to the order.
func (o *PaymentOrder) CustomIdentifier() string {
	return "po:" + o.ID
}
