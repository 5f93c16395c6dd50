package saga

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fernpay/paydesk/internal/models"
	"github.com/fernpay/paydesk/pkg/types"
)

// LedgerEntry describes a single debit or refund against a source account.
// ReferenceID-keyed idempotency is delegated to the ledger: the same
// reference applies at most once.
type LedgerEntry struct {
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ReferenceID string          `json:"reference_id"`
	Description string          `json:"description"`
}

// Ledger is the internal system of record for balances. The coordinator
// never mutates balances except through these reference-tagged calls.
type Ledger interface {
	Debit(ctx context.Context, entry *LedgerEntry) error
	Refund(ctx context.Context, entry *LedgerEntry) error
}

type BillPaymentRequest struct {
	BillerID                string          `json:"biller_id"`
	SubscriberAccountNumber string          `json:"subscriber_account_number"`
	Amount                  decimal.Decimal `json:"amount"`
	Currency                string          `json:"currency"`
	CustomIdentifier        string          `json:"custom_identifier"`
	ReferenceID             string          `json:"reference_id"`
}

type GiftCardRequest struct {
	ProductID        string          `json:"product_id"`
	CountryCode      string          `json:"country_code"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Currency         string          `json:"currency"`
	RecipientEmail   string          `json:"recipient_email,omitempty"`
	CustomIdentifier string          `json:"custom_identifier"`
}

const DeliveryStatusDelivered = "DELIVERED"

// ProviderReceipt is the synchronous provider response. TransactionID is the
// provider-side key used by later webhooks.
type ProviderReceipt struct {
	TransactionID  string `json:"transaction_id"`
	DeliveryStatus string `json:"delivery_status"`
}

// Delivered reports immediate provider-side success; anything else resolves
// asynchronously via the provider's callback channel.
func (r *ProviderReceipt) Delivered() bool {
	return r != nil && r.DeliveryStatus == DeliveryStatusDelivered
}

// ProviderAdapter wraps one external payment provider. The coordinator only
// depends on this interface, so providers are swappable without saga changes.
type ProviderAdapter interface {
	Name() string
	PayBill(ctx context.Context, req *BillPaymentRequest) (*ProviderReceipt, error)
	OrderGiftCard(ctx context.Context, req *GiftCardRequest) (*ProviderReceipt, error)
}

// OrderStore is the durable order/attempt surface the coordinator drives.
// Implemented by the orderstore package.
type OrderStore interface {
	FindExisting(ctx context.Context, userID string, t types.PaymentType, idempotencyKey string) (*models.PaymentOrder, error)
	Create(ctx context.Context, order *models.PaymentOrder, attempt *models.PaymentAttempt) error
	UpdateAttempt(ctx context.Context, attemptID string, status types.AttemptStatus, providerRef, errorMessage *string) error
	RecordAttemptRef(ctx context.Context, attemptID, providerRef string) error
	UpdateOrder(ctx context.Context, orderID string, fields map[string]any) error
	GetByID(ctx context.Context, id string) (*models.PaymentOrder, error)
	UpsertExternalTransaction(ctx context.Context, row *models.ExternalTransaction) error
	FindOrderByProviderTx(ctx context.Context, provider, providerTxID string) (*models.PaymentOrder, error)
	FindStuckSubmitted(ctx context.Context, before time.Time, limit int) ([]*models.PaymentOrder, error)
}

// SchedulePlanner persists a recurring-payment schedule when the caller opts
// in. Best effort from the saga's point of view.
type SchedulePlanner interface {
	Create(ctx context.Context, order *models.PaymentOrder, freq types.ScheduleFrequency) (*models.PaymentSchedule, error)
}

// FavoriteStore upserts reusable provider targets. Best effort.
type FavoriteStore interface {
	Touch(ctx context.Context, userID string, t types.PaymentType, provider, providerEntityID string, fields map[string]any, usedAt time.Time) error
}

// ScheduleRequest is the caller's opt-in to recurring payments.
type ScheduleRequest struct {
	Frequency types.ScheduleFrequency `json:"frequency"`
}

// SubmitRequest is the single submission entry point payload.
type SubmitRequest struct {
	UserID          string                  `json:"user_id"`
	Type            types.PaymentType       `json:"type"`
	IdempotencyKey  string                  `json:"idempotency_key"`
	SourceAccountID string                  `json:"source_account_id"`
	TargetAmount    decimal.Decimal         `json:"target_amount"`
	TargetCurrency  string                  `json:"target_currency"`
	UserTier        string                  `json:"user_tier"`
	Details         map[string]any          `json:"details"`
	Schedule        *ScheduleRequest        `json:"schedule,omitempty"`
}

// ProviderCallback is the asynchronous provider notification for an order
// that resolved after the synchronous call returned.
type ProviderCallback struct {
	Provider      string `json:"provider"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

// Orchestrator is the saga surface consumed by HTTP handlers.
type Orchestrator interface {
	Submit(ctx context.Context, req *SubmitRequest) (*models.PaymentOrder, error)
	Resolve(ctx context.Context, cb *ProviderCallback) (*models.PaymentOrder, error)
}
