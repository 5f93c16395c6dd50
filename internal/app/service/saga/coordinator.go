package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fernpay/paydesk/internal/app/service/orderstore"
	"github.com/fernpay/paydesk/internal/app/service/quote"
	"github.com/fernpay/paydesk/internal/models"
	"github.com/fernpay/paydesk/pkg/logctx"
	"github.com/fernpay/paydesk/pkg/metrics"
	"github.com/fernpay/paydesk/pkg/types"
)

// Coordinator drives one payment submission to a terminal or recoverable
// state: validate -> idempotency check -> quote -> create order+attempt ->
// debit -> provider submit -> resolve, with a compensating refund when the
// provider fails after the debit. One coordinator run owns all transitions of
// the order it created; concurrent retries of the same idempotency key lose
// the insert race and re-read instead.
type Coordinator struct {
	log       *zap.SugaredLogger
	store     OrderStore
	quotes    *quote.Engine
	ledger    Ledger
	provider  ProviderAdapter
	schedules SchedulePlanner
	favorites FavoriteStore
	metrics   *metrics.Set
}

func NewCoordinator(
	log *zap.SugaredLogger,
	store OrderStore,
	quotes *quote.Engine,
	ledger Ledger,
	provider ProviderAdapter,
	schedules SchedulePlanner,
	favorites FavoriteStore,
	m *metrics.Set,
) *Coordinator {
	return &Coordinator{
		log:       log,
		store:     store,
		quotes:    quotes,
		ledger:    ledger,
		provider:  provider,
		schedules: schedules,
		favorites: favorites,
		metrics:   m,
	}
}

// Submit applies one logical payment request at most once. Replays with the
// same (user, type, idempotency key) return the existing order verbatim with
// no side effects. On ledger/provider failure the order object is returned
// alongside the error so callers can render the outcome.
func (c *Coordinator) Submit(ctx context.Context, req *SubmitRequest) (*models.PaymentOrder, error) {
	started := time.Now()
	log := logctx.FromCtx(ctx, c.log)

	if err := validate(req); err != nil {
		return nil, err
	}
	defer func() {
		c.metrics.SagaDuration.WithLabelValues(string(req.Type)).Observe(float64(time.Since(started).Milliseconds()))
	}()

	// Idempotency check: a replay is a no-op from the caller's perspective,
	// even if the original request is still mid-flight.
	existing, err := c.store.FindExisting(ctx, req.UserID, req.Type, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Infow("idempotent replay", "order_id", existing.ID, "idempotency_key", req.IdempotencyKey)
		return existing, nil
	}

	// Quote. Failure here aborts with no side effects.
	q, err := c.quotes.Price(ctx, &quote.Request{
		SourceAccountID: req.SourceAccountID,
		TargetAmount:    req.TargetAmount,
		TargetCurrency:  req.TargetCurrency,
		UserTier:        req.UserTier,
	})
	if err != nil {
		return nil, err
	}

	order, attempt, err := c.createOrder(ctx, req, q)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		// Lost the insert race; the winner drives the order.
		log.Infow("idempotent replay after insert race", "order_id", order.ID)
		return order, nil
	}

	if err := c.debit(ctx, order); err != nil {
		c.metrics.OrdersSubmitted.WithLabelValues(string(order.Type), string(order.Status)).Inc()
		return order, err
	}

	receipt, provErr := c.submitToProvider(ctx, order, attempt, req.Details)
	if provErr != nil {
		final := c.compensate(ctx, order, attempt, provErr)
		c.metrics.OrdersSubmitted.WithLabelValues(string(req.Type), string(types.OrderStatusFailed)).Inc()
		return final, fmt.Errorf("%w: %v", ErrProvider, provErr)
	}

	status := types.OrderStatusProcessing
	updates := map[string]any{"status": status}
	if receipt.Delivered() {
		status = types.OrderStatusCompleted
		updates["status"] = status
		updates["completed_at"] = time.Now().UTC()
	}
	if err := c.store.UpdateOrder(ctx, order.ID, updates); err != nil {
		log.Errorw("failed to resolve order status", "order_id", order.ID, "err", err)
	}

	c.sideSteps(ctx, order, req)
	c.metrics.OrdersSubmitted.WithLabelValues(string(req.Type), string(status)).Inc()

	final, err := c.store.GetByID(ctx, order.ID)
	if err != nil {
		log.Warnw("failed to reload order, returning in-memory view", "order_id", order.ID, "err", err)
		order.Status = status
		return order, nil
	}
	return final, nil
}

func validate(req *SubmitRequest) error {
	switch {
	case req == nil:
		return fmt.Errorf("%w: empty request", ErrValidation)
	case req.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrValidation)
	case !req.Type.Valid():
		return fmt.Errorf("%w: unsupported payment type %q", ErrValidation, req.Type)
	case req.IdempotencyKey == "":
		return fmt.Errorf("%w: idempotency key is required", ErrValidation)
	case req.SourceAccountID == "":
		return fmt.Errorf("%w: source account id is required", ErrValidation)
	case req.TargetCurrency == "":
		return fmt.Errorf("%w: target currency is required", ErrValidation)
	case !req.TargetAmount.IsPositive():
		return fmt.Errorf("%w: target amount must be positive", ErrValidation)
	}

	switch req.Type {
	case types.PaymentTypeBillPayment:
		if detailString(req.Details, "biller_id") == "" || detailString(req.Details, "subscriber_account_number") == "" {
			return fmt.Errorf("%w: bill payment requires biller_id and subscriber_account_number", ErrValidation)
		}
	case types.PaymentTypeGiftCard:
		if detailString(req.Details, "product_id") == "" || detailString(req.Details, "country_code") == "" {
			return fmt.Errorf("%w: gift card requires product_id and country_code", ErrValidation)
		}
	}

	if req.Schedule != nil && !req.Schedule.Frequency.Valid() {
		return fmt.Errorf("%w: unsupported schedule frequency %q", ErrValidation, req.Schedule.Frequency)
	}
	return nil
}

// createOrder writes the order (SUBMITTED) plus its first attempt (CREATED)
// as a unit. A lost insert race returns the winner's order with a nil
// attempt.
func (c *Coordinator) createOrder(ctx context.Context, req *SubmitRequest, q *quote.Quote) (*models.PaymentOrder, *models.PaymentAttempt, error) {
	order := &models.PaymentOrder{
		UserID:          req.UserID,
		Type:            req.Type,
		IdempotencyKey:  req.IdempotencyKey,
		SourceAccountID: req.SourceAccountID,
		SourceCurrency:  q.SourceCurrency,
		SourceAmount:    q.SourceAmount,
		TargetAmount:    req.TargetAmount,
		TargetCurrency:  req.TargetCurrency,
		FeeAmount:       q.FeeAmount,
		FeeCurrency:     q.FeeCurrency,
		FxRate:          q.FxRate,
		FxProvider:      q.FxProvider,
		Status:          types.OrderStatusSubmitted,
		Provider:        c.provider.Name(),
		SubmittedAt:     time.Now().UTC(),
		Metadata:        datatypes.JSONMap(req.Details),
	}
	attempt := &models.PaymentAttempt{
		Provider: c.provider.Name(),
		Status:   types.AttemptStatusCreated,
	}

	err := c.store.Create(ctx, order, attempt)
	if err == nil {
		return order, attempt, nil
	}
	if !errors.Is(err, orderstore.ErrConflict) {
		return nil, nil, err
	}

	// Re-read rather than surfacing the unique-constraint violation: a
	// concurrent retry inserted first and owns the saga run.
	winner, rerr := c.store.FindExisting(ctx, req.UserID, req.Type, req.IdempotencyKey)
	if rerr != nil {
		return nil, nil, rerr
	}
	if winner == nil {
		return nil, nil, fmt.Errorf("order insert conflicted but winner not visible yet: %w", err)
	}
	return winner, nil, nil
}

// debit moves the quoted source amount out of the source account, tagged
// with the order-derived reference so a retried debit applies once.
func (c *Coordinator) debit(ctx context.Context, order *models.PaymentOrder) error {
	err := c.ledger.Debit(ctx, &LedgerEntry{
		AccountID:   order.SourceAccountID,
		Amount:      order.SourceAmount,
		Currency:    order.SourceCurrency,
		ReferenceID: order.DebitReference(),
		Description: fmt.Sprintf("%s payment order %s", order.Type, order.ID),
	})
	if err != nil {
		c.metrics.LedgerCalls.WithLabelValues("debit", "error").Inc()
		logctx.FromCtx(ctx, c.log).Errorw("ledger debit failed, order left SUBMITTED for sweep",
			"order_id", order.ID, "reference", order.DebitReference(), "err", err)
		return fmt.Errorf("%w: debit %s: %v", ErrLedger, order.DebitReference(), err)
	}
	c.metrics.LedgerCalls.WithLabelValues("debit", "ok").Inc()
	return nil
}

// submitToProvider marks the attempt SUBMITTED, calls the provider and
// records the provider reference as soon as it is known, before evaluating
// success, so a later webhook can always locate the order.
func (c *Coordinator) submitToProvider(ctx context.Context, order *models.PaymentOrder, attempt *models.PaymentAttempt, details map[string]any) (*ProviderReceipt, error) {
	log := logctx.FromCtx(ctx, c.log)

	if err := c.store.UpdateAttempt(ctx, attempt.ID, types.AttemptStatusSubmitted, nil, nil); err != nil {
		return nil, err
	}

	var receipt *ProviderReceipt
	var err error
	switch order.Type {
	case types.PaymentTypeBillPayment:
		receipt, err = c.provider.PayBill(ctx, &BillPaymentRequest{
			BillerID:                detailString(details, "biller_id"),
			SubscriberAccountNumber: detailString(details, "subscriber_account_number"),
			Amount:                  order.TargetAmount,
			Currency:                order.TargetCurrency,
			CustomIdentifier:        order.CustomIdentifier(),
			ReferenceID:             order.ID,
		})
	case types.PaymentTypeGiftCard:
		qty := detailInt(details, "quantity", 1)
		unit := detailDecimal(details, "unit_price")
		if unit.IsZero() && qty > 0 {
			unit = order.TargetAmount.Div(decimal.NewFromInt(int64(qty)))
		}
		receipt, err = c.provider.OrderGiftCard(ctx, &GiftCardRequest{
			ProductID:        detailString(details, "product_id"),
			CountryCode:      detailString(details, "country_code"),
			Quantity:         qty,
			UnitPrice:        unit,
			Currency:         order.TargetCurrency,
			RecipientEmail:   detailString(details, "recipient_email"),
			CustomIdentifier: order.CustomIdentifier(),
		})
	default:
		return nil, fmt.Errorf("unsupported payment type: %s", order.Type)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.ProviderCalls.WithLabelValues(string(order.Type), outcome).Inc()

	// Persist the provider reference even on an apparently failed call
	// (timeout ambiguity): the ref is what the webhook keys on.
	if receipt != nil && receipt.TransactionID != "" {
		if rerr := c.store.RecordAttemptRef(ctx, attempt.ID, receipt.TransactionID); rerr != nil {
			log.Errorw("failed to record provider ref on attempt", "attempt_id", attempt.ID, "err", rerr)
		}
		if uerr := c.store.UpdateOrder(ctx, order.ID, map[string]any{
			"provider_ref":   receipt.TransactionID,
			"external_tx_id": receipt.TransactionID,
		}); uerr != nil {
			log.Errorw("failed to record provider ref on order", "order_id", order.ID, "err", uerr)
		}
		c.mirror(ctx, order, receipt)
	}

	if err != nil {
		return receipt, err
	}
	return receipt, nil
}

// mirror upserts the provider-side transaction so the webhook can find it.
func (c *Coordinator) mirror(ctx context.Context, order *models.PaymentOrder, receipt *ProviderReceipt) {
	status := receipt.DeliveryStatus
	if status == "" {
		status = "PENDING"
	}
	row := &models.ExternalTransaction{
		Provider:              order.Provider,
		ProviderTransactionID: receipt.TransactionID,
		PaymentOrderID:        order.ID,
		Status:                status,
		Payload: datatypes.JSONMap{
			"custom_identifier": order.CustomIdentifier(),
			"delivery_status":   receipt.DeliveryStatus,
		},
	}
	if err := c.store.UpsertExternalTransaction(ctx, row); err != nil {
		logctx.FromCtx(ctx, c.log).Errorw("failed to mirror external transaction",
			"order_id", order.ID, "provider_tx_id", receipt.TransactionID, "err", err)
	}
}

// compensate refunds the debit and marks attempt and order FAILED. A refund
// failure is logged and alarmed but never re-thrown; the order is FAILED
// either way and the discrepancy becomes a reconciliation item.
func (c *Coordinator) compensate(ctx context.Context, order *models.PaymentOrder, attempt *models.PaymentAttempt, provErr error) *models.PaymentOrder {
	log := logctx.FromCtx(ctx, c.log)

	refundErr := c.ledger.Refund(ctx, &LedgerEntry{
		AccountID:   order.SourceAccountID,
		Amount:      order.SourceAmount,
		Currency:    order.SourceCurrency,
		ReferenceID: order.RefundReference(),
		Description: fmt.Sprintf("refund for failed %s order %s", order.Type, order.ID),
	})
	if refundErr != nil {
		c.metrics.LedgerCalls.WithLabelValues("refund", "error").Inc()
		c.metrics.RefundFailures.Inc()
		log.Errorw("compensating refund failed, manual reconciliation required",
			"order_id", order.ID, "reference", order.RefundReference(), "err", refundErr)
	} else {
		c.metrics.LedgerCalls.WithLabelValues("refund", "ok").Inc()
	}

	msg := provErr.Error()
	if err := c.store.UpdateAttempt(ctx, attempt.ID, types.AttemptStatusFailed, nil, &msg); err != nil {
		log.Errorw("failed to mark attempt FAILED", "attempt_id", attempt.ID, "err", err)
	}
	if err := c.store.UpdateOrder(ctx, order.ID, map[string]any{
		"status":        types.OrderStatusFailed,
		"error_message": msg,
	}); err != nil {
		log.Errorw("failed to mark order FAILED", "order_id", order.ID, "err", err)
	}

	final, err := c.store.GetByID(ctx, order.ID)
	if err != nil {
		order.Status = types.OrderStatusFailed
		order.ErrorMessage = lo.ToPtr(msg)
		return order
	}
	return final
}

// sideSteps runs the best-effort favorite upsert and optional schedule
// creation; failures are swallowed.
func (c *Coordinator) sideSteps(ctx context.Context, order *models.PaymentOrder, req *SubmitRequest) {
	log := logctx.FromCtx(ctx, c.log)

	entityID := detailString(req.Details, "biller_id")
	if order.Type == types.PaymentTypeGiftCard {
		entityID = detailString(req.Details, "product_id")
	}
	if entityID != "" {
		if err := c.favorites.Touch(ctx, order.UserID, order.Type, order.Provider, entityID, req.Details, time.Now().UTC()); err != nil {
			log.Warnw("favorite upsert failed", "order_id", order.ID, "err", err)
		}
	}

	if req.Schedule != nil {
		if _, err := c.schedules.Create(ctx, order, req.Schedule.Frequency); err != nil {
			log.Warnw("schedule creation failed", "order_id", order.ID, "err", err)
		}
	}
}

// Resolve applies an asynchronous provider callback to the PROCESSING order
// it belongs to. Callbacks for terminal orders are no-ops.
func (c *Coordinator) Resolve(ctx context.Context, cb *ProviderCallback) (*models.PaymentOrder, error) {
	log := logctx.FromCtx(ctx, c.log)

	order, err := c.store.FindOrderByProviderTx(ctx, cb.Provider, cb.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("no order for provider transaction %s/%s: %w", cb.Provider, cb.TransactionID, err)
	}
	if order.Status.Terminal() {
		return order, nil
	}

	c.mirrorCallback(ctx, order, cb)

	if callbackSucceeded(cb.Status) {
		if err := c.store.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       types.OrderStatusCompleted,
			"completed_at": time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		return c.store.GetByID(ctx, order.ID)
	}

	// Asynchronous failure after the debit: compensate like the synchronous
	// path, against the newest attempt.
	msg := cb.ErrorMessage
	if msg == "" {
		msg = fmt.Sprintf("provider reported %s", cb.Status)
	}
	refundErr := c.ledger.Refund(ctx, &LedgerEntry{
		AccountID:   order.SourceAccountID,
		Amount:      order.SourceAmount,
		Currency:    order.SourceCurrency,
		ReferenceID: order.RefundReference(),
		Description: fmt.Sprintf("refund for failed %s order %s", order.Type, order.ID),
	})
	if refundErr != nil {
		c.metrics.LedgerCalls.WithLabelValues("refund", "error").Inc()
		c.metrics.RefundFailures.Inc()
		log.Errorw("compensating refund failed on callback, manual reconciliation required",
			"order_id", order.ID, "err", refundErr)
	} else {
		c.metrics.LedgerCalls.WithLabelValues("refund", "ok").Inc()
	}

	if a := latestAttempt(order); a != nil {
		if err := c.store.UpdateAttempt(ctx, a.ID, types.AttemptStatusFailed, nil, &msg); err != nil {
			log.Errorw("failed to mark attempt FAILED on callback", "attempt_id", a.ID, "err", err)
		}
	}
	if err := c.store.UpdateOrder(ctx, order.ID, map[string]any{
		"status":        types.OrderStatusFailed,
		"error_message": msg,
	}); err != nil {
		return nil, err
	}
	return c.store.GetByID(ctx, order.ID)
}

func (c *Coordinator) mirrorCallback(ctx context.Context, order *models.PaymentOrder, cb *ProviderCallback) {
	row := &models.ExternalTransaction{
		Provider:              cb.Provider,
		ProviderTransactionID: cb.TransactionID,
		PaymentOrderID:        order.ID,
		Status:                cb.Status,
		Payload: datatypes.JSONMap{
			"callback_status": cb.Status,
			"error_message":   cb.ErrorMessage,
		},
	}
	if err := c.store.UpsertExternalTransaction(ctx, row); err != nil {
		logctx.FromCtx(ctx, c.log).Errorw("failed to mirror callback", "order_id", order.ID, "err", err)
	}
}

func callbackSucceeded(status string) bool {
	switch status {
	case "COMPLETED", "SUCCESS", "SUCCESSFUL", DeliveryStatusDelivered:
		return true
	}
	return false
}

func latestAttempt(order *models.PaymentOrder) *models.PaymentAttempt {
	if len(order.Attempts) == 0 {
		return nil
	}
	return order.Attempts[len(order.Attempts)-1]
}

func detailString(details map[string]any, key string) string {
	if v, ok := details[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func detailInt(details map[string]any, key string, def int) int {
	v, ok := details[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

func detailDecimal(details map[string]any, key string) decimal.Decimal {
	v, ok := details[key]
	if !ok {
		return decimal.Zero
	}
	switch n := v.(type) {
	case string:
		if d, err := decimal.NewFromString(n); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(n)
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	}
	return decimal.Zero
}
