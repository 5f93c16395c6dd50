package orderstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fernpay/paydesk/internal/models"
	"github.com/fernpay/paydesk/pkg/tool"
	"github.com/fernpay/paydesk/pkg/types"
)

// ErrConflict signals that a concurrent create for the same
// (user, type, idempotency key) already won the insert race. Callers recover
// by re-reading the existing order.
var ErrConflict = errors.New("payment order already exists for idempotency key")

// Store is the durable home of payment orders, attempts and the external
// transaction mirror. All rows are append/update-only; nothing is deleted.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewStore(db *gorm.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log}
}

// FindExisting returns the order for the idempotency key with attempts
// eagerly loaded, or nil when no such order exists.
func (s *Store) FindExisting(ctx context.Context, userID string, t types.PaymentType, idempotencyKey string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	err := s.db.WithContext(ctx).
		Preload("Attempts").
		Where("user_id = ? AND type = ? AND idempotency_key = ?", userID, t, idempotencyKey).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up order: %w", err)
	}
	return &order, nil
}

// Create inserts the order and its first attempt as a unit. A lost insert
// race on the idempotency unique key maps to ErrConflict.
func (s *Store) Create(ctx context.Context, order *models.PaymentOrder, attempt *models.PaymentAttempt) error {
	if order.ID == "" {
		order.ID = tool.GenerateUUIDV7()
	}
	if attempt.ID == "" {
		attempt.ID = tool.GenerateUUIDV7()
	}
	attempt.PaymentOrderID = order.ID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return err
		}
		return tx.Create(attempt).Error
	})
	if err != nil {
		return mapCreateErr(err)
	}
	order.Attempts = []*models.PaymentAttempt{attempt}
	return nil
}

func mapCreateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return fmt.Errorf("failed to create order: %w", err)
}

// CreateAttempt appends a fresh provider attempt to an existing order.
func (s *Store) CreateAttempt(ctx context.Context, orderID, provider string) (*models.PaymentAttempt, error) {
	attempt := &models.PaymentAttempt{
		ID:             tool.GenerateUUIDV7(),
		PaymentOrderID: orderID,
		Provider:       provider,
		Status:         types.AttemptStatusCreated,
	}
	if err := s.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	return attempt, nil
}

var attemptStatusRank = map[types.AttemptStatus]int{
	types.AttemptStatusCreated:   0,
	types.AttemptStatusSubmitted: 1,
	types.AttemptStatusFailed:    2,
}

// attemptStatusAdvances reports whether moving from -> to goes strictly
// forward in the attempt lifecycle.
func attemptStatusAdvances(from, to types.AttemptStatus) bool {
	return attemptStatusRank[to] > attemptStatusRank[from]
}

// UpdateAttempt advances an attempt's status and records the provider
// reference / error message when given. Backward transitions are rejected.
func (s *Store) UpdateAttempt(ctx context.Context, attemptID string, status types.AttemptStatus, providerRef, errorMessage *string) error {
	var current models.PaymentAttempt
	if err := s.db.WithContext(ctx).First(&current, "id = ?", attemptID).Error; err != nil {
		return fmt.Errorf("failed to load attempt %s: %w", attemptID, err)
	}
	if !attemptStatusAdvances(current.Status, status) {
		return fmt.Errorf("attempt %s cannot move %s -> %s", attemptID, current.Status, status)
	}

	updates := map[string]any{"status": status}
	if providerRef != nil {
		updates["provider_ref"] = *providerRef
	}
	if errorMessage != nil {
		updates["error_message"] = *errorMessage
	}
	if err := s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).Where("id = ?", attemptID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update attempt %s: %w", attemptID, err)
	}
	return nil
}

// RecordAttemptRef persists the provider reference on its own, before the
// call outcome is known, so a webhook can always locate the order.
func (s *Store) RecordAttemptRef(ctx context.Context, attemptID, providerRef string) error {
	if err := s.db.WithContext(ctx).Model(&models.PaymentAttempt{}).
		Where("id = ?", attemptID).
		Update("provider_ref", providerRef).Error; err != nil {
		return fmt.Errorf("failed to record attempt ref: %w", err)
	}
	return nil
}

// UpdateOrder applies a last-writer-wins field update to a single order row.
func (s *Store) UpdateOrder(ctx context.Context, orderID string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).Where("id = ?", orderID).Updates(fields).Error; err != nil {
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}
	return nil
}

// GetByID returns an order with attempts, or gorm.ErrRecordNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (*models.PaymentOrder, error) {
	var order models.PaymentOrder
	if err := s.db.WithContext(ctx).Preload("Attempts").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByUser returns a page of the user's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, from, size int) ([]*models.PaymentOrder, int64, error) {
	if size <= 0 {
		size = 10
	}
	if from < 0 {
		from = 0
	}

	q := s.db.WithContext(ctx).Model(&models.PaymentOrder{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var rows []*models.PaymentOrder
	if err := q.Preload("Attempts").Order("id desc").Offset(from).Limit(size).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return rows, total, nil
}

// UpsertExternalTransaction mirrors a provider-side transaction keyed by
// (provider, provider_transaction_id); retried mirrors never duplicate.
func (s *Store) UpsertExternalTransaction(ctx context.Context, row *models.ExternalTransaction) error {
	if row.ID == "" {
		row.ID = tool.GenerateUUIDV7()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_transaction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "payload", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert external transaction: %w", err)
	}
	return nil
}

// FindOrderByProviderTx resolves a provider callback to its order via the
// external transaction mirror.
func (s *Store) FindOrderByProviderTx(ctx context.Context, provider, providerTxID string) (*models.PaymentOrder, error) {
	var ext models.ExternalTransaction
	if err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_transaction_id = ?", provider, providerTxID).
		First(&ext).Error; err != nil {
		return nil, err
	}
	return s.GetByID(ctx, ext.PaymentOrderID)
}

// FindStuckSubmitted returns orders still SUBMITTED whose submission is older
// than the cutoff; the sweeper fails them.
func (s *Store) FindStuckSubmitted(ctx context.Context, before time.Time, limit int) ([]*models.PaymentOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []*models.PaymentOrder
	err := s.db.WithContext(ctx).
		Preload("Attempts").
		Where("status = ? AND submitted_at < ?", types.OrderStatusSubmitted, before).
		Order("submitted_at asc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stuck orders: %w", err)
	}
	return rows, nil
}

// Scan request/response for admin listing.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.PaymentOrder `json:"items"`
	Total int64                  `json:"total"`
}

// Scan implements paginated admin listing with filters.
func (s *Store) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}

	tx := s.db.WithContext(ctx).Model(&models.PaymentOrder{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.CommonFilterAnd{Filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	if req.SortBy != "" {
		q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: req.SortBy}, Desc: req.SortOrder != "asc"}}})
	}

	var rows []*models.PaymentOrder
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
