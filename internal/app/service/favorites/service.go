package favorites

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fernpay/paydesk/internal/models"
	"github.com/fernpay/paydesk/pkg/tool"
	"github.com/fernpay/paydesk/pkg/types"
)

// Service maintains "favorite provider target" templates for faster repeat
// payments. It is best effort; callers swallow its errors.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// Touch upserts the favorite keyed by (user, type, provider, entity) with the
// latest fields and use time.
func (s *Service) Touch(ctx context.Context, userID string, t types.PaymentType, provider, providerEntityID string, fields map[string]any, usedAt time.Time) error {
	if providerEntityID == "" {
		return fmt.Errorf("provider entity id is empty")
	}
	row := &models.PaymentTemplate{
		ID:               tool.GenerateUUIDV7(),
		UserID:           userID,
		Type:             t,
		Provider:         provider,
		ProviderEntityID: providerEntityID,
		Fields:           datatypes.JSONMap(fields),
		LastUsedAt:       usedAt,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "type"}, {Name: "provider"}, {Name: "provider_entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"fields", "last_used_at", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert favorite: %w", err)
	}
	return nil
}
