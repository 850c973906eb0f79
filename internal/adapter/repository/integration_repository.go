package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// IntegrationRepository implements the integration repository interface using GORM
type IntegrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{
		db: db,
	}
}

// Upsert creates or replaces the integration for (user, source)
func (r *IntegrationRepository) Upsert(ctx context.Context, integration *entities.Integration) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "source"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"access_token", "refresh_token", "base_url", "metadata", "is_active", "updated_at",
			}),
		}).
		Create(integration).Error; err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}
	return nil
}

// FindByUserAndSource finds a user's integration for a source
func (r *IntegrationRepository) FindByUserAndSource(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) (*entities.Integration, error) {
	var integration entities.Integration
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND source = ?", userID, source).
		First(&integration).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, entities.ErrIntegrationNotFound
		}
		return nil, fmt.Errorf("failed to find integration: %w", err)
	}
	return &integration, nil
}

// ListByUser returns all of a user's integrations
func (r *IntegrationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Integration, error) {
	var integrations []*entities.Integration
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("source ASC").
		Find(&integrations).Error; err != nil {
		return nil, fmt.Errorf("failed to list integrations: %w", err)
	}
	return integrations, nil
}

// ListActiveBySource returns every active integration for a source
func (r *IntegrationRepository) ListActiveBySource(ctx context.Context, source entities.DecisionSource) ([]*entities.Integration, error) {
	var integrations []*entities.Integration
	if err := r.db.WithContext(ctx).
		Where("source = ? AND is_active = ?", source, true).
		Find(&integrations).Error; err != nil {
		return nil, fmt.Errorf("failed to list active integrations: %w", err)
	}
	return integrations, nil
}

// UpdateLastSync records the completion time of a sweep
func (r *IntegrationRepository) UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := r.db.WithContext(ctx).
		Model(&entities.Integration{}).
		Where("id = ?", id).
		Update("last_sync_at", at).Error; err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}
	return nil
}

// Delete removes a user's integration for a source
func (r *IntegrationRepository) Delete(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND source = ?", userID, source).
		Delete(&entities.Integration{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete integration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entities.ErrIntegrationNotFound
	}
	return nil
}
