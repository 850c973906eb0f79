package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// WebhookLogRepository implements the webhook log repository interface using GORM
type WebhookLogRepository struct {
	db *gorm.DB
}

// NewWebhookLogRepository creates a new webhook log repository
func NewWebhookLogRepository(db *gorm.DB) *WebhookLogRepository {
	return &WebhookLogRepository{
		db: db,
	}
}

// Create creates a new webhook log entry
func (r *WebhookLogRepository) Create(ctx context.Context, log *entities.WebhookLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

// Update updates a webhook log entry
func (r *WebhookLogRepository) Update(ctx context.Context, log *entities.WebhookLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		return fmt.Errorf("failed to update webhook log: %w", err)
	}
	return nil
}

// ListRecent returns the most recent entries for a source
func (r *WebhookLogRepository) ListRecent(ctx context.Context, source entities.DecisionSource, limit int) ([]*entities.WebhookLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var logs []*entities.WebhookLog
	if err := r.db.WithContext(ctx).
		Where("source = ?", source).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	return logs, nil
}
