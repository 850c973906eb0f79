package repositories

import (
	"context"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// WebhookLogRepository defines the interface for webhook audit records
type WebhookLogRepository interface {
	// Create creates a new webhook log entry
	Create(ctx context.Context, log *entities.WebhookLog) error

	// Update updates a webhook log entry
	Update(ctx context.Context, log *entities.WebhookLog) error

	// ListRecent returns the most recent entries for a source
	ListRecent(ctx context.Context, source entities.DecisionSource, limit int) ([]*entities.WebhookLog, error)
}
