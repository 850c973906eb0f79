package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// IntegrationRepository defines the interface for integration data access
type IntegrationRepository interface {
	// Upsert creates or replaces the integration for (user, source)
	Upsert(ctx context.Context, integration *entities.Integration) error

	// FindByUserAndSource finds a user's integration for a source
	FindByUserAndSource(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) (*entities.Integration, error)

	// ListByUser returns all of a user's integrations
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*entities.Integration, error)

	// ListActiveBySource returns every active integration for a source,
	// across users. Used by the batch sweep and webhook fan-out.
	ListActiveBySource(ctx context.Context, source entities.DecisionSource) ([]*entities.Integration, error)

	// UpdateLastSync records the completion time of a sweep
	UpdateLastSync(ctx context.Context, id uuid.UUID, at time.Time) error

	// Delete removes a user's integration for a source
	Delete(ctx context.Context, userID uuid.UUID, source entities.DecisionSource) error
}
