package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// DecisionFilters narrows and pages a decision listing
type DecisionFilters struct {
	Source   *entities.DecisionSource
	Search   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	SortBy   string // occurred_at, created_at, confidence
	SortDesc bool
}

// DecisionRepository defines the interface for decision data access.
// All reads and writes are scoped to one user.
type DecisionRepository interface {
	// Create persists a new decision
	Create(ctx context.Context, decision *entities.Decision) error

	// FindByID finds a user's decision by ID
	FindByID(ctx context.Context, userID, id uuid.UUID) (*entities.Decision, error)

	// List returns a filtered, paginated list with the total count
	List(ctx context.Context, userID uuid.UUID, filters DecisionFilters) ([]*entities.Decision, int64, error)

	// ExistsRecent reports whether the same (source, sourceKey) artifact
	// already produced a decision within the cooldown window
	ExistsRecent(ctx context.Context, userID uuid.UUID, source entities.DecisionSource, sourceKey string, window time.Duration) (bool, error)

	// UpdateFeedback sets the user rating and optional feedback text
	UpdateFeedback(ctx context.Context, userID, id uuid.UUID, rating int, feedback *string) error

	// Delete removes a user's decision
	Delete(ctx context.Context, userID, id uuid.UUID) error

	// MarkEmbeddingSynced flags a decision as indexed in the vector store
	MarkEmbeddingSynced(ctx context.Context, id uuid.UUID) error

	// ListUnsynced returns a user's decisions not yet indexed, oldest first
	ListUnsynced(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Decision, error)
}
