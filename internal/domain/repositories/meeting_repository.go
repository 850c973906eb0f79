package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// MeetingRepository defines the interface for meeting data access
type MeetingRepository interface {
	// Create creates a new meeting
	Create(ctx context.Context, meeting *entities.Meeting) error

	// FindByID finds a user's meeting by ID
	FindByID(ctx context.Context, userID, id uuid.UUID) (*entities.Meeting, error)

	// FindByCalendarID finds a user's meeting by its calendar event ID
	FindByCalendarID(ctx context.Context, userID uuid.UUID, calendarID string) (*entities.Meeting, error)

	// List returns a paginated list of a user's meetings, newest first
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entities.Meeting, int64, error)

	// ListUserIDsWithPendingTranscripts returns the users who have at least
	// one unanalyzed meeting with a stored transcript
	ListUserIDsWithPendingTranscripts(ctx context.Context) ([]uuid.UUID, error)

	// Update updates a meeting
	Update(ctx context.Context, meeting *entities.Meeting) error

	// Delete removes a user's meeting
	Delete(ctx context.Context, userID, id uuid.UUID) error
}
