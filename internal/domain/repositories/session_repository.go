package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// SessionRepository defines the interface for session data access
type SessionRepository interface {
	// Create creates a new session
	Create(ctx context.Context, session *entities.Session) error

	// FindByRefreshToken finds a session by its hashed refresh token
	FindByRefreshToken(ctx context.Context, tokenHash string) (*entities.Session, error)

	// Revoke revokes a session
	Revoke(ctx context.Context, id uuid.UUID) error

	// RevokeAllForUser revokes all sessions belonging to a user
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error

	// DeleteExpired removes sessions past their expiry
	DeleteExpired(ctx context.Context) error
}
