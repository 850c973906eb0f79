package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
	"github.com/knowwhyhq/knowwhy/internal/domain/repositories"
)

// DecisionRepository implements the decision repository interface using GORM
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(db *gorm.DB) *DecisionRepository {
	return &DecisionRepository{
		db: db,
	}
}

// Create persists a new decision
func (r *DecisionRepository) Create(ctx context.Context, decision *entities.Decision) error {
	if err := decision.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(decision).Error; err != nil {
		return fmt.Errorf("failed to create decision: %w", err)
	}
	return nil
}

// FindByID finds a user's decision by ID
func (r *DecisionRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*entities.Decision, error) {
	var decision entities.Decision
	if err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&decision).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, entities.ErrDecisionNotFound
		}
		return nil, fmt.Errorf("failed to find decision: %w", err)
	}
	return &decision, nil
}

var decisionSortColumns = map[string]string{
	"occurred_at": "occurred_at",
	"created_at":  "created_at",
	"confidence":  "confidence",
}

// List returns a filtered, paginated list with the total count
func (r *DecisionRepository) List(ctx context.Context, userID uuid.UUID, filters repositories.DecisionFilters) ([]*entities.Decision, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&entities.Decision{}).
		Where("user_id = ?", userID)

	if filters.Source != nil {
		query = query.Where("source = ?", *filters.Source)
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		query = query.Where(
			"title ILIKE ? OR summary ILIKE ? OR final_decision ILIKE ? OR rationale ILIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if filters.From != nil {
		query = query.Where("occurred_at >= ?", *filters.From)
	}
	if filters.To != nil {
		query = query.Where("occurred_at <= ?", *filters.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count decisions: %w", err)
	}

	sortCol, ok := decisionSortColumns[filters.SortBy]
	if !ok {
		sortCol = "occurred_at"
	}
	direction := "ASC"
	if filters.SortDesc {
		direction = "DESC"
	}

	limit := filters.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var decisions []*entities.Decision
	if err := query.
		Order(fmt.Sprintf("%s %s", sortCol, direction)).
		Limit(limit).
		Offset(filters.Offset).
		Find(&decisions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list decisions: %w", err)
	}
	return decisions, total, nil
}

// ExistsRecent reports whether the same upstream artifact already produced a
// decision within the cooldown window. The match is an exact composite on
// (user_id, source, source_key).
func (r *DecisionRepository) ExistsRecent(ctx context.Context, userID uuid.UUID, source entities.DecisionSource, sourceKey string, window time.Duration) (bool, error) {
	var count int64
	cutoff := time.Now().Add(-window)
	if err := r.db.WithContext(ctx).
		Model(&entities.Decision{}).
		Where("user_id = ? AND source = ? AND source_key = ? AND created_at >= ?", userID, source, sourceKey, cutoff).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check recent decision: %w", err)
	}
	return count > 0, nil
}

// UpdateFeedback sets the user rating and optional feedback text
func (r *DecisionRepository) UpdateFeedback(ctx context.Context, userID, id uuid.UUID, rating int, feedback *string) error {
	if rating < 1 || rating > 5 {
		return entities.ErrInvalidRating
	}
	result := r.db.WithContext(ctx).
		Model(&entities.Decision{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{
			"rating":   rating,
			"feedback": feedback,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update feedback: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entities.ErrDecisionNotFound
	}
	return nil
}

// Delete removes a user's decision
func (r *DecisionRepository) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&entities.Decision{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete decision: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return entities.ErrDecisionNotFound
	}
	return nil
}

// MarkEmbeddingSynced flags a decision as indexed in the vector store
func (r *DecisionRepository) MarkEmbeddingSynced(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Model(&entities.Decision{}).
		Where("id = ?", id).
		Update("embedding_synced", true).Error; err != nil {
		return fmt.Errorf("failed to mark embedding synced: %w", err)
	}
	return nil
}

// ListUnsynced returns a user's decisions not yet indexed, oldest first
func (r *DecisionRepository) ListUnsynced(ctx context.Context, userID uuid.UUID, limit int) ([]*entities.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	var decisions []*entities.Decision
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND embedding_synced = ?", userID, false).
		Order("created_at ASC").
		Limit(limit).
		Find(&decisions).Error; err != nil {
		return nil, fmt.Errorf("failed to list unsynced decisions: %w", err)
	}
	return decisions, nil
}
