package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Integration stores a user's connection to an upstream source. One row per
// (user, source).
type Integration struct {
	ID     uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID uuid.UUID      `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_integrations_user_source"`
	Source DecisionSource `json:"source" gorm:"type:varchar(20);not null;uniqueIndex:idx_integrations_user_source"`

	// Credentials for the upstream API. Never exposed in JSON.
	AccessToken  string  `json:"-" gorm:"column:access_token;type:text;not null"`
	RefreshToken *string `json:"-" gorm:"column:refresh_token;type:text"`

	// BaseURL overrides the API host, used for self-managed GitLab.
	BaseURL *string `json:"base_url,omitempty" gorm:"type:varchar(500)"`

	// Metadata holds source-specific settings such as watched Slack channels
	// or GitLab project IDs.
	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb;default:'{}'"`

	IsActive   bool       `json:"is_active" gorm:"default:true;not null"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty" gorm:"type:timestamp"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Integration
func (Integration) TableName() string {
	return "integrations"
}

// NewIntegration creates a new Integration entity
func NewIntegration(userID uuid.UUID, source DecisionSource, accessToken string) *Integration {
	now := time.Now()
	return &Integration{
		ID:          uuid.New(),
		UserID:      userID,
		Source:      source,
		AccessToken: accessToken,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkSynced records the completion time of a sweep over this integration
func (i *Integration) MarkSynced(at time.Time) {
	i.LastSyncAt = &at
	i.UpdatedAt = time.Now()
}
