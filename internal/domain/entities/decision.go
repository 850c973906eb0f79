package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DecisionSource identifies where a decision record originated
type DecisionSource string

const (
	SourceMeet   DecisionSource = "meet"
	SourceSlack  DecisionSource = "slack"
	SourceGitLab DecisionSource = "gitlab"
	SourceManual DecisionSource = "manual"
)

// IsValid checks if the decision source is valid
func (s DecisionSource) IsValid() bool {
	switch s {
	case SourceMeet, SourceSlack, SourceGitLab, SourceManual:
		return true
	}
	return false
}

// Decision is a persisted decision brief. Everything except rating, feedback
// and the embedding sync flag is immutable after creation.
type Decision struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index:idx_decisions_user"`

	Title            string         `json:"title" gorm:"type:varchar(500);not null"`
	Summary          string         `json:"summary" gorm:"type:text;not null"`
	ProblemStatement string         `json:"problem_statement,omitempty" gorm:"type:text"`
	OptionsDiscussed datatypes.JSON `json:"options_discussed,omitempty" gorm:"type:jsonb;default:'[]'"`
	FinalDecision    string         `json:"final_decision" gorm:"type:text;not null"`
	Rationale        string         `json:"rationale,omitempty" gorm:"type:text"`
	ActionItems      datatypes.JSON `json:"action_items,omitempty" gorm:"type:jsonb;default:'[]'"`
	Participants     datatypes.JSON `json:"participants,omitempty" gorm:"type:jsonb;default:'[]'"`
	Confidence       float64        `json:"confidence" gorm:"not null;default:0"`

	// Source provenance. (Source, SourceKey) is the dedup identity of the
	// upstream artifact for one user. MeetingID links back to the imported
	// meeting when the decision came out of a transcript analysis.
	Source     DecisionSource `json:"source" gorm:"type:varchar(20);not null;index:idx_decisions_dedup"`
	SourceKey  string         `json:"source_key" gorm:"type:varchar(500);not null;index:idx_decisions_dedup"`
	SourceLink *string        `json:"source_link,omitempty" gorm:"type:text"`
	MeetingID  *uuid.UUID     `json:"meeting_id,omitempty" gorm:"type:uuid;index:idx_decisions_meeting"`
	OccurredAt time.Time      `json:"occurred_at" gorm:"type:timestamp;not null"`

	// User feedback on the generated brief
	Rating   *int    `json:"rating,omitempty"`
	Feedback *string `json:"feedback,omitempty" gorm:"type:text"`

	EmbeddingSynced bool `json:"embedding_synced" gorm:"default:false;not null;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Decision
func (Decision) TableName() string {
	return "decisions"
}

// NewDecision creates a decision record with a clamped confidence score
func NewDecision(userID uuid.UUID, source DecisionSource, sourceKey string) *Decision {
	now := time.Now()
	return &Decision{
		ID:         uuid.New(),
		UserID:     userID,
		Source:     source,
		SourceKey:  sourceKey,
		OccurredAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// SetConfidence clamps the score into [0,1] before storing it
func (d *Decision) SetConfidence(score float64) {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	d.Confidence = score
}

// Validate validates decision data
func (d *Decision) Validate() error {
	if d.Title == "" {
		return ErrDecisionMissingTitle
	}
	if d.FinalDecision == "" {
		return ErrDecisionMissingOutcome
	}
	if !d.Source.IsValid() {
		return ErrInvalidSource
	}
	if d.SourceKey == "" {
		return ErrDecisionMissingSourceKey
	}
	return nil
}

// SearchText concatenates the fields the semantic index embeds
func (d *Decision) SearchText() string {
	return d.Title + "\n" + d.Summary + "\n" + d.FinalDecision + "\n" + d.Rationale
}
