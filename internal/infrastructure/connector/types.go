package connector

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/knowwhyhq/knowwhy/internal/domain/entities"
)

// Candidate is one upstream artifact worth analyzing: a Slack channel window,
// a GitLab issue or merge request, or a meeting transcript. Key is the
// canonical dedup identity of the artifact within its source.
type Candidate struct {
	Source    entities.DecisionSource `json:"source"`
	Key       string                  `json:"key"`
	Title     string                  `json:"title"`
	Link      string                  `json:"link,omitempty"`
	UpdatedAt time.Time               `json:"updated_at"`

	// MeetingID is set for meet candidates so a persisted decision keeps an
	// explicit link to the meeting that produced it
	MeetingID *uuid.UUID `json:"meeting_id,omitempty"`
}

// Source is the contract every connector implements. ListCandidates returns
// recent artifacts for the user; FetchTranscript renders one artifact as
// plain text for analysis. Connectors do not retry; callers own retry policy.
type Source interface {
	Name() entities.DecisionSource
	ListCandidates(ctx context.Context, userID uuid.UUID) ([]Candidate, error)
	FetchTranscript(ctx context.Context, userID uuid.UUID, candidate Candidate) (string, error)
}
