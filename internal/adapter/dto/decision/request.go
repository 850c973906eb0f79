package decision

import "time"

// ListDecisionsRequest represents query parameters for listing decisions
type ListDecisionsRequest struct {
	Source    *string    `query:"source" validate:"omitempty,oneof=meet slack gitlab manual"`
	Search    string     `query:"search"`
	From      *time.Time `query:"from"`
	To        *time.Time `query:"to"`
	Page      int        `query:"page" validate:"omitempty,min=1"`
	PageSize  int        `query:"page_size" validate:"omitempty,min=1,max=100"`
	SortBy    string     `query:"sort_by" validate:"omitempty,oneof=occurred_at created_at confidence title"`
	SortOrder string     `query:"sort_order" validate:"omitempty,oneof=asc desc"`
}

// CreateDecisionRequest represents a manually recorded decision
type CreateDecisionRequest struct {
	Title            string     `json:"title" validate:"required,min=1,max=255"`
	Summary          string     `json:"summary,omitempty"`
	ProblemStatement string     `json:"problem_statement,omitempty"`
	OptionsDiscussed []string   `json:"options_discussed,omitempty"`
	FinalDecision    string     `json:"final_decision" validate:"required,min=1"`
	Rationale        string     `json:"rationale,omitempty"`
	Participants     []string   `json:"participants,omitempty"`
	OccurredAt       *time.Time `json:"occurred_at,omitempty"`
	SourceLink       *string    `json:"source_link,omitempty" validate:"omitempty,url"`
}

// FeedbackRequest represents a rating on a recorded decision
type FeedbackRequest struct {
	Rating   int     `json:"rating" validate:"required,min=1,max=5"`
	Feedback *string `json:"feedback,omitempty" validate:"omitempty,max=2000"`
}

// SearchRequest represents query parameters for decision search
type SearchRequest struct {
	Query string  `query:"q" validate:"required,min=1"`
	Limit int     `query:"limit" validate:"omitempty,min=1,max=50"`
	Alpha float64 `query:"alpha" validate:"omitempty,min=0,max=1"`
}

// AskRequest represents a natural-language question over past decisions
type AskRequest struct {
	Question string `json:"question" validate:"required,min=1,max=2000"`
}
