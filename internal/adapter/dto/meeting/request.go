package meeting

import "time"

// CreateMeetingRequest represents the request to record a meeting
type CreateMeetingRequest struct {
	Title        string     `json:"title" validate:"required,min=1,max=255"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	Duration     int        `json:"duration_seconds,omitempty" validate:"omitempty,min=0"`
	Transcript   string     `json:"transcript,omitempty"`
	Participants []string   `json:"participants,omitempty"`
	CalendarID   *string    `json:"calendar_id,omitempty"`
}

// UpdateTranscriptRequest replaces a meeting's transcript
type UpdateTranscriptRequest struct {
	Transcript string `json:"transcript" validate:"required,min=1"`
}

// ListMeetingsRequest represents query parameters for listing meetings
type ListMeetingsRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ScheduleEventRequest creates a calendar event with a Meet link
type ScheduleEventRequest struct {
	Summary   string    `json:"summary" validate:"required,min=1,max=255"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}
