package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MeetingStatus tracks analysis progress for an imported meeting
type MeetingStatus string

const (
	MeetingStatusPending  MeetingStatus = "pending"
	MeetingStatusAnalyzed MeetingStatus = "analyzed"
	MeetingStatusFailed   MeetingStatus = "failed"
)

// Meeting is an imported calendar meeting with its transcript, the input of
// the interactive analysis flow
type Meeting struct {
	ID     uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	UserID uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`

	Title      string    `json:"title" gorm:"type:varchar(500);not null"`
	CalendarID *string   `json:"calendar_id,omitempty" gorm:"type:varchar(255);index"`
	StartedAt  time.Time `json:"started_at" gorm:"type:timestamp;not null"`
	Duration   int       `json:"duration_minutes,omitempty"`

	Transcript   string         `json:"transcript,omitempty" gorm:"type:text"`
	Participants datatypes.JSON `json:"participants,omitempty" gorm:"type:jsonb;default:'[]'"`
	ArchiveKey   *string        `json:"archive_key,omitempty" gorm:"type:varchar(500)"`

	Status     MeetingStatus `json:"status" gorm:"type:varchar(20);default:'pending';not null"`
	AnalyzedAt *time.Time    `json:"analyzed_at,omitempty" gorm:"type:timestamp"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Meeting
func (Meeting) TableName() string {
	return "meetings"
}

// NewMeeting creates a new Meeting entity
func NewMeeting(userID uuid.UUID, title string, startedAt time.Time) *Meeting {
	now := time.Now()
	return &Meeting{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		StartedAt: startedAt,
		Status:    MeetingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkAnalyzed records a completed analysis pass
func (m *Meeting) MarkAnalyzed() {
	now := time.Now()
	m.Status = MeetingStatusAnalyzed
	m.AnalyzedAt = &now
	m.UpdatedAt = now
}

// MarkFailed records a failed analysis pass
func (m *Meeting) MarkFailed() {
	m.Status = MeetingStatusFailed
	m.UpdatedAt = time.Now()
}

// HasTranscript reports whether there is any text to analyze
func (m *Meeting) HasTranscript() bool {
	return m.Transcript != ""
}
