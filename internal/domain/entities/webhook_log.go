package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// WebhookStatus tracks processing of a received webhook event
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "pending"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
)

// WebhookLog is an audit record of a webhook event that passed signature
// verification. Rejected requests are never logged.
type WebhookLog struct {
	ID     uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Source DecisionSource `json:"source" gorm:"type:varchar(20);not null;index"`

	EventType string         `json:"event_type" gorm:"type:varchar(100);not null"`
	Payload   datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`

	Status WebhookStatus `json:"status" gorm:"type:varchar(20);default:'pending';not null"`
	Error  *string       `json:"error,omitempty" gorm:"type:text"`

	ProcessedAt *time.Time `json:"processed_at,omitempty" gorm:"type:timestamp"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for WebhookLog
func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// NewWebhookLog creates a pending webhook log entry
func NewWebhookLog(source DecisionSource, eventType string, payload []byte) *WebhookLog {
	return &WebhookLog{
		ID:        uuid.New(),
		Source:    source,
		EventType: eventType,
		Payload:   payload,
		Status:    WebhookStatusPending,
		CreatedAt: time.Now(),
	}
}

// MarkProcessed records successful handling
func (w *WebhookLog) MarkProcessed() {
	now := time.Now()
	w.Status = WebhookStatusProcessed
	w.ProcessedAt = &now
}

// MarkFailed records the handling error
func (w *WebhookLog) MarkFailed(err error) {
	now := time.Now()
	w.Status = WebhookStatusFailed
	w.ProcessedAt = &now
	if err != nil {
		msg := err.Error()
		w.Error = &msg
	}
}
