package events

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventComplaintCreated       EventType = "complaint_created"
	EventComplaintStatusChanged EventType = "complaint_status_changed"
	EventComplaintAssigned      EventType = "complaint_assigned"
	EventComplaintCommentAdded  EventType = "complaint_comment_added"
	EventSLAWarning             EventType = "sla_warning"
	EventSLABreached            EventType = "sla_breached"
)

// Actor encapsulates actor metadata for an event. System-originated events
// (the SLA monitor) leave UserID empty.
type Actor struct {
	UserID string      `json:"user_id,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	ComplaintID string      `json:"complaint_id"`
	Actor       Actor       `json:"actor"`
	Timestamp   time.Time   `json:"timestamp"`
	Payload     interface{} `json:"payload"`
}

// ComplaintCreatedPayload payload.
type ComplaintCreatedPayload struct {
	Reference   string                   `json:"reference"`
	Category    domain.ComplaintCategory `json:"category"`
	Title       string                   `json:"title"`
	SLADeadline time.Time                `json:"sla_deadline"`
}

// ComplaintStatusChangedPayload payload.
type ComplaintStatusChangedPayload struct {
	OldStatus domain.ComplaintStatus `json:"old_status"`
	NewStatus domain.ComplaintStatus `json:"new_status"`
	Notes     string                 `json:"notes,omitempty"`
}

// ComplaintAssignedPayload payload.
type ComplaintAssignedPayload struct {
	AssigneeUserID string    `json:"assignee_user_id"`
	SLADeadline    time.Time `json:"sla_deadline"`
}

// ComplaintCommentAddedPayload payload.
type ComplaintCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}

// SLAAlertPayload payload for both warning and breach events.
type SLAAlertPayload struct {
	Reference   string    `json:"reference"`
	SLADeadline time.Time `json:"sla_deadline"`
	Overdue     bool      `json:"overdue"`
}
