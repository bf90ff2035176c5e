package domain

import "time"

// AuditAction identifies what kind of state-changing operation an audit
// entry records.
type AuditAction string

const (
	AuditComplaintCreated  AuditAction = "COMPLAINT_CREATED"
	AuditComplaintAssigned AuditAction = "COMPLAINT_ASSIGNED"
	AuditStatusChanged     AuditAction = "STATUS_CHANGED"
	AuditCommentAdded      AuditAction = "COMMENT_ADDED"
)

// AuditEntry is an immutable append-only record of a state-changing action.
// Entries are never updated or deleted.
type AuditEntry struct {
	ID         string
	Action     AuditAction
	EntityType string
	EntityID   string
	ActorID    string
	ActorName  string
	ActorRole  Role
	Changes    map[string]any
	Metadata   map[string]any
	CreatedAt  time.Time
}
