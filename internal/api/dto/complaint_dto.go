package dto

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// CreateComplaintRequest payload for filing a grievance.
type CreateComplaintRequest struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StatusNoteRequest payload for transitions that carry only an optional note.
type StatusNoteRequest struct {
	Notes string `json:"notes"`
}

// ResolveComplaintRequest payload for marking a complaint resolved.
type ResolveComplaintRequest struct {
	ResolutionProof []string `json:"resolution_proof"`
	ResolutionNotes string   `json:"resolution_notes"`
	Notes           string   `json:"notes"`
}

// AssignComplaintRequest payload for routing a complaint to an officer.
type AssignComplaintRequest struct {
	AssigneeID string `json:"assignee_id"`
	Notes      string `json:"notes"`
}

// OverrideStatusRequest payload for admin status overrides.
type OverrideStatusRequest struct {
	Status          string   `json:"status"`
	AssigneeID      *string  `json:"assignee_id"`
	Notes           string   `json:"notes"`
	ResolutionProof []string `json:"resolution_proof"`
	ResolutionNotes string   `json:"resolution_notes"`
}

// AddCommentRequest payload for officer work-log comments.
type AddCommentRequest struct {
	Comment string `json:"comment"`
}

// ComplaintSummary list-item response shape.
type ComplaintSummary struct {
	ID          string                   `json:"id"`
	Reference   string                   `json:"reference"`
	Category    domain.ComplaintCategory `json:"category"`
	Title       string                   `json:"title"`
	Status      domain.ComplaintStatus   `json:"status"`
	AssigneeID  *string                  `json:"assignee_id,omitempty"`
	SLADeadline time.Time                `json:"sla_deadline"`
	SLABreached bool                     `json:"sla_breached"`
	IsSLAMet    *bool                    `json:"is_sla_met,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ComplaintDetailResponse full complaint view with history and comments.
type ComplaintDetailResponse struct {
	ID              string                   `json:"id"`
	Reference       string                   `json:"reference"`
	CitizenID       string                   `json:"citizen_id"`
	Category        domain.ComplaintCategory `json:"category"`
	Title           string                   `json:"title"`
	Description     string                   `json:"description"`
	Status          domain.ComplaintStatus   `json:"status"`
	AssigneeID      *string                  `json:"assignee_id,omitempty"`
	AssignedAt      *time.Time               `json:"assigned_at,omitempty"`
	SLADeadline     time.Time                `json:"sla_deadline"`
	SLABreached     bool                     `json:"sla_breached"`
	ResolvedAt      *time.Time               `json:"resolved_at,omitempty"`
	IsSLAMet        *bool                    `json:"is_sla_met,omitempty"`
	ResolutionProof []string                 `json:"resolution_proof,omitempty"`
	ResolutionNotes string                   `json:"resolution_notes,omitempty"`
	Version         int                      `json:"version"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
	History         []HistoryEntryResponse   `json:"history"`
	Comments        []CommentResponse        `json:"comments"`
	AllowedNext     []domain.ComplaintStatus `json:"allowed_next"`
}

// HistoryEntryResponse one status-history row.
type HistoryEntryResponse struct {
	ID            string                 `json:"id"`
	Status        domain.ComplaintStatus `json:"status"`
	ChangedByID   string                 `json:"changed_by_id"`
	ChangedByRole domain.Role            `json:"changed_by_role"`
	Notes         string                 `json:"notes,omitempty"`
	ChangedAt     time.Time              `json:"changed_at"`
}

// CommentResponse one officer comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	Comment   string    `json:"comment"`
	AddedByID string    `json:"added_by_id"`
	AddedAt   time.Time `json:"added_at"`
}

// AuditEntryResponse one audit trail row.
type AuditEntryResponse struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	EntityID  string         `json:"entity_id"`
	ActorID   string         `json:"actor_id,omitempty"`
	ActorName string         `json:"actor_name,omitempty"`
	ActorRole domain.Role    `json:"actor_role,omitempty"`
	Changes   map[string]any `json:"changes,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
