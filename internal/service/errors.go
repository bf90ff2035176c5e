package service

import (
	"github.com/civicdesk/grievance-service/internal/domain"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// Error constructors for the lifecycle engine's caller-visible taxonomy.
// Persistence failures are wrapped as internal errors at the call site.

func errComplaintNotFound(complaintID string) error {
	return apperrors.NewNotFound("complaint", map[string]any{"complaint_id": complaintID})
}

func errForbiddenTransition(role domain.Role, from, to domain.ComplaintStatus) error {
	return apperrors.NewForbidden("transition not permitted for role " + string(role) + " from status " + string(from) + " to " + string(to))
}

func errInvalidAssignee(reason string, details map[string]any) error {
	return apperrors.NewUnprocessable("INVALID_ASSIGNEE", "assignee "+reason, details)
}

func errMissingResolutionProof() error {
	return apperrors.NewUnprocessable("MISSING_RESOLUTION_PROOF", "resolving requires at least one proof reference", nil)
}

func errTransitionConflict(complaintID string) error {
	return apperrors.NewConflict("complaint was modified concurrently, retry with fresh state", map[string]any{"complaint_id": complaintID})
}
