package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

const auditEntityComplaint = "Complaint"

// AuditService is the append-only audit gateway plus its admin read surface.
type AuditService struct {
	audits repository.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(audits repository.AuditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{audits: audits, logger: logger}
}

// Write appends one audit entry for a complaint-scoped action.
func (a *AuditService) Write(ctx context.Context, input AuditInput) error {
	entry := &domain.AuditEntry{
		Action:     input.Action,
		EntityType: auditEntityComplaint,
		EntityID:   input.EntityID,
		Changes:    input.Changes,
		Metadata:   input.Metadata,
	}
	if input.Actor != nil {
		entry.ActorID = input.Actor.ID
		entry.ActorName = input.Actor.Name
		entry.ActorRole = input.Actor.Role
	}
	return a.audits.Create(ctx, entry)
}

// ListForComplaint returns the audit trail of one complaint, oldest first.
func (a *AuditService) ListForComplaint(ctx context.Context, complaintID string, limit, offset int) ([]domain.AuditEntry, error) {
	entries, err := a.audits.ListByEntity(ctx, auditEntityComplaint, complaintID, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}

// ListRecent returns the newest audit entries across all complaints.
func (a *AuditService) ListRecent(ctx context.Context, limit, offset int) ([]domain.AuditEntry, error) {
	entries, err := a.audits.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return entries, nil
}
