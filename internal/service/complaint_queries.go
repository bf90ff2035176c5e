package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// ComplaintListFilter describes listing filters. CitizenID, AssigneeID and
// HasAssignee only take effect for admins; other roles are force-scoped.
type ComplaintListFilter struct {
	Statuses    []domain.ComplaintStatus
	Categories  []domain.ComplaintCategory
	CitizenID   *string
	AssigneeID  *string
	HasAssignee *bool
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ComplaintDetail is the full read model for one complaint.
type ComplaintDetail struct {
	Complaint   *domain.Complaint
	History     []domain.StatusHistoryEntry
	Comments    []domain.OfficerComment
	AllowedNext []domain.ComplaintStatus
}

// ListComplaintsForActor returns complaints visible to the actor: citizens
// see their own, officers their assignments, admins everything.
func (s *LifecycleService) ListComplaintsForActor(ctx context.Context, actor *domain.User, filter ComplaintListFilter) ([]domain.Complaint, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	repoFilter := repository.ComplaintFilter{
		Statuses:    filter.Statuses,
		Categories:  filter.Categories,
		CitizenID:   filter.CitizenID,
		AssigneeID:  filter.AssigneeID,
		HasAssignee: filter.HasAssignee,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	s.applyRoleScope(&repoFilter, actor)
	complaints, err := s.complaints.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return complaints, nil
}

// GetComplaintForActor fetches one complaint with history and comments,
// enforcing per-role visibility.
func (s *LifecycleService) GetComplaintForActor(ctx context.Context, actor *domain.User, complaintID string) (*ComplaintDetail, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errComplaintNotFound(complaintID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !s.canAccessComplaint(actor, complaint) {
		return nil, apperrors.NewForbidden("complaint is not visible to this account")
	}

	history, err := s.complaints.ListHistory(ctx, complaint.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	comments, err := s.complaints.ListComments(ctx, complaint.ID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &ComplaintDetail{
		Complaint:   complaint,
		History:     history,
		Comments:    comments,
		AllowedNext: AllowedNextStatuses(actor.Role, complaint.Status),
	}, nil
}

func (s *LifecycleService) applyRoleScope(filter *repository.ComplaintFilter, actor *domain.User) {
	switch actor.Role {
	case domain.RoleCitizen:
		citizenID := actor.ID
		filter.CitizenID = &citizenID
		filter.AssigneeID = nil
		filter.HasAssignee = nil
	case domain.RoleOfficer:
		assigneeID := actor.ID
		filter.AssigneeID = &assigneeID
		filter.CitizenID = nil
		filter.HasAssignee = nil
	}
}

func (s *LifecycleService) canAccessComplaint(actor *domain.User, complaint *domain.Complaint) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleOfficer:
		return complaint.AssigneeID != nil && *complaint.AssigneeID == actor.ID
	case domain.RoleCitizen:
		return complaint.CitizenID == actor.ID
	}
	return false
}
