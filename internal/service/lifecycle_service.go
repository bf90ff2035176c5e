package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// UserDirectory is the narrow lookup the engine needs to validate assignees.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// NotificationInput describes one in-app message to enqueue.
type NotificationInput struct {
	RecipientID string
	Type        domain.NotificationType
	Title       string
	Message     string
	ComplaintID *string
}

// AdminNotificationInput fans one message out to every active admin.
type AdminNotificationInput struct {
	Type        domain.NotificationType
	Title       string
	Message     string
	ComplaintID *string
}

// NotificationGateway enqueues per-user messages. Failures are logged by the
// engine, never surfaced to the transition caller.
type NotificationGateway interface {
	Enqueue(ctx context.Context, input NotificationInput) error
	EnqueueForAllAdmins(ctx context.Context, input AdminNotificationInput) error
}

// AuditInput describes one append-only audit record.
type AuditInput struct {
	Action   domain.AuditAction
	EntityID string
	Actor    *domain.User
	Changes  map[string]any
	Metadata map[string]any
}

// AuditGateway appends audit entries. Fire-and-forget from the engine's
// perspective.
type AuditGateway interface {
	Write(ctx context.Context, input AuditInput) error
}

// LifecycleService is the only mutator of a complaint's status-bearing
// fields. Every state change runs through CreateComplaint, ApplyTransition or
// AddOfficerComment.
type LifecycleService struct {
	complaints    repository.ComplaintRepository
	users         UserDirectory
	notifications NotificationGateway
	audits        AuditGateway
	dispatcher    events.Dispatcher
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Users         UserDirectory
	Notifications NotificationGateway
	Audits        AuditGateway
	Dispatcher    events.Dispatcher
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Now           func() time.Time
}

// CreateComplaintInput describes complaint creation payload.
type CreateComplaintInput struct {
	Category    domain.ComplaintCategory
	Title       string
	Description string
}

// TransitionInput carries the optional payload of a transition request.
// AssigneeID matters only when targeting ASSIGNED; the resolution fields only
// when targeting RESOLVED.
type TransitionInput struct {
	AssigneeID      *string
	Notes           string
	ResolutionProof []string
	ResolutionNotes string
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	svc := &LifecycleService{
		complaints:    deps.ComplaintRepo,
		users:         deps.Users,
		notifications: deps.Notifications,
		audits:        deps.Audits,
		dispatcher:    deps.Dispatcher,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

// CreateComplaint files a new complaint for a citizen: status NEW, a stable
// reference, an SLA deadline derived from the category, and a seeded history
// entry, followed by the creation side effects.
func (s *LifecycleService) CreateComplaint(ctx context.Context, citizen *domain.User, input CreateComplaintInput) (*domain.Complaint, error) {
	if citizen == nil || citizen.Role != domain.RoleCitizen {
		return nil, apperrors.NewForbidden("only citizens can file complaints")
	}
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}
	if !domain.ValidCategory(input.Category) {
		return nil, apperrors.NewValidationError("unknown complaint category", map[string]any{"category": input.Category})
	}

	createdAt := s.now()
	complaint := &domain.Complaint{
		Reference:   generateComplaintRef(),
		CitizenID:   citizen.ID,
		Category:    input.Category,
		Title:       title,
		Description: description,
		Status:      domain.StatusNew,
		SLADeadline: ComputeSLADeadline(input.Category, createdAt),
	}
	seed := &domain.StatusHistoryEntry{
		Status:        domain.StatusNew,
		ChangedByID:   citizen.ID,
		ChangedByRole: citizen.Role,
		Notes:         "complaint filed",
	}

	if err := s.complaints.Create(ctx, complaint, seed); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.writeAudit(ctx, AuditInput{
		Action:   domain.AuditComplaintCreated,
		EntityID: complaint.ID,
		Actor:    citizen,
		Changes:  map[string]any{"status": complaint.Status},
		Metadata: map[string]any{
			"reference":    complaint.Reference,
			"category":     complaint.Category,
			"sla_deadline": complaint.SLADeadline,
		},
	})
	s.enqueue(ctx, NotificationInput{
		RecipientID: citizen.ID,
		Type:        domain.NotificationInfo,
		Title:       "Complaint registered",
		Message:     fmt.Sprintf("Your complaint %s has been registered and is awaiting triage.", complaint.Reference),
		ComplaintID: &complaint.ID,
	})
	s.enqueueAdmins(ctx, AdminNotificationInput{
		Type:        domain.NotificationAction,
		Title:       "New complaint awaiting assignment",
		Message:     fmt.Sprintf("Complaint %s (%s) was filed and needs an officer.", complaint.Reference, complaint.Category),
		ComplaintID: &complaint.ID,
	})
	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintCreated,
		ComplaintID: complaint.ID,
		Actor:       events.Actor{UserID: citizen.ID, Role: citizen.Role},
		Payload: events.ComplaintCreatedPayload{
			Reference:   complaint.Reference,
			Category:    complaint.Category,
			Title:       complaint.Title,
			SLADeadline: complaint.SLADeadline,
		},
	})
	return complaint, nil
}

// ApplyTransition moves a complaint to the target status on behalf of the
// actor. The order is load-bearing: load, legality, payload validation,
// mutation, persist, then side effects. A failed persist emits nothing; a
// failed side effect never unwinds the committed mutation.
func (s *LifecycleService) ApplyTransition(ctx context.Context, actor *domain.User, complaintID string, target domain.ComplaintStatus, input TransitionInput) (*domain.Complaint, error) {
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

	from := complaint.Status
	if !IsTransitionAllowed(actor.Role, from, target) {
		return nil, errForbiddenTransition(actor.Role, from, target)
	}
	if err := checkTransitionCustody(actor, complaint); err != nil {
		return nil, err
	}

	var assignee *domain.User
	if target == domain.StatusAssigned {
		assignee, err = s.resolveAssignee(ctx, actor, complaint, input.AssigneeID)
		if err != nil {
			return nil, err
		}
	}
	if target == domain.StatusResolved && len(input.ResolutionProof) == 0 {
		return nil, errMissingResolutionProof()
	}

	now := s.now()
	complaint.Status = target
	if assignee != nil {
		complaint.AssigneeID = &assignee.ID
		assignedAt := now
		complaint.AssignedAt = &assignedAt
	}
	if target == domain.StatusResolved {
		resolvedAt := now
		met := !resolvedAt.After(complaint.SLADeadline)
		complaint.ResolvedAt = &resolvedAt
		complaint.IsSLAMet = &met
		complaint.ResolutionProof = input.ResolutionProof
		complaint.ResolutionNotes = strings.TrimSpace(input.ResolutionNotes)
	}
	entry := &domain.StatusHistoryEntry{
		Status:        target,
		ChangedByID:   actor.ID,
		ChangedByRole: actor.Role,
		Notes:         strings.TrimSpace(input.Notes),
	}

	if err := s.complaints.ApplyUpdate(ctx, complaint, entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			return nil, errTransitionConflict(complaint.ID)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, errComplaintNotFound(complaint.ID)
		default:
			return nil, apperrors.NewInternalError(err)
		}
	}
	s.metrics.RecordTransition(string(from), string(target))

	s.writeAudit(ctx, s.transitionAudit(complaint, actor, from, target, entry.Notes))
	s.notifyTransition(ctx, complaint, from, target)
	s.publishTransitionEvent(ctx, complaint, actor, from, target, entry.Notes)
	return complaint, nil
}

// AddOfficerComment appends a progress comment while a complaint is being
// worked. Legal only in IN_PROGRESS, for the assigned officer or an admin.
// Comments do not change status and do not append to the status history.
func (s *LifecycleService) AddOfficerComment(ctx context.Context, actor *domain.User, complaintID, comment string) (*domain.OfficerComment, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("actor required")
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperrors.NewValidationError("comment is required", nil)
	}

	complaint, err := s.complaints.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errComplaintNotFound(complaintID)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if complaint.Status != domain.StatusInProgress {
		return nil, apperrors.NewForbidden("comments are only allowed while a complaint is in progress")
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleOfficer:
		if complaint.AssigneeID == nil || *complaint.AssigneeID != actor.ID {
			return nil, apperrors.NewForbidden("only the assigned officer may comment")
		}
	default:
		return nil, apperrors.NewForbidden("role cannot add progress comments")
	}

	record := &domain.OfficerComment{
		ComplaintID: complaint.ID,
		Comment:     comment,
		AddedByID:   actor.ID,
	}
	if err := s.complaints.AddComment(ctx, record); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.writeAudit(ctx, AuditInput{
		Action:   domain.AuditCommentAdded,
		EntityID: complaint.ID,
		Actor:    actor,
		Changes:  map[string]any{"comment_id": record.ID},
		Metadata: map[string]any{"reference": complaint.Reference, "preview": stringPreview(comment, 120)},
	})
	s.enqueue(ctx, NotificationInput{
		RecipientID: complaint.CitizenID,
		Type:        domain.NotificationInfo,
		Title:       "Progress update on your complaint",
		Message:     fmt.Sprintf("Complaint %s: %s", complaint.Reference, stringPreview(comment, 120)),
		ComplaintID: &complaint.ID,
	})
	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintCommentAdded,
		ComplaintID: complaint.ID,
		Actor:       events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.ComplaintCommentAddedPayload{
			CommentID:   record.ID,
			AuthorID:    actor.ID,
			BodyPreview: stringPreview(comment, 120),
		},
	})
	return record, nil
}

// checkTransitionCustody restricts non-admin actors to complaints in their
// own custody: citizens to their own filings, officers to their current
// assignments.
func checkTransitionCustody(actor *domain.User, complaint *domain.Complaint) error {
	switch actor.Role {
	case domain.RoleCitizen:
		if complaint.CitizenID != actor.ID {
			return apperrors.NewForbidden("citizens may only act on their own complaints")
		}
	case domain.RoleOfficer:
		if complaint.AssigneeID == nil || *complaint.AssigneeID != actor.ID {
			return apperrors.NewForbidden("officers may only act on complaints assigned to them")
		}
	}
	return nil
}

// resolveAssignee validates the assignment target for transitions into
// ASSIGNED. A fresh assignment (from NEW) requires an explicit target; a
// send-back keeps the current assignee unless an admin names a new one.
func (s *LifecycleService) resolveAssignee(ctx context.Context, actor *domain.User, complaint *domain.Complaint, assigneeID *string) (*domain.User, error) {
	if assigneeID == nil {
		if complaint.Status == domain.StatusNew {
			return nil, errInvalidAssignee("is required for assignment", nil)
		}
		return nil, nil
	}
	if complaint.Status != domain.StatusNew && actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only admins may reassign a complaint")
	}
	assignee, err := s.users.GetByID(ctx, *assigneeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errInvalidAssignee("not found", map[string]any{"assignee_id": *assigneeID})
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !assignee.Active {
		return nil, errInvalidAssignee("is inactive", map[string]any{"assignee_id": assignee.ID})
	}
	if assignee.Role != domain.RoleOfficer {
		return nil, errInvalidAssignee("does not hold the officer role", map[string]any{"assignee_id": assignee.ID})
	}
	return assignee, nil
}

func (s *LifecycleService) transitionAudit(complaint *domain.Complaint, actor *domain.User, from, target domain.ComplaintStatus, notes string) AuditInput {
	action := domain.AuditStatusChanged
	if from == domain.StatusNew && target == domain.StatusAssigned {
		action = domain.AuditComplaintAssigned
	}
	metadata := map[string]any{"reference": complaint.Reference}
	if notes != "" {
		metadata["notes"] = notes
	}
	if complaint.AssigneeID != nil {
		metadata["assignee_id"] = *complaint.AssigneeID
	}
	if target == domain.StatusResolved && complaint.IsSLAMet != nil {
		metadata["is_sla_met"] = *complaint.IsSLAMet
	}
	return AuditInput{
		Action:   action,
		EntityID: complaint.ID,
		Actor:    actor,
		Changes:  map[string]any{"from": from, "to": target},
		Metadata: metadata,
	}
}

// notifyTransition fans out the per-transition notifications. Edges not in
// the table stay silent.
func (s *LifecycleService) notifyTransition(ctx context.Context, complaint *domain.Complaint, from, target domain.ComplaintStatus) {
	switch {
	case from == domain.StatusNew && target == domain.StatusAssigned:
		if complaint.AssigneeID != nil {
			s.enqueue(ctx, NotificationInput{
				RecipientID: *complaint.AssigneeID,
				Type:        domain.NotificationAction,
				Title:       "Complaint assigned to you",
				Message: fmt.Sprintf("Complaint %s is now yours. SLA deadline: %s.",
					complaint.Reference, complaint.SLADeadline.Format(time.RFC3339)),
				ComplaintID: &complaint.ID,
			})
		}
		s.enqueue(ctx, NotificationInput{
			RecipientID: complaint.CitizenID,
			Type:        domain.NotificationInfo,
			Title:       "Complaint assigned",
			Message:     fmt.Sprintf("Your complaint %s has been assigned to an officer.", complaint.Reference),
			ComplaintID: &complaint.ID,
		})
	case from == domain.StatusAssigned && target == domain.StatusInProgress:
		s.enqueue(ctx, NotificationInput{
			RecipientID: complaint.CitizenID,
			Type:        domain.NotificationInfo,
			Title:       "Complaint in progress",
			Message:     fmt.Sprintf("Work has started on your complaint %s.", complaint.Reference),
			ComplaintID: &complaint.ID,
		})
		s.enqueueAdmins(ctx, AdminNotificationInput{
			Type:        domain.NotificationInfo,
			Title:       "Complaint in progress",
			Message:     fmt.Sprintf("Complaint %s is now being worked.", complaint.Reference),
			ComplaintID: &complaint.ID,
		})
	case target == domain.StatusResolved:
		s.enqueue(ctx, NotificationInput{
			RecipientID: complaint.CitizenID,
			Type:        domain.NotificationInfo,
			Title:       "Complaint resolved",
			Message:     fmt.Sprintf("Your complaint %s has been resolved. Please review and close it.", complaint.Reference),
			ComplaintID: &complaint.ID,
		})
		adminType := domain.NotificationInfo
		adminTitle := "Complaint resolved within SLA"
		adminMessage := fmt.Sprintf("Complaint %s was resolved within its SLA.", complaint.Reference)
		if complaint.IsSLAMet != nil && !*complaint.IsSLAMet {
			adminType = domain.NotificationAlert
			adminTitle = "Complaint resolved past SLA"
			adminMessage = fmt.Sprintf("Complaint %s was resolved after its SLA deadline.", complaint.Reference)
		}
		s.enqueueAdmins(ctx, AdminNotificationInput{
			Type:        adminType,
			Title:       adminTitle,
			Message:     adminMessage,
			ComplaintID: &complaint.ID,
		})
	}
}

func (s *LifecycleService) publishTransitionEvent(ctx context.Context, complaint *domain.Complaint, actor *domain.User, from, target domain.ComplaintStatus, notes string) {
	if from == domain.StatusNew && target == domain.StatusAssigned && complaint.AssigneeID != nil {
		s.publishEvent(ctx, events.Event{
			Type:        events.EventComplaintAssigned,
			ComplaintID: complaint.ID,
			Actor:       events.Actor{UserID: actor.ID, Role: actor.Role},
			Payload: events.ComplaintAssignedPayload{
				AssigneeUserID: *complaint.AssigneeID,
				SLADeadline:    complaint.SLADeadline,
			},
		})
		return
	}
	s.publishEvent(ctx, events.Event{
		Type:        events.EventComplaintStatusChanged,
		ComplaintID: complaint.ID,
		Actor:       events.Actor{UserID: actor.ID, Role: actor.Role},
		Payload: events.ComplaintStatusChangedPayload{
			OldStatus: from,
			NewStatus: target,
			Notes:     notes,
		},
	})
}

func (s *LifecycleService) enqueue(ctx context.Context, input NotificationInput) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.Enqueue(ctx, input); err != nil {
		s.logger.Warn("notification enqueue failed",
			zap.String("recipient_id", input.RecipientID),
			zap.Error(err))
	}
}

func (s *LifecycleService) enqueueAdmins(ctx context.Context, input AdminNotificationInput) {
	if s.notifications == nil {
		return
	}
	if err := s.notifications.EnqueueForAllAdmins(ctx, input); err != nil {
		s.logger.Warn("admin notification fan-out failed", zap.Error(err))
	}
}

func (s *LifecycleService) writeAudit(ctx context.Context, input AuditInput) {
	if s.audits == nil {
		return
	}
	if err := s.audits.Write(ctx, input); err != nil {
		s.logger.Warn("audit write failed",
			zap.String("entity_id", input.EntityID),
			zap.Error(err))
	}
}

func (s *LifecycleService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func generateComplaintRef() string {
	return "GRV-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
