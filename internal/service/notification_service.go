package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/repository"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// NotificationService is the in-app notification gateway: it stores per-user
// messages for the lifecycle engine and the SLA monitor, and serves the
// recipient-facing inbox operations.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	logger        *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(notifications repository.NotificationRepository, users repository.UserRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		notifications: notifications,
		users:         users,
		logger:        logger,
	}
}

// Enqueue stores one notification for one recipient.
func (n *NotificationService) Enqueue(ctx context.Context, input NotificationInput) error {
	notification := &domain.Notification{
		RecipientID: input.RecipientID,
		Type:        input.Type,
		Title:       input.Title,
		Message:     input.Message,
		ComplaintID: input.ComplaintID,
	}
	return n.notifications.Create(ctx, notification)
}

// EnqueueForAllAdmins fans a message out to every active admin. The admin set
// is re-queried on every call rather than cached, so newly provisioned admins
// are picked up immediately.
func (n *NotificationService) EnqueueForAllAdmins(ctx context.Context, input AdminNotificationInput) error {
	admins, err := n.users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return err
	}

	var firstErr error
	for _, admin := range admins {
		notification := &domain.Notification{
			RecipientID: admin.ID,
			Type:        input.Type,
			Title:       input.Title,
			Message:     input.Message,
			ComplaintID: input.ComplaintID,
		}
		if err := n.notifications.Create(ctx, notification); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			n.logger.Warn("admin notification store failed",
				zap.String("recipient_id", admin.ID),
				zap.Error(err))
		}
	}
	return firstErr
}

// HasAlertSince answers the SLA monitor's dedup scan.
func (n *NotificationService) HasAlertSince(ctx context.Context, complaintID, recipientID, title string, since time.Time) (bool, error) {
	return n.notifications.HasAlertSince(ctx, complaintID, recipientID, title, since)
}

// ListForRecipient returns the recipient's notifications, newest first.
func (n *NotificationService) ListForRecipient(ctx context.Context, recipientID string, onlyUnread bool, limit, offset int) ([]domain.Notification, error) {
	notifications, err := n.notifications.ListByRecipient(ctx, recipientID, onlyUnread, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return notifications, nil
}

// CountUnread returns the recipient's unread badge count.
func (n *NotificationService) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	count, err := n.notifications.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, apperrors.NewInternalError(err)
	}
	return count, nil
}

// MarkRead flips one notification's read flag, scoped to the recipient.
func (n *NotificationService) MarkRead(ctx context.Context, recipientID, notificationID string) error {
	if err := n.notifications.MarkRead(ctx, notificationID, recipientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

// MarkAllRead flips every unread notification for the recipient.
func (n *NotificationService) MarkAllRead(ctx context.Context, recipientID string) error {
	if err := n.notifications.MarkAllRead(ctx, recipientID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}
