package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// NotificationRepository persists in-app notifications. The stored rows double
// as the SLA monitor's dedup record, so alert lookups live here too.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool, limit, offset int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int64, error)
	MarkRead(ctx context.Context, id, recipientID string) error
	MarkAllRead(ctx context.Context, recipientID string) error
	HasAlertSince(ctx context.Context, complaintID, recipientID, title string, since time.Time) (bool, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_user_id, type, title, message, complaint_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, read, created_at`
	return r.pool.QueryRow(ctx, query,
		notification.RecipientID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.ComplaintID,
	).Scan(&notification.ID, &notification.Read, &notification.CreatedAt)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
        SELECT id, recipient_user_id, type, title, message, complaint_id, read, created_at
        FROM notifications
        WHERE recipient_user_id=$1`
	if onlyUnread {
		query += ` AND read=FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, recipientID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.RecipientID,
			&notification.Type,
			&notification.Title,
			&notification.Message,
			&notification.ComplaintID,
			&notification.Read,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, notification)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE recipient_user_id=$1 AND read=FALSE`
	var count int64
	if err := r.pool.QueryRow(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead is scoped to the recipient so users cannot touch other inboxes.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	const query = `
        UPDATE notifications SET read=TRUE
        WHERE id=$1 AND recipient_user_id=$2`
	cmd, err := r.pool.Exec(ctx, query, id, recipientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string) error {
	const query = `
        UPDATE notifications SET read=TRUE
        WHERE recipient_user_id=$1 AND read=FALSE`
	_, err := r.pool.Exec(ctx, query, recipientID)
	return err
}

// HasAlertSince reports whether an ALERT with the given title was already
// stored for the (complaint, recipient) pair at or after the cutoff.
func (r *notificationRepository) HasAlertSince(ctx context.Context, complaintID, recipientID, title string, since time.Time) (bool, error) {
	const query = `
        SELECT EXISTS(
            SELECT 1 FROM notifications
            WHERE complaint_id=$1 AND recipient_user_id=$2 AND type=$3 AND title=$4 AND created_at >= $5)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, complaintID, recipientID, domain.NotificationAlert, title, since).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
