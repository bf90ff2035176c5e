package domain

import "time"

// NotificationType tags the urgency of an in-app notification.
type NotificationType string

const (
	NotificationInfo   NotificationType = "INFO"
	NotificationAction NotificationType = "ACTION"
	NotificationAlert  NotificationType = "ALERT"
)

// Notification is a per-user in-app message, optionally linked to a
// complaint. Created by the lifecycle service and the SLA monitor; the read
// flag is mutated only by the recipient.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	ComplaintID *string
	Read        bool
	CreatedAt   time.Time
}
