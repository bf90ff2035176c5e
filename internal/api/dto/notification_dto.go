package dto

import (
	"time"

	"github.com/civicdesk/grievance-service/internal/domain"
)

// NotificationResponse one inbox item.
type NotificationResponse struct {
	ID          string                  `json:"id"`
	Type        domain.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	ComplaintID *string                 `json:"complaint_id,omitempty"`
	Read        bool                    `json:"read"`
	CreatedAt   time.Time               `json:"created_at"`
}
