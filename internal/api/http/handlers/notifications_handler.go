package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/dto"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/service"
)

// NotificationsHandler serves the per-user notification inbox.
type NotificationsHandler struct {
	notifications *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifications *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{notifications: notifications}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	onlyUnread := c.Query("unread") == "true"
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	items, err := h.notifications.ListForRecipient(c.Context(), user.ID, onlyUnread, pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": notificationResponses(items)})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	count, err := h.notifications.CountUnread(c.Context(), user.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkRead(c.Context(), user.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "read"}})
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.notifications.MarkAllRead(c.Context(), user.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "all_read"}})
}

func notificationResponses(items []domain.Notification) []dto.NotificationResponse {
	resp := make([]dto.NotificationResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, dto.NotificationResponse{
			ID:          item.ID,
			Type:        item.Type,
			Title:       item.Title,
			Message:     item.Message,
			ComplaintID: item.ComplaintID,
			Read:        item.Read,
			CreatedAt:   item.CreatedAt,
		})
	}
	return resp
}
