package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/dto"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/service"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// AdminHandler manages triage, user provisioning, audit and stats endpoints.
type AdminHandler struct {
	lifecycle *service.LifecycleService
	users     *service.UserService
	audits    *service.AuditService
	stats     *service.StatsService
}

// NewAdminHandler constructs handler.
func NewAdminHandler(lifecycle *service.LifecycleService, users *service.UserService, audits *service.AuditService, stats *service.StatsService) *AdminHandler {
	return &AdminHandler{lifecycle: lifecycle, users: users, audits: audits, stats: stats}
}

// ListComplaints GET /admin/complaints.
func (h *AdminHandler) ListComplaints(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	filter := parseComplaintListQuery(c)
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	if unassigned := c.Query("unassigned"); unassigned == "true" {
		hasAssignee := false
		filter.HasAssignee = &hasAssignee
	}
	complaints, err := h.lifecycle.ListComplaintsForActor(c.Context(), user, filter)
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintSummary, 0, len(complaints))
	for i := range complaints {
		items = append(items, complaintSummary(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetComplaint GET /admin/complaints/:id.
func (h *AdminHandler) GetComplaint(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	detail, err := h.lifecycle.GetComplaintForActor(c.Context(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintDetail(detail)})
}

// AssignComplaint POST /admin/complaints/:id/assign. Routes a complaint to
// an officer, or re-routes one already in flight.
func (h *AdminHandler) AssignComplaint(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	complaint, err := h.lifecycle.ApplyTransition(c.Context(), user, c.Params("id"), domain.StatusAssigned, service.TransitionInput{
		AssigneeID: &req.AssigneeID,
		Notes:      req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintSummary(complaint)})
}

// OverrideStatus POST /admin/complaints/:id/status. Drives any transition
// the admin role is allowed to make, including reopen and force-close.
func (h *AdminHandler) OverrideStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.OverrideStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	target := domain.ComplaintStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !domain.ValidStatus(target) {
		return apperrors.NewValidationError("unknown status", map[string]any{"status": req.Status})
	}
	complaint, err := h.lifecycle.ApplyTransition(c.Context(), user, c.Params("id"), target, service.TransitionInput{
		AssigneeID:      req.AssigneeID,
		Notes:           req.Notes,
		ResolutionProof: req.ResolutionProof,
		ResolutionNotes: req.ResolutionNotes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintSummary(complaint)})
}

// AddComment POST /admin/complaints/:id/comments.
func (h *AdminHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AddCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.lifecycle.AddOfficerComment(c.Context(), user, c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CommentResponse{
		ID:        comment.ID,
		Comment:   comment.Comment,
		AddedByID: comment.AddedByID,
		AddedAt:   comment.AddedAt,
	}})
}

// ListComplaintAudit GET /admin/complaints/:id/audit.
func (h *AdminHandler) ListComplaintAudit(c *fiber.Ctx) error {
	entries, err := h.audits.ListForComplaint(c.Context(), c.Params("id"), parseInt(c.Query("limit"), 50), parseInt(c.Query("offset"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

// ListRecentAudit GET /admin/audit.
func (h *AdminHandler) ListRecentAudit(c *fiber.Ctx) error {
	entries, err := h.audits.ListRecent(c.Context(), parseInt(c.Query("limit"), 50), parseInt(c.Query("offset"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": auditResponses(entries)})
}

// ProvisionUser POST /admin/users. Creates officer and admin accounts.
func (h *AdminHandler) ProvisionUser(c *fiber.Ctx) error {
	var req dto.ProvisionUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		return apperrors.NewValidationError("name, email, password, role required", nil)
	}
	user, err := h.users.ProvisionUser(c.Context(), req.Name, req.Email, req.Password, domain.Role(strings.ToUpper(req.Role)))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// ListUsers GET /admin/users.
func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	users, err := h.users.ListUsers(c.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// ListOfficers GET /admin/users/officers. The assignment picker source.
func (h *AdminHandler) ListOfficers(c *fiber.Ctx) error {
	officers, err := h.users.ListOfficers(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(officers)})
}

// SetUserActive PATCH /admin/users/:id/active.
func (h *AdminHandler) SetUserActive(c *fiber.Ctx) error {
	var req dto.SetActiveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Active == nil {
		return apperrors.NewValidationError("active required", nil)
	}
	user, err := h.users.SetActive(c.Context(), c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// Dashboard GET /admin/stats/dashboard.
func (h *AdminHandler) Dashboard(c *fiber.Ctx) error {
	stats, err := h.stats.Dashboard(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func auditResponses(entries []domain.AuditEntry) []dto.AuditEntryResponse {
	resp := make([]dto.AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.AuditEntryResponse{
			ID:        entry.ID,
			Action:    string(entry.Action),
			EntityID:  entry.EntityID,
			ActorID:   entry.ActorID,
			ActorName: entry.ActorName,
			ActorRole: entry.ActorRole,
			Changes:   entry.Changes,
			Metadata:  entry.Metadata,
			CreatedAt: entry.CreatedAt,
		})
	}
	return resp
}

func userResponses(users []domain.User) []dto.UserResponse {
	resp := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		resp = append(resp, userResponse(&users[i]))
	}
	return resp
}
