package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/dto"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/service"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// ComplaintsHandler manages the citizen-facing complaint endpoints.
type ComplaintsHandler struct {
	lifecycle *service.LifecycleService
}

// NewComplaintsHandler constructs handler.
func NewComplaintsHandler(lifecycle *service.LifecycleService) *ComplaintsHandler {
	return &ComplaintsHandler{lifecycle: lifecycle}
}

// Create POST /complaints.
func (h *ComplaintsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Category == "" || req.Title == "" || req.Description == "" {
		return apperrors.NewValidationError("category, title, description required", nil)
	}

	complaint, err := h.lifecycle.CreateComplaint(c.Context(), user, service.CreateComplaintInput{
		Category:    domain.ComplaintCategory(req.Category),
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": complaintSummary(complaint)})
}

// List GET /complaints.
func (h *ComplaintsHandler) List(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	complaints, err := h.lifecycle.ListComplaintsForActor(c.Context(), user, parseComplaintListQuery(c))
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintSummary, 0, len(complaints))
	for i := range complaints {
		items = append(items, complaintSummary(&complaints[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /complaints/:id.
func (h *ComplaintsHandler) Get(c *fiber.Ctx) error {
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

// Close POST /complaints/:id/close. Citizens confirm a resolved complaint.
func (h *ComplaintsHandler) Close(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.StatusNoteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	complaint, err := h.lifecycle.ApplyTransition(c.Context(), user, c.Params("id"), domain.StatusClosed, service.TransitionInput{Notes: req.Notes})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintSummary(complaint)})
}

func currentUser(c *fiber.Ctx) (*domain.User, error) {
	user := auth.UserFromContext(c)
	if user == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return user, nil
}

func parseComplaintListQuery(c *fiber.Ctx) service.ComplaintListFilter {
	filter := service.ComplaintListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.ComplaintStatus(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.ComplaintCategory(strings.TrimSpace(part)))
		}
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func complaintSummary(complaint *domain.Complaint) dto.ComplaintSummary {
	return dto.ComplaintSummary{
		ID:          complaint.ID,
		Reference:   complaint.Reference,
		Category:    complaint.Category,
		Title:       complaint.Title,
		Status:      complaint.Status,
		AssigneeID:  complaint.AssigneeID,
		SLADeadline: complaint.SLADeadline,
		SLABreached: service.IsSLABreached(complaint.SLADeadline, complaint.Status, time.Now()),
		IsSLAMet:    complaint.IsSLAMet,
		CreatedAt:   complaint.CreatedAt,
		UpdatedAt:   complaint.UpdatedAt,
	}
}

func complaintDetail(detail *service.ComplaintDetail) dto.ComplaintDetailResponse {
	complaint := detail.Complaint
	return dto.ComplaintDetailResponse{
		ID:              complaint.ID,
		Reference:       complaint.Reference,
		CitizenID:       complaint.CitizenID,
		Category:        complaint.Category,
		Title:           complaint.Title,
		Description:     complaint.Description,
		Status:          complaint.Status,
		AssigneeID:      complaint.AssigneeID,
		AssignedAt:      complaint.AssignedAt,
		SLADeadline:     complaint.SLADeadline,
		SLABreached:     service.IsSLABreached(complaint.SLADeadline, complaint.Status, time.Now()),
		ResolvedAt:      complaint.ResolvedAt,
		IsSLAMet:        complaint.IsSLAMet,
		ResolutionProof: complaint.ResolutionProof,
		ResolutionNotes: complaint.ResolutionNotes,
		Version:         complaint.Version,
		CreatedAt:       complaint.CreatedAt,
		UpdatedAt:       complaint.UpdatedAt,
		History:         historyResponses(detail.History),
		Comments:        commentResponses(detail.Comments),
		AllowedNext:     detail.AllowedNext,
	}
}

func historyResponses(entries []domain.StatusHistoryEntry) []dto.HistoryEntryResponse {
	resp := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.HistoryEntryResponse{
			ID:            entry.ID,
			Status:        entry.Status,
			ChangedByID:   entry.ChangedByID,
			ChangedByRole: entry.ChangedByRole,
			Notes:         entry.Notes,
			ChangedAt:     entry.ChangedAt,
		})
	}
	return resp
}

func commentResponses(comments []domain.OfficerComment) []dto.CommentResponse {
	resp := make([]dto.CommentResponse, 0, len(comments))
	for _, comment := range comments {
		resp = append(resp, dto.CommentResponse{
			ID:        comment.ID,
			Comment:   comment.Comment,
			AddedByID: comment.AddedByID,
			AddedAt:   comment.AddedAt,
		})
	}
	return resp
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}
}
