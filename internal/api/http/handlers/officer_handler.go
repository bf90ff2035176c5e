package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/grievance-service/internal/api/dto"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/service"
	apperrors "github.com/civicdesk/grievance-service/pkg/util"
)

// OfficerHandler manages the assigned-officer work queue endpoints.
type OfficerHandler struct {
	lifecycle *service.LifecycleService
}

// NewOfficerHandler constructs handler.
func NewOfficerHandler(lifecycle *service.LifecycleService) *OfficerHandler {
	return &OfficerHandler{lifecycle: lifecycle}
}

// List GET /officer/complaints.
func (h *OfficerHandler) List(c *fiber.Ctx) error {
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

// Get GET /officer/complaints/:id.
func (h *OfficerHandler) Get(c *fiber.Ctx) error {
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

// Accept POST /officer/complaints/:id/accept. Moves an assignment into
// active work.
func (h *OfficerHandler) Accept(c *fiber.Ctx) error {
	return h.applyNoteTransition(c, domain.StatusInProgress)
}

// Resolve POST /officer/complaints/:id/resolve.
func (h *OfficerHandler) Resolve(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ResolveComplaintRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	complaint, err := h.lifecycle.ApplyTransition(c.Context(), user, c.Params("id"), domain.StatusResolved, service.TransitionInput{
		Notes:           req.Notes,
		ResolutionProof: req.ResolutionProof,
		ResolutionNotes: req.ResolutionNotes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintSummary(complaint)})
}

// SendBack POST /officer/complaints/:id/send-back. Returns active work to
// the assignment queue without giving up custody.
func (h *OfficerHandler) SendBack(c *fiber.Ctx) error {
	return h.applyNoteTransition(c, domain.StatusAssigned)
}

// Reject POST /officer/complaints/:id/reject.
func (h *OfficerHandler) Reject(c *fiber.Ctx) error {
	return h.applyNoteTransition(c, domain.StatusRejected)
}

// AddComment POST /officer/complaints/:id/comments.
func (h *OfficerHandler) AddComment(c *fiber.Ctx) error {
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

func (h *OfficerHandler) applyNoteTransition(c *fiber.Ctx, target domain.ComplaintStatus) error {
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
	complaint, err := h.lifecycle.ApplyTransition(c.Context(), user, c.Params("id"), target, service.TransitionInput{Notes: req.Notes})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": complaintSummary(complaint)})
}
