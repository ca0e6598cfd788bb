package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// CommentsHandler manages incident comment endpoints.
type CommentsHandler struct {
	service *service.CommentService
}

// NewCommentsHandler constructs handler.
func NewCommentsHandler(commentService *service.CommentService) *CommentsHandler {
	return &CommentsHandler{service: commentService}
}

// Create POST /incidents/:id/comments.
func (h *CommentsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	incidentID, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.Add(c.UserContext(), incidentID, principal.User.ID, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// List GET /incidents/:id/comments.
func (h *CommentsHandler) List(c *fiber.Ctx) error {
	incidentID, err := parseID(c)
	if err != nil {
		return err
	}
	comments, err := h.service.ListByIncident(c.UserContext(), incidentID)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	resp := dto.CommentResponse{
		ID:         comment.ID,
		IncidentID: comment.IncidentID,
		AuthorID:   comment.AuthorID,
		Body:       comment.Body,
		CreatedAt:  comment.CreatedAt,
	}
	if comment.Author != nil {
		resp.Author = userSummaryResponse(comment.Author)
	}
	return resp
}
