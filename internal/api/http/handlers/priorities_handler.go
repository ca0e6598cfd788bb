package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// PrioritiesHandler manages priority endpoints.
type PrioritiesHandler struct {
	service *service.PriorityService
}

// NewPrioritiesHandler constructs handler.
func NewPrioritiesHandler(priorityService *service.PriorityService) *PrioritiesHandler {
	return &PrioritiesHandler{service: priorityService}
}

// Create POST /priorities.
func (h *PrioritiesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	priority, err := h.service.Create(c.UserContext(), req.Name, req.Description, req.Level)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": priorityResponse(priority)})
}

// List GET /priorities.
func (h *PrioritiesHandler) List(c *fiber.Ctx) error {
	onlyActive := !c.QueryBool("include_inactive")
	priorities, err := h.service.List(c.UserContext(), onlyActive)
	if err != nil {
		return err
	}
	items := make([]dto.PriorityResponse, 0, len(priorities))
	for i := range priorities {
		items = append(items, priorityResponse(&priorities[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /priorities/:id.
func (h *PrioritiesHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	priority, err := h.service.GetByID(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": priorityResponse(priority)})
}

// Update PATCH /priorities/:id.
func (h *PrioritiesHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.CreatePriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	priority, err := h.service.Update(c.UserContext(), id, req.Name, req.Description, req.Level)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": priorityResponse(priority)})
}

// Delete DELETE /priorities/:id (logical).
func (h *PrioritiesHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.Deactivate(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func priorityResponse(priority *domain.Priority) dto.PriorityResponse {
	return dto.PriorityResponse{
		ID:          priority.ID,
		Name:        priority.Name,
		Description: priority.Description,
		Level:       priority.Level,
		IsActive:    priority.IsActive,
		CreatedAt:   priority.CreatedAt,
		UpdatedAt:   priority.UpdatedAt,
	}
}
