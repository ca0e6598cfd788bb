package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// IncidentsHandler manages incident endpoints.
type IncidentsHandler struct {
	service *service.IncidentService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidentService *service.IncidentService) *IncidentsHandler {
	return &IncidentsHandler{service: incidentService}
}

// Create POST /incidents.
func (h *IncidentsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	id, err := h.service.Create(c.UserContext(), service.IncidentCreateInput{
		Title:       req.Title,
		Description: req.Description,
		ReporterID:  principal.User.ID,
		CategoryID:  req.CategoryID,
		PriorityID:  req.PriorityID,
		AssigneeID:  req.AssigneeID,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{"id": id}})
}

// List GET /incidents.
func (h *IncidentsHandler) List(c *fiber.Ctx) error {
	filter, err := parseIncidentQuery(c)
	if err != nil {
		return err
	}
	incidents, err := h.service.List(c.UserContext(), filter, includeRelations(c))
	if err != nil {
		return err
	}
	items := make([]dto.IncidentResponse, 0, len(incidents))
	for i := range incidents {
		items = append(items, incidentResponse(&incidents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /incidents/:id.
func (h *IncidentsHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	incident, err := h.service.GetByID(c.UserContext(), id, includeRelations(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentResponse(incident)})
}

// Update PATCH /incidents/:id.
func (h *IncidentsHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.Update(c.UserContext(), id, service.IncidentUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		CategoryID:  req.CategoryID,
		PriorityID:  req.PriorityID,
	}); err != nil {
		return err
	}
	incident, err := h.service.GetByID(c.UserContext(), id, false)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentResponse(incident)})
}

// ChangeStatus POST /incidents/:id/status.
func (h *IncidentsHandler) ChangeStatus(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.ChangeStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.ChangeStatus(c.UserContext(), id, req.Status); err != nil {
		return err
	}
	incident, err := h.service.GetByID(c.UserContext(), id, false)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": incidentResponse(incident)})
}

// Assign POST /incidents/:id/assign.
func (h *IncidentsHandler) Assign(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ok, err := h.service.Assign(c.UserContext(), id, req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"assigned": ok}})
}

// Delete DELETE /incidents/:id.
func (h *IncidentsHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Stats GET /incidents/stats.
func (h *IncidentsHandler) Stats(c *fiber.Ctx) error {
	filter := service.StatsFilter{}
	if from := parseTime(c.Query("from")); from != nil {
		filter.From = from
	}
	if to := parseTime(c.Query("to")); to != nil {
		filter.To = to
	}
	var err error
	if filter.ReporterID, err = parseOptionalID(c.Query("reporter_id")); err != nil {
		return err
	}
	if filter.CategoryID, err = parseOptionalID(c.Query("category_id")); err != nil {
		return err
	}
	stats, err := h.service.Statistics(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

func parseIncidentQuery(c *fiber.Ctx) (service.IncidentListFilter, error) {
	filter := service.IncidentListFilter{}
	if statusStr := strings.TrimSpace(c.Query("status")); statusStr != "" {
		status := domain.IncidentStatus(statusStr)
		filter.Status = &status
	}
	var err error
	if filter.ReporterID, err = parseOptionalID(c.Query("reporter_id")); err != nil {
		return filter, err
	}
	if filter.AssigneeID, err = parseOptionalID(c.Query("assignee_id")); err != nil {
		return filter, err
	}
	if filter.CategoryID, err = parseOptionalID(c.Query("category_id")); err != nil {
		return filter, err
	}
	if filter.PriorityID, err = parseOptionalID(c.Query("priority_id")); err != nil {
		return filter, err
	}
	if from := parseTime(c.Query("from")); from != nil {
		filter.From = from
	}
	if to := parseTime(c.Query("to")); to != nil {
		filter.To = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func includeRelations(c *fiber.Ctx) bool {
	return c.QueryBool("include_relations")
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError("id must be a positive integer", nil)
	}
	return id, nil
}

func parseOptionalID(val string) (*int64, error) {
	if val == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid id parameter", map[string]any{"value": val})
	}
	return &id, nil
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

func incidentResponse(incident *domain.Incident) dto.IncidentResponse {
	resp := dto.IncidentResponse{
		ID:          incident.ID,
		Title:       incident.Title,
		Description: incident.Description,
		Status:      incident.Status,
		ReporterID:  incident.ReporterID,
		AssigneeID:  incident.AssigneeID,
		CategoryID:  incident.CategoryID,
		PriorityID:  incident.PriorityID,
		CreatedAt:   incident.CreatedAt,
		UpdatedAt:   incident.UpdatedAt,
	}
	if incident.Reporter != nil {
		resp.Reporter = userSummaryResponse(incident.Reporter)
	}
	if incident.Assignee != nil {
		resp.Assignee = userSummaryResponse(incident.Assignee)
	}
	if incident.Category != nil {
		resp.Category = &dto.ClassificationSummaryResponse{ID: incident.Category.ID, Name: incident.Category.Name}
	}
	if incident.Priority != nil {
		resp.Priority = &dto.ClassificationSummaryResponse{ID: incident.Priority.ID, Name: incident.Priority.Name}
	}
	return resp
}

func userSummaryResponse(summary *domain.UserSummary) *dto.UserSummaryResponse {
	return &dto.UserSummaryResponse{ID: summary.ID, Name: summary.Name, Email: summary.Email}
}
