package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

const (
	titleMinLen       = 5
	titleMaxLen       = 150
	descriptionMaxLen = 5000
)

// titlePattern allows letters (including accented), digits, spaces and a small
// punctuation set.
var titlePattern = regexp.MustCompile(`^[\p{L}\p{N}\s.,:;¿?¡!()'"_/#-]+$`)

// StatsCache caches computed statistics; a nil cache disables caching.
type StatsCache interface {
	Get(ctx context.Context, key string) (*domain.IncidentStatistics, bool)
	Set(ctx context.Context, key string, stats *domain.IncidentStatistics)
}

// IncidentService enforces all business rules around incident creation,
// mutation, status transition and assignment.
type IncidentService struct {
	incidents  repository.IncidentRepository
	categories repository.CategoryRepository
	priorities repository.PriorityRepository
	cache      StatsCache
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// IncidentDependencies bundles collaborators for the incident service.
type IncidentDependencies struct {
	IncidentRepo repository.IncidentRepository
	CategoryRepo repository.CategoryRepository
	PriorityRepo repository.PriorityRepository
	StatsCache   StatsCache
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
}

// IncidentCreateInput describes incident creation payload.
type IncidentCreateInput struct {
	Title       string
	Description string
	ReporterID  int64
	CategoryID  int64
	PriorityID  int64
	AssigneeID  *int64
	Status      *domain.IncidentStatus
}

// IncidentUpdateInput describes a partial update; nil fields are untouched.
type IncidentUpdateInput struct {
	Title       *string
	Description *string
	Status      *domain.IncidentStatus
	CategoryID  *int64
	PriorityID  *int64
}

// IncidentListFilter describes listing filters.
type IncidentListFilter struct {
	Status     *domain.IncidentStatus
	ReporterID *int64
	AssigneeID *int64
	CategoryID *int64
	PriorityID *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// StatsFilter describes statistics filters.
type StatsFilter struct {
	From       *time.Time
	To         *time.Time
	ReporterID *int64
	CategoryID *int64
}

// NewIncidentService constructs the service.
func NewIncidentService(deps IncidentDependencies) *IncidentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IncidentService{
		incidents:  deps.IncidentRepo,
		categories: deps.CategoryRepo,
		priorities: deps.PriorityRepo,
		cache:      deps.StatsCache,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// Create validates and persists a new incident, returning its identifier.
func (s *IncidentService) Create(ctx context.Context, input IncidentCreateInput) (int64, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return 0, err
	}
	description := strings.TrimSpace(input.Description)
	if err := validateDescription(description); err != nil {
		return 0, err
	}
	if err := validatePositiveID("reporter_id", input.ReporterID); err != nil {
		return 0, err
	}
	if err := validatePositiveID("category_id", input.CategoryID); err != nil {
		return 0, err
	}
	if err := validatePositiveID("priority_id", input.PriorityID); err != nil {
		return 0, err
	}
	if input.AssigneeID != nil {
		if err := validatePositiveID("assignee_id", *input.AssigneeID); err != nil {
			return 0, err
		}
		if *input.AssigneeID == input.ReporterID {
			return 0, apperrors.NewValidationError("reporter cannot be their own assignee", nil)
		}
	}

	status := domain.IncidentStatusOpen
	if input.Status != nil {
		if !domain.ValidStatus(*input.Status) {
			return 0, apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		status = *input.Status
	}

	if err := s.checkClassification(ctx, input.CategoryID, input.PriorityID); err != nil {
		return 0, err
	}

	incident := &domain.Incident{
		Title:       title,
		Description: description,
		Status:      status,
		ReporterID:  input.ReporterID,
		AssigneeID:  input.AssigneeID,
		CategoryID:  input.CategoryID,
		PriorityID:  input.PriorityID,
	}

	if err := s.incidents.Create(ctx, incident); err != nil {
		s.logger.Error("incident create failed", zap.Error(err))
		return 0, apperrors.NewInfrastructureError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentCreated,
		IncidentID: incident.ID,
		ActorID:    &incident.ReporterID,
		Payload: events.IncidentCreatedPayload{
			Title:      incident.Title,
			Status:     incident.Status,
			ReporterID: incident.ReporterID,
			CategoryID: incident.CategoryID,
			PriorityID: incident.PriorityID,
		},
	})
	return incident.ID, nil
}

// GetByID returns the incident, optionally hydrated with relation summaries.
func (s *IncidentService) GetByID(ctx context.Context, id int64, includeRelations bool) (*domain.Incident, error) {
	if err := validatePositiveID("id", id); err != nil {
		return nil, err
	}
	return s.fetch(ctx, id, includeRelations)
}

// List returns incidents matching the filter, newest first.
func (s *IncidentService) List(ctx context.Context, filter IncidentListFilter, includeRelations bool) ([]domain.Incident, error) {
	if err := validateListFilter(filter); err != nil {
		return nil, err
	}
	result, err := s.incidents.List(ctx, repository.IncidentFilter{
		Status:     filter.Status,
		ReporterID: filter.ReporterID,
		AssigneeID: filter.AssigneeID,
		CategoryID: filter.CategoryID,
		PriorityID: filter.PriorityID,
		From:       filter.From,
		To:         filter.To,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}, includeRelations)
	if err != nil {
		s.logger.Error("incident list failed", zap.Error(err))
		return nil, apperrors.NewInfrastructureError(err)
	}
	return result, nil
}

// Update applies a partial update, re-validating each supplied field.
func (s *IncidentService) Update(ctx context.Context, id int64, input IncidentUpdateInput) error {
	if err := validatePositiveID("id", id); err != nil {
		return err
	}
	existing, err := s.fetch(ctx, id, false)
	if err != nil {
		return err
	}

	patch := repository.IncidentPatch{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if err := validateTitle(title); err != nil {
			return err
		}
		patch.Title = &title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if err := validateDescription(description); err != nil {
			return err
		}
		patch.Description = &description
	}
	if input.CategoryID != nil {
		if err := validatePositiveID("category_id", *input.CategoryID); err != nil {
			return err
		}
		if err := s.checkCategory(ctx, *input.CategoryID); err != nil {
			return err
		}
		patch.CategoryID = input.CategoryID
	}
	if input.PriorityID != nil {
		if err := validatePositiveID("priority_id", *input.PriorityID); err != nil {
			return err
		}
		if err := s.checkPriority(ctx, *input.PriorityID); err != nil {
			return err
		}
		patch.PriorityID = input.PriorityID
	}
	if input.Status != nil {
		if !domain.ValidStatus(*input.Status) {
			return apperrors.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		if !domain.CanTransition(existing.Status, *input.Status) {
			return illegalTransition(existing.Status, *input.Status)
		}
		patch.Status = input.Status
		expected := existing.Status
		patch.ExpectedStatus = &expected
	}

	changed, err := s.incidents.Update(ctx, id, patch)
	if err != nil {
		s.logger.Error("incident update failed", zap.Int64("id", id), zap.Error(err))
		return apperrors.NewInfrastructureError(err)
	}
	if !changed {
		if patch.ExpectedStatus != nil {
			return apperrors.NewConflict("incident was modified concurrently", map[string]any{"id": id})
		}
		return apperrors.NewNotFound("incident", map[string]any{"id": id})
	}

	if input.Status != nil {
		s.publishEvent(ctx, events.Event{
			Type:       events.EventIncidentStatusChanged,
			IncidentID: id,
			Payload: events.IncidentStatusChangedPayload{
				OldStatus: existing.Status,
				NewStatus: *input.Status,
			},
		})
	}
	return nil
}

// ChangeStatus moves the incident to newStatus when the transition is legal.
func (s *IncidentService) ChangeStatus(ctx context.Context, id int64, newStatus domain.IncidentStatus) error {
	if err := validatePositiveID("id", id); err != nil {
		return err
	}
	if !domain.ValidStatus(newStatus) {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": newStatus})
	}

	existing, err := s.fetch(ctx, id, false)
	if err != nil {
		return err
	}
	if !domain.CanTransition(existing.Status, newStatus) {
		return illegalTransition(existing.Status, newStatus)
	}

	// Conditional write: the transition only lands if the status is still the
	// one validation saw.
	changed, err := s.incidents.ChangeStatus(ctx, id, existing.Status, newStatus)
	if err != nil {
		s.logger.Error("status change failed", zap.Int64("id", id), zap.Error(err))
		return apperrors.NewInfrastructureError(err)
	}
	if !changed {
		return apperrors.NewConflict("incident was modified concurrently", map[string]any{"id": id})
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentStatusChanged,
		IncidentID: id,
		Payload: events.IncidentStatusChangedPayload{
			OldStatus: existing.Status,
			NewStatus: newStatus,
		},
	})
	return nil
}

// Assign sets or clears the assignee. Assigning a previously unassigned
// incident forces it to in_progress. Closed incidents reject any assignment
// change.
func (s *IncidentService) Assign(ctx context.Context, id int64, assigneeID *int64) (bool, error) {
	if err := validatePositiveID("id", id); err != nil {
		return false, err
	}
	if assigneeID != nil {
		if err := validatePositiveID("assignee_id", *assigneeID); err != nil {
			return false, err
		}
	}

	existing, err := s.fetch(ctx, id, false)
	if err != nil {
		return false, err
	}
	if existing.Status == domain.IncidentStatusClosed {
		return false, apperrors.NewValidationError("cannot assign a closed incident", map[string]any{"id": id})
	}

	forceInProgress := assigneeID != nil && existing.AssigneeID == nil &&
		existing.Status != domain.IncidentStatusInProgress

	changed, err := s.incidents.Assign(ctx, id, assigneeID, forceInProgress)
	if err != nil {
		s.logger.Error("assign failed", zap.Int64("id", id), zap.Error(err))
		return false, apperrors.NewInfrastructureError(err)
	}
	if !changed {
		// The status guard rejected the write, meaning the incident closed
		// between the read and the update.
		return false, apperrors.NewConflict("incident was modified concurrently", map[string]any{"id": id})
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentAssigned,
		IncidentID: id,
		Payload:    events.IncidentAssignedPayload{AssigneeID: assigneeID},
	})
	if forceInProgress {
		s.publishEvent(ctx, events.Event{
			Type:       events.EventIncidentStatusChanged,
			IncidentID: id,
			Payload: events.IncidentStatusChangedPayload{
				OldStatus: existing.Status,
				NewStatus: domain.IncidentStatusInProgress,
			},
		})
	}
	return true, nil
}

// Delete physically removes the incident; only closed incidents may be deleted.
func (s *IncidentService) Delete(ctx context.Context, id int64) error {
	if err := validatePositiveID("id", id); err != nil {
		return err
	}
	existing, err := s.fetch(ctx, id, false)
	if err != nil {
		return err
	}
	if existing.Status != domain.IncidentStatusClosed {
		return apperrors.NewValidationError("only closed incidents can be deleted", map[string]any{
			"id":     id,
			"status": existing.Status,
		})
	}

	deleted, err := s.incidents.Delete(ctx, id)
	if err != nil {
		s.logger.Error("incident delete failed", zap.Int64("id", id), zap.Error(err))
		return apperrors.NewInfrastructureError(err)
	}
	if !deleted {
		return apperrors.NewNotFound("incident", map[string]any{"id": id})
	}

	s.publishEvent(ctx, events.Event{
		Type:       events.EventIncidentDeleted,
		IncidentID: id,
		Payload:    events.IncidentDeletedPayload{Title: existing.Title},
	})
	return nil
}

// Statistics aggregates counts over the filtered incident set. Results are
// cached under the filter key; cache unavailability never fails the request.
func (s *IncidentService) Statistics(ctx context.Context, filter StatsFilter) (*domain.IncidentStatistics, error) {
	if err := validateStatsFilter(filter); err != nil {
		return nil, err
	}

	key := statsCacheKey(filter)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, key); ok {
			return cached, nil
		}
	}

	stats, err := s.incidents.Statistics(ctx, repository.IncidentFilter{
		From:       filter.From,
		To:         filter.To,
		ReporterID: filter.ReporterID,
		CategoryID: filter.CategoryID,
	})
	if err != nil {
		s.logger.Error("statistics failed", zap.Error(err))
		return nil, apperrors.NewInfrastructureError(err)
	}

	if s.cache != nil {
		s.cache.Set(ctx, key, stats)
	}
	return stats, nil
}

func (s *IncidentService) fetch(ctx context.Context, id int64, includeRelations bool) (*domain.Incident, error) {
	incident, err := s.incidents.GetByID(ctx, id, includeRelations)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"id": id})
		}
		s.logger.Error("incident fetch failed", zap.Int64("id", id), zap.Error(err))
		return nil, apperrors.NewInfrastructureError(err)
	}
	return incident, nil
}

func (s *IncidentService) checkClassification(ctx context.Context, categoryID, priorityID int64) error {
	if err := s.checkCategory(ctx, categoryID); err != nil {
		return err
	}
	return s.checkPriority(ctx, priorityID)
}

func (s *IncidentService) checkCategory(ctx context.Context, categoryID int64) error {
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("unknown category", map[string]any{"category_id": categoryID})
		}
		return apperrors.NewInfrastructureError(err)
	}
	if !category.IsActive {
		return apperrors.NewValidationError("category inactive", map[string]any{"category_id": categoryID})
	}
	return nil
}

func (s *IncidentService) checkPriority(ctx context.Context, priorityID int64) error {
	priority, err := s.priorities.GetByID(ctx, priorityID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority_id": priorityID})
		}
		return apperrors.NewInfrastructureError(err)
	}
	if !priority.IsActive {
		return apperrors.NewValidationError("priority inactive", map[string]any{"priority_id": priorityID})
	}
	return nil
}

func (s *IncidentService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateTitle(title string) error {
	length := utf8.RuneCountInString(title)
	if length < titleMinLen || length > titleMaxLen {
		return apperrors.NewValidationError(
			fmt.Sprintf("title must be %d-%d characters", titleMinLen, titleMaxLen),
			map[string]any{"length": length},
		)
	}
	if !titlePattern.MatchString(title) {
		return apperrors.NewValidationError("title contains invalid characters", nil)
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > descriptionMaxLen {
		return apperrors.NewValidationError(
			fmt.Sprintf("description must be at most %d characters", descriptionMaxLen), nil)
	}
	return nil
}

func validatePositiveID(field string, id int64) error {
	if id <= 0 {
		return apperrors.NewValidationError(field+" must be a positive integer", map[string]any{field: id})
	}
	return nil
}

func validateListFilter(filter IncidentListFilter) error {
	if filter.Status != nil && !domain.ValidStatus(*filter.Status) {
		return apperrors.NewValidationError("invalid status filter", map[string]any{"status": *filter.Status})
	}
	ids := map[string]*int64{
		"reporter_id": filter.ReporterID,
		"assignee_id": filter.AssigneeID,
		"category_id": filter.CategoryID,
		"priority_id": filter.PriorityID,
	}
	for field, id := range ids {
		if id != nil {
			if err := validatePositiveID(field, *id); err != nil {
				return err
			}
		}
	}
	return validateDateRange(filter.From, filter.To)
}

func validateStatsFilter(filter StatsFilter) error {
	if filter.ReporterID != nil {
		if err := validatePositiveID("reporter_id", *filter.ReporterID); err != nil {
			return err
		}
	}
	if filter.CategoryID != nil {
		if err := validatePositiveID("category_id", *filter.CategoryID); err != nil {
			return err
		}
	}
	return validateDateRange(filter.From, filter.To)
}

func validateDateRange(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return apperrors.NewValidationError("'from' must not be after 'to'", nil)
	}
	return nil
}

func illegalTransition(current, next domain.IncidentStatus) error {
	return apperrors.NewValidationError(
		fmt.Sprintf("illegal status transition %s -> %s", current, next),
		map[string]any{"from": current, "to": next},
	)
}

func statsCacheKey(filter StatsFilter) string {
	var b strings.Builder
	b.WriteString("incident-stats:v1")
	if filter.From != nil {
		b.WriteString(":from=" + filter.From.UTC().Format(time.RFC3339))
	}
	if filter.To != nil {
		b.WriteString(":to=" + filter.To.UTC().Format(time.RFC3339))
	}
	if filter.ReporterID != nil {
		b.WriteString(fmt.Sprintf(":reporter=%d", *filter.ReporterID))
	}
	if filter.CategoryID != nil {
		b.WriteString(fmt.Sprintf(":category=%d", *filter.CategoryID))
	}
	return b.String()
}
