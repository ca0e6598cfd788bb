package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

// PriorityService manages incident priorities.
type PriorityService struct {
	priorities repository.PriorityRepository
}

// NewPriorityService constructs the service.
func NewPriorityService(priorities repository.PriorityRepository) *PriorityService {
	return &PriorityService{priorities: priorities}
}

// Create validates and persists a new priority.
func (s *PriorityService) Create(ctx context.Context, name, description string, level int) (*domain.Priority, error) {
	name = strings.TrimSpace(name)
	if err := validateClassificationName(name); err != nil {
		return nil, err
	}
	if level <= 0 {
		return nil, apperrors.NewValidationError("level must be a positive integer", map[string]any{"level": level})
	}
	priority := &domain.Priority{
		Name:        name,
		Description: strings.TrimSpace(description),
		Level:       level,
		IsActive:    true,
	}
	if err := s.priorities.Create(ctx, priority); err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}
	return priority, nil
}

// GetByID returns the priority.
func (s *PriorityService) GetByID(ctx context.Context, id int64) (*domain.Priority, error) {
	if err := validatePositiveID("id", id); err != nil {
		return nil, err
	}
	priority, err := s.priorities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("priority", map[string]any{"id": id})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}
	return priority, nil
}

// List returns priorities, optionally restricted to active ones.
func (s *PriorityService) List(ctx context.Context, onlyActive bool) ([]domain.Priority, error) {
	result, err := s.priorities.List(ctx, onlyActive)
	if err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}
	return result, nil
}

// Update replaces name/description/level of an existing priority.
func (s *PriorityService) Update(ctx context.Context, id int64, name, description string, level int) (*domain.Priority, error) {
	priority, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateClassificationName(name); err != nil {
		return nil, err
	}
	if level <= 0 {
		return nil, apperrors.NewValidationError("level must be a positive integer", map[string]any{"level": level})
	}
	priority.Name = name
	priority.Description = strings.TrimSpace(description)
	priority.Level = level
	if err := s.priorities.Update(ctx, priority); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("priority", map[string]any{"id": id})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}
	return priority, nil
}

// Deactivate logically deletes the priority.
func (s *PriorityService) Deactivate(ctx context.Context, id int64) error {
	if err := validatePositiveID("id", id); err != nil {
		return err
	}
	done, err := s.priorities.Deactivate(ctx, id)
	if err != nil {
		return apperrors.NewInfrastructureError(err)
	}
	if !done {
		return apperrors.NewNotFound("priority", map[string]any{"id": id})
	}
	return nil
}
