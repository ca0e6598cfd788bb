package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

const (
	classificationNameMinLen = 3
	classificationNameMaxLen = 100
)

// CategoryService manages incident categories.
type CategoryService struct {
	categories repository.CategoryRepository
}

// NewCategoryService constructs the service.
func NewCategoryService(categories repository.CategoryRepository) *CategoryService {
	return &CategoryService{categories: categories}
}

// Create validates and persists a new category.
func (s *CategoryService) Create(ctx context.Context, name, description string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if err := validateClassificationName(name); err != nil {
		return nil, err
	}
	category := &domain.Category{
		Name:        name,
		Description: strings.TrimSpace(description),
		IsActive:    true,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}
	return category, nil
}

// GetByID returns the category.
func (s *CategoryService) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	if err := validatePositiveID("id", id); err != nil {
		return nil, err
	}
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"id": id})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}
	return category, nil
}

// List returns categories, optionally restricted to active ones.
func (s *CategoryService) List(ctx context.Context, onlyActive bool) ([]domain.Category, error) {
	result, err := s.categories.List(ctx, onlyActive)
	if err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}
	return result, nil
}

// Update replaces name/description of an existing category.
func (s *CategoryService) Update(ctx context.Context, id int64, name, description string) (*domain.Category, error) {
	category, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateClassificationName(name); err != nil {
		return nil, err
	}
	category.Name = name
	category.Description = strings.TrimSpace(description)
	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("category", map[string]any{"id": id})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}
	return category, nil
}

// Deactivate logically deletes the category.
func (s *CategoryService) Deactivate(ctx context.Context, id int64) error {
	if err := validatePositiveID("id", id); err != nil {
		return err
	}
	done, err := s.categories.Deactivate(ctx, id)
	if err != nil {
		return apperrors.NewInfrastructureError(err)
	}
	if !done {
		return apperrors.NewNotFound("category", map[string]any{"id": id})
	}
	return nil
}

func validateClassificationName(name string) error {
	length := utf8.RuneCountInString(name)
	if length < classificationNameMinLen || length > classificationNameMaxLen {
		return apperrors.NewValidationError("name must be 3-100 characters", map[string]any{"length": length})
	}
	return nil
}
