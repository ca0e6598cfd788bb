package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/events"
	"github.com/spec-kit/incident-service/internal/repository"
	apperrors "github.com/spec-kit/incident-service/pkg/util"
)

const commentMaxLen = 2000

// CommentService attaches comments to incidents.
type CommentService struct {
	comments   repository.CommentRepository
	incidents  repository.IncidentRepository
	dispatcher events.Dispatcher
}

// NewCommentService constructs the service.
func NewCommentService(comments repository.CommentRepository, incidents repository.IncidentRepository, dispatcher events.Dispatcher) *CommentService {
	return &CommentService{comments: comments, incidents: incidents, dispatcher: dispatcher}
}

// Add validates and persists a comment on an existing incident.
func (s *CommentService) Add(ctx context.Context, incidentID, authorID int64, body string) (*domain.Comment, error) {
	if err := validatePositiveID("incident_id", incidentID); err != nil {
		return nil, err
	}
	if err := validatePositiveID("author_id", authorID); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", nil)
	}
	if utf8.RuneCountInString(body) > commentMaxLen {
		return nil, apperrors.NewValidationError("comment body too long", map[string]any{"max": commentMaxLen})
	}

	if _, err := s.incidents.GetByID(ctx, incidentID, false); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"id": incidentID})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}

	comment := &domain.Comment{
		IncidentID: incidentID,
		AuthorID:   authorID,
		Body:       body,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			Type:       events.EventCommentAdded,
			IncidentID: incidentID,
			ActorID:    &authorID,
			Payload: events.CommentAddedPayload{
				CommentID:   comment.ID,
				AuthorID:    authorID,
				BodyPreview: stringPreview(body, 120),
			},
		})
	}
	return comment, nil
}

// ListByIncident returns the incident's comments oldest-first.
func (s *CommentService) ListByIncident(ctx context.Context, incidentID int64) ([]domain.Comment, error) {
	if err := validatePositiveID("incident_id", incidentID); err != nil {
		return nil, err
	}
	if _, err := s.incidents.GetByID(ctx, incidentID, false); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("incident", map[string]any{"id": incidentID})
		}
		return nil, apperrors.NewInfrastructureError(err)
	}
	result, err := s.comments.ListByIncident(ctx, incidentID)
	if err != nil {
		return nil, apperrors.NewInfrastructureError(err)
	}
	return result, nil
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
