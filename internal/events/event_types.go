package events

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentCreated       EventType = "incident_created"
	EventIncidentStatusChanged EventType = "incident_status_changed"
	EventIncidentAssigned      EventType = "incident_assigned"
	EventIncidentDeleted       EventType = "incident_deleted"
	EventCommentAdded          EventType = "comment_added"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IncidentID int64       `json:"incident_id"`
	ActorID    *int64      `json:"actor_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentCreatedPayload payload.
type IncidentCreatedPayload struct {
	Title      string                `json:"title"`
	Status     domain.IncidentStatus `json:"status"`
	ReporterID int64                 `json:"reporter_id"`
	CategoryID int64                 `json:"category_id"`
	PriorityID int64                 `json:"priority_id"`
}

// IncidentStatusChangedPayload payload.
type IncidentStatusChangedPayload struct {
	OldStatus domain.IncidentStatus `json:"old_status"`
	NewStatus domain.IncidentStatus `json:"new_status"`
}

// IncidentAssignedPayload payload.
type IncidentAssignedPayload struct {
	AssigneeID *int64 `json:"assignee_id,omitempty"`
}

// IncidentDeletedPayload payload.
type IncidentDeletedPayload struct {
	Title string `json:"title"`
}

// CommentAddedPayload payload.
type CommentAddedPayload struct {
	CommentID   int64  `json:"comment_id"`
	AuthorID    int64  `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}
