package dto

import (
	"time"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CreateIncidentRequest payload.
type CreateIncidentRequest struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	CategoryID  int64                  `json:"category_id"`
	PriorityID  int64                  `json:"priority_id"`
	AssigneeID  *int64                 `json:"assignee_id"`
	Status      *domain.IncidentStatus `json:"status"`
}

// UpdateIncidentRequest payload; absent fields are untouched.
type UpdateIncidentRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *domain.IncidentStatus `json:"status"`
	CategoryID  *int64                 `json:"category_id"`
	PriorityID  *int64                 `json:"priority_id"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.IncidentStatus `json:"status"`
}

// AssignRequest payload; null assignee_id unassigns.
type AssignRequest struct {
	AssigneeID *int64 `json:"assignee_id"`
}

// UserSummaryResponse hydrated user reference.
type UserSummaryResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ClassificationSummaryResponse hydrated category/priority reference.
type ClassificationSummaryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// IncidentResponse full incident view.
type IncidentResponse struct {
	ID          int64                          `json:"id"`
	Title       string                         `json:"title"`
	Description string                         `json:"description"`
	Status      domain.IncidentStatus          `json:"status"`
	ReporterID  int64                          `json:"reporter_id"`
	AssigneeID  *int64                         `json:"assignee_id"`
	CategoryID  int64                          `json:"category_id"`
	PriorityID  int64                          `json:"priority_id"`
	CreatedAt   time.Time                      `json:"created_at"`
	UpdatedAt   time.Time                      `json:"updated_at"`
	Reporter    *UserSummaryResponse           `json:"reporter,omitempty"`
	Assignee    *UserSummaryResponse           `json:"assignee,omitempty"`
	Category    *ClassificationSummaryResponse `json:"category,omitempty"`
	Priority    *ClassificationSummaryResponse `json:"priority,omitempty"`
}
