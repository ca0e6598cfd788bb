package domain

import "time"

// IncidentStatus enumerates lifecycle states for incidents.
type IncidentStatus string

const (
	IncidentStatusOpen       IncidentStatus = "open"
	IncidentStatusInProgress IncidentStatus = "in_progress"
	IncidentStatusClosed     IncidentStatus = "closed"
)

// AllowedTransitions maps each status to the statuses it may move to.
// Same-state transitions are never listed; closed may only reopen.
var AllowedTransitions = map[IncidentStatus][]IncidentStatus{
	IncidentStatusOpen:       {IncidentStatusInProgress, IncidentStatusClosed},
	IncidentStatusInProgress: {IncidentStatusOpen, IncidentStatusClosed},
	IncidentStatusClosed:     {IncidentStatusOpen},
}

// ValidStatus reports whether s is one of the three incident statuses.
func ValidStatus(s IncidentStatus) bool {
	switch s {
	case IncidentStatusOpen, IncidentStatusInProgress, IncidentStatusClosed:
		return true
	}
	return false
}

// CanTransition reports whether moving from current to next is legal.
func CanTransition(current, next IncidentStatus) bool {
	for _, candidate := range AllowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Incident is the aggregate for reported problems tracked open to closed.
type Incident struct {
	ID          int64
	Title       string
	Description string
	Status      IncidentStatus
	ReporterID  int64
	AssigneeID  *int64
	CategoryID  int64
	PriorityID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Populated only when relations are requested.
	Reporter *UserSummary
	Assignee *UserSummary
	Category *ClassificationSummary
	Priority *ClassificationSummary
}

// UserSummary is a hydrated reference to a user.
type UserSummary struct {
	ID    int64
	Name  string
	Email string
}

// ClassificationSummary is a hydrated reference to a category or priority.
type ClassificationSummary struct {
	ID   int64
	Name string
}

// IncidentStatistics aggregates counts over a filtered incident set.
type IncidentStatistics struct {
	Total                  int64                    `json:"total"`
	ByStatus               map[IncidentStatus]int64 `json:"by_status"`
	ByCategory             map[string]int64         `json:"by_category"`
	ByPriority             map[string]int64         `json:"by_priority"`
	AverageResolutionHours *float64                 `json:"average_resolution_hours,omitempty"`
}
