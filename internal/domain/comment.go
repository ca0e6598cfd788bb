package domain

import "time"

// Comment is a note attached to an incident by a user.
type Comment struct {
	ID         int64
	IncidentID int64
	AuthorID   int64
	Body       string
	CreatedAt  time.Time

	Author *UserSummary
}
