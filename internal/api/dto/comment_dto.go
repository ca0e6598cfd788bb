package dto

import "time"

// CreateCommentRequest payload.
type CreateCommentRequest struct {
	Body string `json:"body"`
}

// CommentResponse represents an incident comment.
type CommentResponse struct {
	ID         int64                `json:"id"`
	IncidentID int64                `json:"incident_id"`
	AuthorID   int64                `json:"author_id"`
	Body       string               `json:"body"`
	CreatedAt  time.Time            `json:"created_at"`
	Author     *UserSummaryResponse `json:"author,omitempty"`
}
