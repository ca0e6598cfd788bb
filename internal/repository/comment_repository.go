package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// CommentRepository encapsulates comment persistence.
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) error
	ListByIncident(ctx context.Context, incidentID int64) ([]domain.Comment, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository instantiates repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Create(ctx context.Context, comment *domain.Comment) error {
	const query = `
        INSERT INTO comments (incident_id, author_id, body)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.IncidentID,
		comment.AuthorID,
		comment.Body,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *commentRepository) ListByIncident(ctx context.Context, incidentID int64) ([]domain.Comment, error) {
	const query = `
        SELECT cm.id, cm.incident_id, cm.author_id, cm.body, cm.created_at,
               u.id, u.name, u.email
        FROM comments cm
        LEFT JOIN users u ON u.id = cm.author_id
        WHERE cm.incident_id=$1
        ORDER BY cm.created_at`

	rows, err := r.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Comment
	for rows.Next() {
		var comment domain.Comment
		var authorID *int64
		var authorName, authorEmail *string
		if err := rows.Scan(
			&comment.ID,
			&comment.IncidentID,
			&comment.AuthorID,
			&comment.Body,
			&comment.CreatedAt,
			&authorID, &authorName, &authorEmail,
		); err != nil {
			return nil, err
		}
		if authorID != nil {
			comment.Author = &domain.UserSummary{ID: *authorID, Name: deref(authorName), Email: deref(authorEmail)}
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
