package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// PriorityRepository encapsulates priority persistence.
type PriorityRepository interface {
	Create(ctx context.Context, priority *domain.Priority) error
	GetByID(ctx context.Context, id int64) (*domain.Priority, error)
	List(ctx context.Context, onlyActive bool) ([]domain.Priority, error)
	Update(ctx context.Context, priority *domain.Priority) error
	Deactivate(ctx context.Context, id int64) (bool, error)
}

type priorityRepository struct {
	pool *pgxpool.Pool
}

// NewPriorityRepository instantiates repository.
func NewPriorityRepository(pool *pgxpool.Pool) PriorityRepository {
	return &priorityRepository{pool: pool}
}

func (r *priorityRepository) Create(ctx context.Context, priority *domain.Priority) error {
	const query = `
        INSERT INTO priorities (name, description, level, is_active)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		priority.Name,
		priority.Description,
		priority.Level,
		priority.IsActive,
	).Scan(&priority.ID, &priority.CreatedAt, &priority.UpdatedAt)
}

func (r *priorityRepository) GetByID(ctx context.Context, id int64) (*domain.Priority, error) {
	const query = `
        SELECT id, name, description, level, is_active, created_at, updated_at
        FROM priorities WHERE id=$1`
	var priority domain.Priority
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&priority.ID,
		&priority.Name,
		&priority.Description,
		&priority.Level,
		&priority.IsActive,
		&priority.CreatedAt,
		&priority.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &priority, nil
}

func (r *priorityRepository) List(ctx context.Context, onlyActive bool) ([]domain.Priority, error) {
	query := `SELECT id, name, description, level, is_active, created_at, updated_at FROM priorities`
	if onlyActive {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY level`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Priority
	for rows.Next() {
		var priority domain.Priority
		if err := rows.Scan(
			&priority.ID,
			&priority.Name,
			&priority.Description,
			&priority.Level,
			&priority.IsActive,
			&priority.CreatedAt,
			&priority.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, priority)
	}
	return result, rows.Err()
}

func (r *priorityRepository) Update(ctx context.Context, priority *domain.Priority) error {
	const query = `
        UPDATE priorities SET name=$1, description=$2, level=$3, is_active=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		priority.Name,
		priority.Description,
		priority.Level,
		priority.IsActive,
		priority.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Deactivate performs logical deletion by flipping the active flag.
func (r *priorityRepository) Deactivate(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE priorities SET is_active=FALSE, updated_at=NOW() WHERE id=$1 AND is_active`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
