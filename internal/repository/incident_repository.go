package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/incident-service/internal/domain"
)

// IncidentFilter captures listing and statistics parameters.
type IncidentFilter struct {
	Status     *domain.IncidentStatus
	ReporterID *int64
	AssigneeID *int64
	CategoryID *int64
	PriorityID *int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// IncidentPatch holds the fields of a partial update; nil fields are untouched.
// ExpectedStatus guards the write when the patch changes status.
type IncidentPatch struct {
	Title          *string
	Description    *string
	Status         *domain.IncidentStatus
	CategoryID     *int64
	PriorityID     *int64
	ExpectedStatus *domain.IncidentStatus
}

// IncidentRepository is the persistence gateway for incidents.
type IncidentRepository interface {
	Create(ctx context.Context, incident *domain.Incident) error
	GetByID(ctx context.Context, id int64, includeRelations bool) (*domain.Incident, error)
	List(ctx context.Context, filter IncidentFilter, includeRelations bool) ([]domain.Incident, error)
	Update(ctx context.Context, id int64, patch IncidentPatch) (bool, error)
	ChangeStatus(ctx context.Context, id int64, from, to domain.IncidentStatus) (bool, error)
	Assign(ctx context.Context, id int64, assigneeID *int64, forceInProgress bool) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Statistics(ctx context.Context, filter IncidentFilter) (*domain.IncidentStatistics, error)
}

type incidentRepository struct {
	pool *pgxpool.Pool
}

// NewIncidentRepository instantiates repository.
func NewIncidentRepository(pool *pgxpool.Pool) IncidentRepository {
	return &incidentRepository{pool: pool}
}

func (r *incidentRepository) Create(ctx context.Context, incident *domain.Incident) error {
	const query = `
        INSERT INTO incidents (title, description, status, reporter_id, assignee_id, category_id, priority_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		incident.Title,
		incident.Description,
		incident.Status,
		incident.ReporterID,
		incident.AssigneeID,
		incident.CategoryID,
		incident.PriorityID,
	).Scan(&incident.ID, &incident.CreatedAt, &incident.UpdatedAt)
}

const incidentColumns = `i.id, i.title, i.description, i.status, i.reporter_id, i.assignee_id,
       i.category_id, i.priority_id, i.created_at, i.updated_at`

const relationColumns = `,
       r.id, r.name, r.email,
       a.id, a.name, a.email,
       c.id, c.name,
       p.id, p.name`

const relationJoins = `
        LEFT JOIN users r ON r.id = i.reporter_id
        LEFT JOIN users a ON a.id = i.assignee_id
        LEFT JOIN categories c ON c.id = i.category_id
        LEFT JOIN priorities p ON p.id = i.priority_id`

func (r *incidentRepository) GetByID(ctx context.Context, id int64, includeRelations bool) (*domain.Incident, error) {
	query := `SELECT ` + incidentColumns
	if includeRelations {
		query += relationColumns
	}
	query += ` FROM incidents i`
	if includeRelations {
		query += relationJoins
	}
	query += ` WHERE i.id=$1`

	row := r.pool.QueryRow(ctx, query, id)
	incident, err := scanIncident(row, includeRelations)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter, includeRelations bool) ([]domain.Incident, error) {
	query := `SELECT ` + incidentColumns
	if includeRelations {
		query += relationColumns
	}
	query += ` FROM incidents i`
	if includeRelations {
		query += relationJoins
	}

	clauses, args := filterClauses(filter)
	query += ` WHERE ` + strings.Join(clauses, " AND ")
	query += ` ORDER BY i.created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(` LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Incident
	for rows.Next() {
		incident, err := scanIncident(rows, includeRelations)
		if err != nil {
			return nil, err
		}
		result = append(result, *incident)
	}
	return result, rows.Err()
}

func (r *incidentRepository) Update(ctx context.Context, id int64, patch IncidentPatch) (bool, error) {
	sets := []string{"updated_at=NOW()"}
	args := []any{}

	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title=$%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, *patch.Description)
		sets = append(sets, fmt.Sprintf("description=$%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.CategoryID != nil {
		args = append(args, *patch.CategoryID)
		sets = append(sets, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if patch.PriorityID != nil {
		args = append(args, *patch.PriorityID)
		sets = append(sets, fmt.Sprintf("priority_id=$%d", len(args)))
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE incidents SET %s WHERE id=$%d", strings.Join(sets, ", "), len(args))
	if patch.ExpectedStatus != nil {
		args = append(args, *patch.ExpectedStatus)
		query += fmt.Sprintf(" AND status=$%d", len(args))
	}

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ChangeStatus performs the transition as a single conditional write so two
// racing callers cannot both succeed against the same prior status.
func (r *incidentRepository) ChangeStatus(ctx context.Context, id int64, from, to domain.IncidentStatus) (bool, error) {
	const query = `UPDATE incidents SET status=$1, updated_at=NOW() WHERE id=$2 AND status=$3`
	cmd, err := r.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// Assign sets (or clears) the assignee, guarded on the incident not being
// closed. When forceInProgress is set the status moves in the same statement.
func (r *incidentRepository) Assign(ctx context.Context, id int64, assigneeID *int64, forceInProgress bool) (bool, error) {
	const query = `
        UPDATE incidents
        SET assignee_id=$1,
            status=CASE WHEN $2 THEN 'in_progress' ELSE status END,
            updated_at=NOW()
        WHERE id=$3 AND status <> 'closed'`
	cmd, err := r.pool.Exec(ctx, query, assigneeID, forceInProgress, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *incidentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM incidents WHERE id=$1`, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *incidentRepository) Statistics(ctx context.Context, filter IncidentFilter) (*domain.IncidentStatistics, error) {
	clauses, args := filterClauses(filter)
	where := strings.Join(clauses, " AND ")

	stats := &domain.IncidentStatistics{
		ByStatus:   map[domain.IncidentStatus]int64{},
		ByCategory: map[string]int64{},
		ByPriority: map[string]int64{},
	}

	statusQuery := fmt.Sprintf(`SELECT i.status, COUNT(*) FROM incidents i WHERE %s GROUP BY i.status`, where)
	rows, err := r.pool.Query(ctx, statusQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var status domain.IncidentStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	categoryQuery := fmt.Sprintf(`
        SELECT COALESCE(c.name, 'uncategorized'), COUNT(*)
        FROM incidents i LEFT JOIN categories c ON c.id = i.category_id
        WHERE %s GROUP BY 1`, where)
	if err := r.scanGrouped(ctx, categoryQuery, args, stats.ByCategory); err != nil {
		return nil, err
	}

	priorityQuery := fmt.Sprintf(`
        SELECT COALESCE(p.name, 'unprioritized'), COUNT(*)
        FROM incidents i LEFT JOIN priorities p ON p.id = i.priority_id
        WHERE %s GROUP BY 1`, where)
	if err := r.scanGrouped(ctx, priorityQuery, args, stats.ByPriority); err != nil {
		return nil, err
	}

	avgQuery := fmt.Sprintf(`
        SELECT AVG(EXTRACT(EPOCH FROM (i.updated_at - i.created_at)) / 3600.0)
        FROM incidents i WHERE %s AND i.status = 'closed'`, where)
	var avg *float64
	if err := r.pool.QueryRow(ctx, avgQuery, args...).Scan(&avg); err != nil {
		return nil, err
	}
	stats.AverageResolutionHours = avg

	return stats, nil
}

func (r *incidentRepository) scanGrouped(ctx context.Context, query string, args []any, dest map[string]int64) error {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return err
		}
		dest[name] = count
	}
	return rows.Err()
}

func filterClauses(filter IncidentFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("i.status=$%d", len(args)))
	}
	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("i.reporter_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("i.assignee_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("i.category_id=$%d", len(args)))
	}
	if filter.PriorityID != nil {
		args = append(args, *filter.PriorityID)
		clauses = append(clauses, fmt.Sprintf("i.priority_id=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("i.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("i.created_at <= $%d", len(args)))
	}

	return clauses, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner, includeRelations bool) (*domain.Incident, error) {
	var incident domain.Incident
	dest := []any{
		&incident.ID,
		&incident.Title,
		&incident.Description,
		&incident.Status,
		&incident.ReporterID,
		&incident.AssigneeID,
		&incident.CategoryID,
		&incident.PriorityID,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	}

	var (
		reporterID, assigneeID, categoryID, priorityID *int64
		reporterName, reporterEmail                    *string
		assigneeName, assigneeEmail                    *string
		categoryName, priorityName                     *string
	)
	if includeRelations {
		dest = append(dest,
			&reporterID, &reporterName, &reporterEmail,
			&assigneeID, &assigneeName, &assigneeEmail,
			&categoryID, &categoryName,
			&priorityID, &priorityName,
		)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if includeRelations {
		if reporterID != nil {
			incident.Reporter = &domain.UserSummary{ID: *reporterID, Name: deref(reporterName), Email: deref(reporterEmail)}
		}
		if assigneeID != nil {
			incident.Assignee = &domain.UserSummary{ID: *assigneeID, Name: deref(assigneeName), Email: deref(assigneeEmail)}
		}
		if categoryID != nil {
			incident.Category = &domain.ClassificationSummary{ID: *categoryID, Name: deref(categoryName)}
		}
		if priorityID != nil {
			incident.Priority = &domain.ClassificationSummary{ID: *priorityID, Name: deref(priorityName)}
		}
	}

	return &incident, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
