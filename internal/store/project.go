package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/taskhive/apiserver/types"
)

// ProjectRepository handles persistence for projects.
type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListByUser returns the user's projects with their task counts,
// ordered by creation time.
func (r *ProjectRepository) ListByUser(ctx context.Context, userID int) ([]types.Project, error) {
	const query = `
		SELECT p.id, p.name, p.description, p.user_id, p.created_at, p.updated_at,
			COUNT(t.id)::int
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id
		WHERE p.user_id = $1
		GROUP BY p.id
		ORDER BY p.created_at`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []types.Project
	for rows.Next() {
		var project types.Project
		if err := rows.Scan(
			&project.ID,
			&project.Name,
			&project.Description,
			&project.UserID,
			&project.CreatedAt,
			&project.UpdatedAt,
			&project.TaskCount,
		); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepository) Get(ctx context.Context, id int) (types.Project, error) {
	const query = `
		SELECT p.id, p.name, p.description, p.user_id, p.created_at, p.updated_at,
			COUNT(t.id)::int
		FROM projects p
		LEFT JOIN tasks t ON t.project_id = p.id
		WHERE p.id = $1
		GROUP BY p.id`
	var project types.Project
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&project.UserID,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.TaskCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Project{}, ErrNotFound
		}
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Create(ctx context.Context, project types.Project) (types.Project, error) {
	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	const query = `
		INSERT INTO projects (name, description, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.UserID,
		project.CreatedAt,
		project.UpdatedAt,
	).Scan(&project.ID); err != nil {
		return types.Project{}, err
	}
	return project, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project types.Project) (types.Project, error) {
	project.UpdatedAt = time.Now()

	const query = `
		UPDATE projects
		SET name = $1,
			description = $2,
			updated_at = $3
		WHERE id = $4`
	result, err := r.db.ExecContext(
		ctx,
		query,
		project.Name,
		project.Description,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return types.Project{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Project{}, err
	}
	if affected == 0 {
		return types.Project{}, ErrNotFound
	}
	return project, nil
}

// Delete removes the project. Attached tasks survive with project_id
// cleared by the ON DELETE SET NULL constraint.
func (r *ProjectRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM projects WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
