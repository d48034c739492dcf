package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taskhive/apiserver/types"
)

const taskColumns = `id, title, description, status, priority, completed,
	completed_at, due_date, user_id, project_id, created_at, updated_at`

// TaskRepository handles persistence for tasks.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListByUser returns the user's tasks, narrowed by the optional filter.
// The owner scoping lives in the query itself, so no per-row ownership
// check is needed on the result.
func (r *TaskRepository) ListByUser(ctx context.Context, userID int, filter types.TaskFilter) ([]types.Task, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM tasks WHERE user_id = $1", taskColumns)
	args := []any{userID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	if filter.Priority != 0 {
		args = append(args, filter.Priority)
		fmt.Fprintf(&sb, " AND priority = $%d", len(args))
	}
	if filter.ProjectID != 0 {
		args = append(args, filter.ProjectID)
		fmt.Fprintf(&sb, " AND project_id = $%d", len(args))
	}
	if filter.DueAfter != nil {
		args = append(args, *filter.DueAfter)
		fmt.Fprintf(&sb, " AND due_date >= $%d", len(args))
	}
	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		fmt.Fprintf(&sb, " AND due_date < $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListByProject returns all tasks attached to a project. Callers are
// expected to have checked project ownership already.
func (r *TaskRepository) ListByProject(ctx context.Context, projectID int) ([]types.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE project_id = $1 ORDER BY created_at`, taskColumns)
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (r *TaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE id = $1`, taskColumns)
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	const query = `
		INSERT INTO tasks (title, description, status, priority, completed,
			completed_at, due_date, user_id, project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.Completed,
		task.CompletedAt,
		task.DueDate,
		task.UserID,
		task.ProjectID,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now()

	const query = `
		UPDATE tasks
		SET title = $1,
			description = $2,
			status = $3,
			priority = $4,
			completed = $5,
			completed_at = $6,
			due_date = $7,
			project_id = $8,
			updated_at = $9
		WHERE id = $10`
	result, err := r.db.ExecContext(
		ctx,
		query,
		task.Title,
		task.Description,
		task.Status,
		task.Priority,
		task.Completed,
		task.CompletedAt,
		task.DueDate,
		task.ProjectID,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return types.Task{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Task{}, err
	}
	if affected == 0 {
		return types.Task{}, ErrNotFound
	}
	return task, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM tasks WHERE id = $1`
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

// StatsByUser aggregates the user's tasks in a single pass. Overdue and
// due-soon buckets are computed relative to now; due-soon looks seven
// days ahead.
func (r *TaskRepository) StatsByUser(ctx context.Context, userID int, now time.Time) (types.TaskStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in-progress'),
			COUNT(*) FILTER (WHERE NOT completed AND due_date IS NOT NULL AND due_date < $2),
			COUNT(*) FILTER (WHERE NOT completed AND due_date >= $2 AND due_date < $3)
		FROM tasks
		WHERE user_id = $1`
	var stats types.TaskStats
	err := r.db.QueryRowContext(ctx, query, userID, now, now.Add(7*24*time.Hour)).Scan(
		&stats.Total,
		&stats.Completed,
		&stats.Pending,
		&stats.InProgress,
		&stats.Overdue,
		&stats.DueSoon,
	)
	if err != nil {
		return types.TaskStats{}, err
	}
	return stats, nil
}

// ListDueBetween returns reminder payloads for unfinished tasks whose
// due date falls in [from, to), joined with the owner's email.
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]types.TaskReminder, error) {
	const query = `
		SELECT t.id, t.title, t.due_date, t.user_id, u.email
		FROM tasks t
		JOIN users u ON u.id = t.user_id
		WHERE NOT t.completed AND t.due_date IS NOT NULL
			AND t.due_date >= $1 AND t.due_date < $2
		ORDER BY t.due_date`
	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []types.TaskReminder
	for rows.Next() {
		var rem types.TaskReminder
		if err := rows.Scan(&rem.TaskID, &rem.Title, &rem.DueDate, &rem.UserID, &rem.Email); err != nil {
			return nil, err
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reminders, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (types.Task, error) {
	var task types.Task
	var completedAt, dueDate sql.NullTime
	var projectID sql.NullInt64
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.Completed,
		&completedAt,
		&dueDate,
		&task.UserID,
		&projectID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return types.Task{}, err
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if projectID.Valid {
		id := int(projectID.Int64)
		task.ProjectID = &id
	}
	return task, nil
}

func scanTasks(rows *sql.Rows) ([]types.Task, error) {
	var tasks []types.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}
