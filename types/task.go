package types

import "time"

// Task status values.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in-progress"
	TaskStatusCompleted  = "completed"
)

// Task priority bounds. 1 is lowest, 3 is highest.
const (
	TaskPriorityMin = 1
	TaskPriorityMax = 3
)

// Task represents a single unit of work owned by exactly one user,
// optionally grouped under a project.
type Task struct {
	ID          int        `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Status      string     `json:"status" db:"status"`
	Priority    int        `json:"priority" db:"priority"`
	Completed   bool       `json:"completed" db:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`

	// UserID is the owning user. Every read and mutation of a task is
	// checked against this field.
	UserID int `json:"user_id" db:"user_id"`

	ProjectID *int      `json:"project_id,omitempty" db:"project_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ValidTaskStatus reports whether s is one of the known status values.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is within the allowed range.
func ValidTaskPriority(p int) bool {
	return p >= TaskPriorityMin && p <= TaskPriorityMax
}

// TaskPatch is an explicit optional-field update. A nil field means
// "leave unchanged"; a non-nil field is validated and applied.
type TaskPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Completed   *bool      `json:"completed"`
	Priority    *int       `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ProjectID   *int       `json:"project_id"`
}

// Empty reports whether the patch carries no fields at all.
func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Completed == nil && p.Priority == nil && p.DueDate == nil &&
		p.ProjectID == nil
}

// TaskFilter narrows a task listing. Zero values mean "no filter".
type TaskFilter struct {
	Status    string
	Priority  int
	ProjectID int
	DueAfter  *time.Time
	DueBefore *time.Time
}

// TaskStats aggregates a user's tasks for the dashboard.
type TaskStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Overdue    int `json:"overdue"`
	DueSoon    int `json:"due_soon"`
}

// TaskReminder is the payload published to the reminder channel for an
// unfinished task whose due date falls inside the scan window.
type TaskReminder struct {
	TaskID  int       `json:"task_id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
	UserID  int       `json:"user_id"`
	Email   string    `json:"email"`
}
