package types

import "time"

// Project groups a user's tasks. Deleting a project detaches its tasks
// rather than deleting them.
type Project struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	// UserID is the owning user.
	UserID int `json:"user_id" db:"user_id"`

	// TaskCount is the number of tasks currently attached to the
	// project. Populated on reads, never written.
	TaskCount int `json:"task_count" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
