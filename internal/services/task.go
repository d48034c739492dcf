package services

import (
	"context"
	"time"

	"github.com/taskhive/apiserver/types"
)

// TaskRepository defines persistence operations for tasks.
type TaskRepository interface {
	ListByUser(ctx context.Context, userID int, filter types.TaskFilter) ([]types.Task, error)
	ListByProject(ctx context.Context, projectID int) ([]types.Task, error)
	Get(ctx context.Context, id int) (types.Task, error)
	Create(ctx context.Context, task types.Task) (types.Task, error)
	Update(ctx context.Context, task types.Task) (types.Task, error)
	Delete(ctx context.Context, id int) error
	StatsByUser(ctx context.Context, userID int, now time.Time) (types.TaskStats, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]types.TaskReminder, error)
}

// TaskService encapsulates task use-cases. Every single-resource
// operation resolves the task by primary key first and then compares
// its owner against the requesting user, so "absent" and "not yours"
// stay distinguishable.
type TaskService struct {
	repo     TaskRepository
	projects ProjectRepository
	now      func() time.Time
}

func NewTaskService(repo TaskRepository, projects ProjectRepository) *TaskService {
	return &TaskService{repo: repo, projects: projects, now: time.Now}
}

// List returns the user's own tasks. The query is scoped by owner, so
// no per-row check applies.
func (s *TaskService) List(ctx context.Context, userID int, filter types.TaskFilter) ([]types.Task, error) {
	return s.repo.ListByUser(ctx, userID, filter)
}

// GetOwned loads a task and enforces ownership: store.ErrNotFound when
// the id does not exist, ErrForbidden when it belongs to someone else.
func (s *TaskService) GetOwned(ctx context.Context, userID, taskID int) (types.Task, error) {
	task, err := s.repo.Get(ctx, taskID)
	if err != nil {
		return types.Task{}, err
	}
	if task.UserID != userID {
		return types.Task{}, ErrForbidden
	}
	return task, nil
}

// Create inserts a task for the user. A requested project must belong
// to the same user.
func (s *TaskService) Create(ctx context.Context, userID int, task types.Task) (types.Task, error) {
	task.UserID = userID
	if task.Status == "" {
		task.Status = types.TaskStatusPending
	}
	if task.Priority == 0 {
		task.Priority = types.TaskPriorityMin
	}
	if task.ProjectID != nil {
		if err := s.checkProjectOwner(ctx, userID, *task.ProjectID); err != nil {
			return types.Task{}, err
		}
	}
	return s.repo.Create(ctx, task)
}

// Patch applies an optional-field update to an owned task. Completion
// transitions stamp or clear completed_at.
func (s *TaskService) Patch(ctx context.Context, userID, taskID int, patch types.TaskPatch) (types.Task, error) {
	task, err := s.GetOwned(ctx, userID, taskID)
	if err != nil {
		return types.Task{}, err
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.DueDate != nil {
		due := *patch.DueDate
		task.DueDate = &due
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
		if task.Completed {
			completedAt := s.now()
			task.CompletedAt = &completedAt
			task.Status = types.TaskStatusCompleted
		} else {
			task.CompletedAt = nil
		}
	}
	if patch.ProjectID != nil {
		if err := s.checkProjectOwner(ctx, userID, *patch.ProjectID); err != nil {
			return types.Task{}, err
		}
		projectID := *patch.ProjectID
		task.ProjectID = &projectID
	}

	return s.repo.Update(ctx, task)
}

// Delete removes an owned task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID int) error {
	if _, err := s.GetOwned(ctx, userID, taskID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, taskID)
}

// Stats aggregates the user's tasks for the dashboard.
func (s *TaskService) Stats(ctx context.Context, userID int) (types.TaskStats, error) {
	return s.repo.StatsByUser(ctx, userID, s.now())
}

func (s *TaskService) checkProjectOwner(ctx context.Context, userID, projectID int) error {
	project, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if project.UserID != userID {
		return ErrForbidden
	}
	return nil
}
