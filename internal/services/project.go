package services

import (
	"context"

	"github.com/taskhive/apiserver/types"
)

// ProjectRepository defines persistence operations for projects.
type ProjectRepository interface {
	ListByUser(ctx context.Context, userID int) ([]types.Project, error)
	Get(ctx context.Context, id int) (types.Project, error)
	Create(ctx context.Context, project types.Project) (types.Project, error)
	Update(ctx context.Context, project types.Project) (types.Project, error)
	Delete(ctx context.Context, id int) error
}

// ProjectService encapsulates project use-cases with the same
// fetch-then-check ownership policy as tasks.
type ProjectService struct {
	repo  ProjectRepository
	tasks TaskRepository
}

func NewProjectService(repo ProjectRepository, tasks TaskRepository) *ProjectService {
	return &ProjectService{repo: repo, tasks: tasks}
}

func (s *ProjectService) List(ctx context.Context, userID int) ([]types.Project, error) {
	return s.repo.ListByUser(ctx, userID)
}

// GetOwned loads a project and enforces ownership.
func (s *ProjectService) GetOwned(ctx context.Context, userID, projectID int) (types.Project, error) {
	project, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return types.Project{}, err
	}
	if project.UserID != userID {
		return types.Project{}, ErrForbidden
	}
	return project, nil
}

func (s *ProjectService) Create(ctx context.Context, userID int, project types.Project) (types.Project, error) {
	project.UserID = userID
	return s.repo.Create(ctx, project)
}

func (s *ProjectService) Update(ctx context.Context, userID int, project types.Project) (types.Project, error) {
	current, err := s.GetOwned(ctx, userID, project.ID)
	if err != nil {
		return types.Project{}, err
	}
	current.Name = project.Name
	current.Description = project.Description
	return s.repo.Update(ctx, current)
}

func (s *ProjectService) Delete(ctx context.Context, userID, projectID int) error {
	if _, err := s.GetOwned(ctx, userID, projectID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, projectID)
}

// Tasks lists the tasks of an owned project.
func (s *ProjectService) Tasks(ctx context.Context, userID, projectID int) ([]types.Task, error) {
	if _, err := s.GetOwned(ctx, userID, projectID); err != nil {
		return nil, err
	}
	return s.tasks.ListByProject(ctx, projectID)
}
