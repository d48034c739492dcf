package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/types"
)

// ProjectHandler provides HTTP handlers for projects.
type ProjectHandler struct {
	projectService *services.ProjectService
}

// NewProjectHandler constructs a handler with the provided service.
func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

// ProjectRouter registers project routes on the given router. All
// project routes sit behind the API guard.
func ProjectRouter(r chi.Router, projectService *services.ProjectService, gate *Gatekeeper) {
	handler := NewProjectHandler(projectService)

	r.Use(gate.RequireAPI)
	r.Get("/", handler.ListProjects)
	r.Post("/", handler.CreateProject)
	r.Route("/{projectID}", func(r chi.Router) {
		r.Get("/", handler.GetProject)
		r.Put("/", handler.UpdateProject)
		r.Delete("/", handler.DeleteProject)
		r.Get("/tasks", handler.ProjectTasks)
	})
}

// ProjectUpsertRequest is the create/update payload.
type ProjectUpsertRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	projects, err := h.projectService.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	if projects == nil {
		projects = []types.Project{}
	}

	writeData(w, http.StatusOK, projects, "Projects fetched successfully")
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	req, ok := decodeProjectRequest(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.Create(r.Context(), userID, types.Project{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}

	writeData(w, http.StatusCreated, project, "Project created successfully")
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.resolveProject(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.GetOwned(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}

	writeData(w, http.StatusOK, project, "Project fetched successfully")
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.resolveProject(w, r)
	if !ok {
		return
	}

	req, ok := decodeProjectRequest(w, r)
	if !ok {
		return
	}

	project, err := h.projectService.Update(r.Context(), userID, types.Project{
		ID:          projectID,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}

	writeData(w, http.StatusOK, project, "Project updated successfully")
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.resolveProject(w, r)
	if !ok {
		return
	}

	if err := h.projectService.Delete(r.Context(), userID, projectID); err != nil {
		writeServiceError(w, err, "Project")
		return
	}

	writeData(w, http.StatusOK, nil, "Project deleted successfully")
}

func (h *ProjectHandler) ProjectTasks(w http.ResponseWriter, r *http.Request) {
	userID, projectID, ok := h.resolveProject(w, r)
	if !ok {
		return
	}

	tasks, err := h.projectService.Tasks(r.Context(), userID, projectID)
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}

	writeData(w, http.StatusOK, tasks, "Tasks fetched successfully")
}

func (h *ProjectHandler) resolveProject(w http.ResponseWriter, r *http.Request) (userID, projectID int, ok bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, 0, false
	}
	projectID, err = parseIDParam(r, "projectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, projectID, true
}

func decodeProjectRequest(w http.ResponseWriter, r *http.Request) (ProjectUpsertRequest, bool) {
	var req ProjectUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return ProjectUpsertRequest{}, false
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Project name is required")
		return ProjectUpsertRequest{}, false
	}
	return req, true
}
