package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/types"
)

// TaskHandler provides HTTP handlers for tasks.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler constructs a handler with the provided service.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// TaskRouter registers task routes on the given router. All task
// routes sit behind the API guard.
func TaskRouter(
	r chi.Router,
	taskService *services.TaskService,
	attachmentService *services.AttachmentService,
	gate *Gatekeeper,
) {
	handler := NewTaskHandler(taskService)

	r.Use(gate.RequireAPI)
	r.Get("/", handler.ListTasks)
	r.Post("/", handler.CreateTask)
	r.Route("/{taskID}", func(r chi.Router) {
		r.Get("/", handler.GetTask)
		r.Patch("/", handler.PatchTask)
		r.Delete("/", handler.DeleteTask)
		if attachmentService != nil {
			AttachmentRouter(r, attachmentService)
		}
	})
}

// CreateTaskRequest is the task creation payload.
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	DueDate     *time.Time `json:"due_date"`
	ProjectID   *int       `json:"project_id"`
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	filter, err := parseTaskFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.taskService.List(r.Context(), userID, filter)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	if tasks == nil {
		tasks = []types.Task{}
	}

	writeData(w, http.StatusOK, tasks, "Tasks fetched successfully")
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if req.Status != "" && !types.ValidTaskStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	if req.Priority != 0 && !types.ValidTaskPriority(req.Priority) {
		writeError(w, http.StatusBadRequest, "Invalid priority")
		return
	}

	task, err := h.taskService.Create(r.Context(), userID, types.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
		ProjectID:   req.ProjectID,
	})
	if err != nil {
		writeServiceError(w, err, "Project")
		return
	}

	writeData(w, http.StatusCreated, task, "Task created successfully")
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.resolveTask(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetOwned(r.Context(), userID, taskID)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}

	writeData(w, http.StatusOK, task, "Task fetched successfully")
}

func (h *TaskHandler) PatchTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.resolveTask(w, r)
	if !ok {
		return
	}

	var patch types.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, "No valid update fields provided")
		return
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		writeError(w, http.StatusBadRequest, "Title cannot be empty")
		return
	}
	if patch.Status != nil && !types.ValidTaskStatus(*patch.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status")
		return
	}
	if patch.Priority != nil && !types.ValidTaskPriority(*patch.Priority) {
		writeError(w, http.StatusBadRequest, "Invalid priority")
		return
	}

	task, err := h.taskService.Patch(r.Context(), userID, taskID, patch)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}

	writeData(w, http.StatusOK, task, "Task updated successfully")
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := h.resolveTask(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), userID, taskID); err != nil {
		writeServiceError(w, err, "Task")
		return
	}

	writeData(w, http.StatusOK, nil, "Task deleted successfully")
}

func (h *TaskHandler) resolveTask(w http.ResponseWriter, r *http.Request) (userID, taskID int, ok bool) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, 0, false
	}
	taskID, err = parseIDParam(r, "taskID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return userID, taskID, true
}

func parseTaskFilter(r *http.Request) (types.TaskFilter, error) {
	var filter types.TaskFilter
	query := r.URL.Query()

	if status := strings.TrimSpace(query.Get("status")); status != "" {
		if !types.ValidTaskStatus(status) {
			return types.TaskFilter{}, errors.New("invalid status")
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(query.Get("priority")); raw != "" {
		priority, err := strconv.Atoi(raw)
		if err != nil || !types.ValidTaskPriority(priority) {
			return types.TaskFilter{}, errors.New("invalid priority")
		}
		filter.Priority = priority
	}
	if raw := strings.TrimSpace(query.Get("project_id")); raw != "" {
		projectID, err := strconv.Atoi(raw)
		if err != nil || projectID < 1 {
			return types.TaskFilter{}, errors.New("invalid project_id")
		}
		filter.ProjectID = projectID
	}
	if raw := strings.TrimSpace(query.Get("due_after")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return types.TaskFilter{}, errors.New("invalid due_after")
		}
		filter.DueAfter = &t
	}
	if raw := strings.TrimSpace(query.Get("due_before")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return types.TaskFilter{}, errors.New("invalid due_before")
		}
		filter.DueBefore = &t
	}

	return filter, nil
}
