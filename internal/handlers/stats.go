package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
)

// StatsHandler serves the dashboard aggregates.
type StatsHandler struct {
	taskService *services.TaskService
}

// StatsRouter registers stats routes on the given router.
func StatsRouter(r chi.Router, taskService *services.TaskService, gate *Gatekeeper) {
	handler := &StatsHandler{taskService: taskService}

	r.Use(gate.RequireAPI)
	r.Get("/tasks", handler.TaskStats)
}

func (h *StatsHandler) TaskStats(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.taskService.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, "Stats")
		return
	}

	writeData(w, http.StatusOK, stats, "Stats fetched successfully")
}
