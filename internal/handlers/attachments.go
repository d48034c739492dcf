package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/taskhive/apiserver/internal/services"
	"github.com/taskhive/apiserver/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxAttachmentBytes = 32 << 20
	formFieldFile      = "file"
)

// AttachmentHandler provides HTTP handlers for task attachments.
type AttachmentHandler struct {
	attachmentService *services.AttachmentService
}

// AttachmentRouter registers attachment routes under a task route. The
// enclosing router already carries the API guard.
func AttachmentRouter(r chi.Router, attachmentService *services.AttachmentService) {
	handler := &AttachmentHandler{attachmentService: attachmentService}

	r.Route("/attachments", func(r chi.Router) {
		r.Get("/", handler.ListAttachments)
		r.Post("/", handler.UploadAttachment)
		r.Route("/{attachmentID}", func(r chi.Router) {
			r.Get("/", handler.DownloadAttachment)
			r.Delete("/", handler.DeleteAttachment)
		})
	})
}

func (h *AttachmentHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := resolveAttachmentTask(w, r)
	if !ok {
		return
	}

	attachments, err := h.attachmentService.List(r.Context(), userID, taskID)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}
	if attachments == nil {
		attachments = []types.Attachment{}
	}

	writeData(w, http.StatusOK, attachments, "Attachments fetched successfully")
}

func (h *AttachmentHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := resolveAttachmentTask(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File[formFieldFile]) == 0 {
		writeError(w, http.StatusBadRequest, "File is required")
		return
	}
	if len(r.MultipartForm.File[formFieldFile]) > 1 {
		writeError(w, http.StatusBadRequest, "Only one file is allowed")
		return
	}

	fileHeader := r.MultipartForm.File[formFieldFile][0]
	file, err := fileHeader.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}
	data, err := readFileLimited(file, maxAttachmentBytes)
	_ = file.Close()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	att, err := h.attachmentService.Upload(
		r.Context(),
		userID,
		taskID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		data,
	)
	if err != nil {
		writeServiceError(w, err, "Task")
		return
	}

	writeData(w, http.StatusCreated, att, "Attachment uploaded successfully")
}

func (h *AttachmentHandler) DownloadAttachment(w http.ResponseWriter, r *http.Request) {
	userID, taskID, attachmentID, ok := resolveAttachment(w, r)
	if !ok {
		return
	}

	att, reader, err := h.attachmentService.Open(r.Context(), userID, taskID, attachmentID)
	if err != nil {
		writeServiceError(w, err, "Attachment")
		return
	}
	defer reader.Close()

	if att.ContentType != "" {
		w.Header().Set("Content-Type", att.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.FileName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", att.SizeBytes))
	_, _ = io.Copy(w, reader)
}

func (h *AttachmentHandler) DeleteAttachment(w http.ResponseWriter, r *http.Request) {
	userID, taskID, attachmentID, ok := resolveAttachment(w, r)
	if !ok {
		return
	}

	if err := h.attachmentService.Delete(r.Context(), userID, taskID, attachmentID); err != nil {
		writeServiceError(w, err, "Attachment")
		return
	}

	writeData(w, http.StatusOK, nil, "Attachment deleted successfully")
}

func resolveAttachmentTask(w http.ResponseWriter, r *http.Request) (userID, taskID int, ok bool) {
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

func resolveAttachment(w http.ResponseWriter, r *http.Request) (userID, taskID, attachmentID int, ok bool) {
	userID, taskID, ok = resolveAttachmentTask(w, r)
	if !ok {
		return 0, 0, 0, false
	}
	attachmentID, err := parseIDParam(r, "attachmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, 0, false
	}
	return userID, taskID, attachmentID, true
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
