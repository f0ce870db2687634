package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/middleware"
	"github.com/mtlprog/taskboard/internal/service"
)

// multipartOverhead leaves room for boundaries and the uploadedBy field.
const multipartOverhead = 64 << 10

// handleUploadAttachment stores a file for a task.
// @Summary Upload an attachment
// @Description Multipart form with a "file" part and an "uploadedBy" field (falls back to X-User-Id).
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Task ID"
// @Param file formData file true "File"
// @Param uploadedBy formData string false "Uploader user id"
// @Success 201 {object} domain.Attachment
// @Failure 404 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Router /tasks/{id}/attachments [post]
func (h *Handler) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondDomainError(w, fmt.Errorf("%w: limit %d bytes", domain.ErrAttachmentTooBig, h.maxUploadBytes))
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "multipart form with a file part is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", "could not read file")
		return
	}

	uploadedBy := r.FormValue("uploadedBy")
	if uploadedBy == "" {
		uploadedBy = middleware.GetUserIDFromContext(r.Context())
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	att, err := h.taskService.UploadAttachment(r.Context(), domain.Attachment{
		TaskID:      taskID,
		FileName:    header.Filename,
		ContentType: contentType,
		UploadedBy:  uploadedBy,
	}, data)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, att)
}

// handleListAttachments lists attachment metadata for a task.
// @Summary List attachments
// @Tags attachments
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {array} domain.Attachment
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/attachments [get]
func (h *Handler) handleListAttachments(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	attachments, err := h.taskService.ListAttachments(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, attachments)
}

// handleDownloadAttachment streams the stored file.
// @Summary Download an attachment
// @Tags attachments
// @Produce octet-stream
// @Param id path string true "Attachment ID"
// @Success 200 {file} file
// @Failure 404 {object} dto.ErrorResponse
// @Router /attachments/{id} [get]
func (h *Handler) handleDownloadAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID, ok := extractID(w, r, "id", "attachment")
	if !ok {
		return
	}

	att, data, err := h.taskService.GetAttachment(r.Context(), attachmentID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": att.FileName}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		return
	}
}

// handleDeleteAttachment removes an attachment.
// @Summary Delete an attachment
// @Description Idempotent: deleting a missing attachment also returns 204.
// @Tags attachments
// @Param id path string true "Attachment ID"
// @Success 204
// @Router /attachments/{id} [delete]
func (h *Handler) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	attachmentID, ok := extractID(w, r, "id", "attachment")
	if !ok {
		return
	}

	if err := h.taskService.DeleteAttachment(r.Context(), attachmentID); err != nil && !service.IsNotFound(err) {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
