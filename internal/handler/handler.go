package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/mtlprog/taskboard/docs" // Register API docs
	"github.com/mtlprog/taskboard/internal/handler/dto"
	"github.com/mtlprog/taskboard/internal/repository"
	"github.com/mtlprog/taskboard/internal/service"
	httpSwagger "github.com/swaggo/http-swagger"
)

// DefaultMaxUploadBytes bounds a multipart upload request.
const DefaultMaxUploadBytes = service.DefaultMaxAttachmentBytes

// Options tunes the HTTP layer.
type Options struct {
	MaxUploadBytes int64
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	pool           *pgxpool.Pool
	taskService    *service.TaskService
	hub            *Hub
	validate       *validator.Validate
	maxUploadBytes int64
}

// New creates a new Handler instance with all dependencies.
func New(pool *pgxpool.Pool, opts ...Options) *Handler {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = DefaultMaxUploadBytes
	}

	hub := NewHub()

	taskService := service.NewTaskService(
		pool,
		repository.NewTaskRepository(pool),
		repository.NewSubtaskRepository(pool),
		repository.NewCommentRepository(pool),
		repository.NewAttachmentRepository(pool),
		repository.NewTaskEventRepository(pool),
		hub,
	)
	taskService.SetMaxAttachmentBytes(o.MaxUploadBytes)

	return &Handler{
		pool:           pool,
		taskService:    taskService,
		hub:            hub,
		validate:       dto.NewValidator(),
		maxUploadBytes: o.MaxUploadBytes,
	}
}

// RegisterRoutes registers all HTTP routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// Swagger UI
	mux.HandleFunc("GET /swagger/", httpSwagger.Handler())

	// Change feed
	mux.HandleFunc("GET /ws", h.handleWebSocket)

	// Tasks
	mux.HandleFunc("GET /api/v1/tasks", h.handleListTasks)
	mux.HandleFunc("POST /api/v1/tasks", h.handleCreateTask)
	mux.HandleFunc("GET /api/v1/tasks/{id}", h.handleGetTask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}", h.handleUpdateTask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}", h.handleDeleteTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/like", h.handleLikeTask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/unlike", h.handleUnlikeTask)

	// Subtasks
	mux.HandleFunc("POST /api/v1/tasks/{id}/subtasks", h.handleAddSubtask)
	mux.HandleFunc("PUT /api/v1/tasks/{id}/subtasks/{subtaskId}", h.handleUpdateSubtask)
	mux.HandleFunc("DELETE /api/v1/tasks/{id}/subtasks/{subtaskId}", h.handleDeleteSubtask)
	mux.HandleFunc("POST /api/v1/tasks/{id}/subtasks/{subtaskId}/toggle", h.handleToggleSubtask)

	// Comments
	mux.HandleFunc("POST /api/v1/tasks/{id}/comments", h.handleAddComment)
	mux.HandleFunc("PATCH /api/v1/comments/{id}", h.handleUpdateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", h.handleDeleteComment)
	mux.HandleFunc("POST /api/v1/comments/{id}/like", h.handleLikeComment)
	mux.HandleFunc("POST /api/v1/comments/{id}/unlike", h.handleUnlikeComment)

	// Attachments
	mux.HandleFunc("POST /api/v1/tasks/{id}/attachments", h.handleUploadAttachment)
	mux.HandleFunc("GET /api/v1/tasks/{id}/attachments", h.handleListAttachments)
	mux.HandleFunc("GET /api/v1/attachments/{id}", h.handleDownloadAttachment)
	mux.HandleFunc("DELETE /api/v1/attachments/{id}", h.handleDeleteAttachment)

	// Board
	mux.HandleFunc("GET /api/v1/stats", h.handleGetStats)
	mux.HandleFunc("GET /api/v1/events", h.handleListEvents)
}

// Hub returns the change feed so the server can close it on shutdown.
func (h *Handler) Hub() *Hub {
	return h.hub
}

// handleHealthz returns 200 OK if the database is reachable.
func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.pool.Ping(ctx); err != nil {
		slog.Error("database health check failed", "error", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// Ping checks if the database is reachable (used for testing).
func (h *Handler) Ping(ctx context.Context) error {
	return h.pool.Ping(ctx)
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a standard error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, dto.NewErrorResponse(code, message))
}

// respondDomainError maps err through dto.MapDomainError.
func respondDomainError(w http.ResponseWriter, err error) {
	status, code, message := dto.MapDomainError(err)
	respondError(w, status, code, message)
}

// decodeAndValidate reads a JSON body into req and runs its validate tags.
// Returns false if the request was rejected (error already sent to client).
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return false
	}

	if err := h.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", dto.ValidationMessage(validationErrs))
			return false
		}
		respondDomainError(w, err)
		return false
	}
	return true
}

// extractID extracts and validates a UUID path parameter.
// Returns (id, true) if valid, ("", false) if invalid (error already sent to client).
func extractID(w http.ResponseWriter, r *http.Request, param, label string) (string, bool) {
	id := r.PathValue(param)
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", label+" id is required")
		return "", false
	}

	if _, err := uuid.Parse(id); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_REQUEST", label+"_id must be a valid UUID")
		return "", false
	}

	return id, true
}

// extractTaskID extracts and validates task ID from path parameter.
func extractTaskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return extractID(w, r, "id", "task")
}
