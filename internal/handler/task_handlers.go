package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/handler/dto"
	"github.com/mtlprog/taskboard/internal/middleware"
	"github.com/mtlprog/taskboard/internal/repository"
)

// handleListTasks lists tasks with their subtasks and comments.
// @Summary List tasks
// @Description Returns every task, optionally filtered by department and status. Department filters keep tasks without a department unless public=false.
// @Tags tasks
// @Produce json
// @Param department query string false "Comma-separated departments"
// @Param status query string false "Comma-separated statuses"
// @Param public query bool false "Include tasks without a department (default true)"
// @Success 200 {array} domain.Task
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks [get]
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filters, err := parseListFilters(r)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	departments := make([]domain.Department, len(filters.Departments))
	for i, d := range filters.Departments {
		departments[i] = domain.Department(d)
	}
	statuses := make([]domain.TaskStatus, len(filters.Statuses))
	for i, s := range filters.Statuses {
		statuses[i] = domain.TaskStatus(s)
	}

	tasks, err := h.taskService.ListTasks(ctx, repository.TaskListFilters{
		Departments:   departments,
		Statuses:      statuses,
		IncludePublic: filters.IncludePublic,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if tasks == nil {
		tasks = []domain.Task{}
	}
	respondJSON(w, http.StatusOK, tasks)
}

func parseListFilters(r *http.Request) (dto.ListTasksFilters, error) {
	query := r.URL.Query()
	filters := dto.ListTasksFilters{IncludePublic: query.Get("public") != "false"}

	if param := query.Get("department"); param != "" {
		filters.Departments = splitAndTrim(param, ",")
		for _, d := range filters.Departments {
			if !domain.Department(d).IsValid() {
				return filters, fmt.Errorf("%w: %s", domain.ErrInvalidDepartment, d)
			}
		}
	}

	if param := query.Get("status"); param != "" {
		filters.Statuses = splitAndTrim(param, ",")
		for _, s := range filters.Statuses {
			if !domain.TaskStatus(s).IsValid() {
				return filters, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, s)
			}
		}
	}

	return filters, nil
}

// handleCreateTask creates a new task.
// @Summary Create a new task
// @Description Creates a task. Status defaults to "Chưa bắt đầu" and priority to "Trung bình".
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body dto.CreateTaskRequest true "Task creation request"
// @Success 201 {object} domain.Task
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks [post]
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req dto.CreateTaskRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.taskService.CreateTask(ctx, req.ToDraft())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// handleGetTask retrieves one task.
// @Summary Get task details
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id} [get]
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// handleUpdateTask applies a partial update.
// @Summary Update a task
// @Description Only fields present in the body change. A null startDate or dueDate clears it; an empty department makes the task public.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body domain.TaskPatch true "Fields to change"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id} [put]
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var patch domain.TaskPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	task, err := h.taskService.UpdateTask(ctx, taskID, patch)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// handleDeleteTask deletes a task with everything attached to it.
// @Summary Delete a task
// @Description Idempotent: deleting a missing task also returns 204.
// @Tags tasks
// @Param id path string true "Task ID"
// @Success 204
// @Router /tasks/{id} [delete]
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	err := h.taskService.DeleteTask(r.Context(), taskID)
	if err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLikeTask records a like.
// @Summary Like a task
// @Description Liking twice is a no-op. userId falls back to the X-User-Id header.
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.LikeRequest true "Liking user"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/like [post]
func (h *Handler) handleLikeTask(w http.ResponseWriter, r *http.Request) {
	h.setTaskLike(w, r, true)
}

// handleUnlikeTask withdraws a like.
// @Summary Unlike a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.LikeRequest true "Liking user"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/unlike [post]
func (h *Handler) handleUnlikeTask(w http.ResponseWriter, r *http.Request) {
	h.setTaskLike(w, r, false)
}

func (h *Handler) setTaskLike(w http.ResponseWriter, r *http.Request, like bool) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	userID, ok := h.likingUser(w, r)
	if !ok {
		return
	}

	task, err := h.taskService.SetTaskLike(r.Context(), taskID, userID, like)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// likingUser reads {userId} from the body, falling back to the X-User-Id header.
func (h *Handler) likingUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req dto.LikeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return "", false
		}
	}
	if req.UserID == "" {
		req.UserID = middleware.GetUserIDFromContext(r.Context())
	}

	if err := h.validate.Struct(req); err != nil {
		respondDomainError(w, err)
		return "", false
	}
	return req.UserID, true
}

// splitAndTrim splits a string by separator and trims whitespace from each part.
func splitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
