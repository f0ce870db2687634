package handler

import (
	"net/http"

	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/handler/dto"
)

// handleAddSubtask appends a checklist item.
// @Summary Add a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.TitleRequest true "Subtask title"
// @Success 201 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id}/subtasks [post]
func (h *Handler) handleAddSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.TitleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	task, err := h.taskService.AddSubtask(r.Context(), taskID, req.Title)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// handleUpdateSubtask renames a checklist item.
// @Summary Rename a subtask
// @Tags subtasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param subtaskId path string true "Subtask ID"
// @Param request body dto.TitleRequest true "Subtask title"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/subtasks/{subtaskId} [put]
func (h *Handler) handleUpdateSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, subtaskID, ok := extractSubtaskIDs(w, r)
	if !ok {
		return
	}

	var req dto.TitleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	respondTask(w, http.StatusOK)(h.taskService.UpdateSubtask(r.Context(), taskID, subtaskID, req.Title))
}

// handleToggleSubtask flips completion.
// @Summary Toggle a subtask
// @Description completedAt is set when the subtask becomes completed and cleared when it is reopened.
// @Tags subtasks
// @Produce json
// @Param id path string true "Task ID"
// @Param subtaskId path string true "Subtask ID"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/subtasks/{subtaskId}/toggle [post]
func (h *Handler) handleToggleSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, subtaskID, ok := extractSubtaskIDs(w, r)
	if !ok {
		return
	}

	respondTask(w, http.StatusOK)(h.taskService.ToggleSubtask(r.Context(), taskID, subtaskID))
}

// handleDeleteSubtask removes a checklist item.
// @Summary Delete a subtask
// @Tags subtasks
// @Produce json
// @Param id path string true "Task ID"
// @Param subtaskId path string true "Subtask ID"
// @Success 200 {object} domain.Task
// @Failure 404 {object} dto.ErrorResponse
// @Router /tasks/{id}/subtasks/{subtaskId} [delete]
func (h *Handler) handleDeleteSubtask(w http.ResponseWriter, r *http.Request) {
	taskID, subtaskID, ok := extractSubtaskIDs(w, r)
	if !ok {
		return
	}

	respondTask(w, http.StatusOK)(h.taskService.DeleteSubtask(r.Context(), taskID, subtaskID))
}

func extractSubtaskIDs(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return "", "", false
	}
	subtaskID, ok := extractID(w, r, "subtaskId", "subtask")
	if !ok {
		return "", "", false
	}
	return taskID, subtaskID, true
}

// respondTask writes the task returned by a service call, or its error.
func respondTask(w http.ResponseWriter, status int) func(*domain.Task, error) {
	return func(task *domain.Task, err error) {
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, status, task)
	}
}
