package handler

import (
	"net/http"

	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/handler/dto"
	"github.com/mtlprog/taskboard/internal/service"
)

// handleAddComment posts a comment or a one-level reply.
// @Summary Comment on a task
// @Description parentId must name a top-level comment of the same task; replies to replies are rejected.
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body dto.CommentRequest true "Comment"
// @Success 201 {object} domain.Comment
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tasks/{id}/comments [post]
func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	taskID, ok := extractTaskID(w, r)
	if !ok {
		return
	}

	var req dto.CommentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.taskService.AddComment(r.Context(), taskID, req.ToDraft())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, comment)
}

// handleUpdateComment edits the comment text.
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body dto.ContentRequest true "New text"
// @Success 200 {object} domain.Comment
// @Failure 404 {object} dto.ErrorResponse
// @Router /comments/{id} [patch]
func (h *Handler) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := extractID(w, r, "id", "comment")
	if !ok {
		return
	}

	var req dto.ContentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	respondComment(w)(h.taskService.UpdateComment(r.Context(), commentID, req.Content))
}

// handleDeleteComment removes a comment and its replies.
// @Summary Delete a comment
// @Description Idempotent: deleting a missing comment also returns 204.
// @Tags comments
// @Param id path string true "Comment ID"
// @Success 204
// @Router /comments/{id} [delete]
func (h *Handler) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := extractID(w, r, "id", "comment")
	if !ok {
		return
	}

	if err := h.taskService.DeleteComment(r.Context(), commentID); err != nil && !service.IsNotFound(err) {
		respondDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLikeComment records a like.
// @Summary Like a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body dto.LikeRequest true "Liking user"
// @Success 200 {object} domain.Comment
// @Failure 404 {object} dto.ErrorResponse
// @Router /comments/{id}/like [post]
func (h *Handler) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	h.setCommentLike(w, r, true)
}

// handleUnlikeComment withdraws a like.
// @Summary Unlike a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Comment ID"
// @Param request body dto.LikeRequest true "Liking user"
// @Success 200 {object} domain.Comment
// @Failure 404 {object} dto.ErrorResponse
// @Router /comments/{id}/unlike [post]
func (h *Handler) handleUnlikeComment(w http.ResponseWriter, r *http.Request) {
	h.setCommentLike(w, r, false)
}

func (h *Handler) setCommentLike(w http.ResponseWriter, r *http.Request, like bool) {
	commentID, ok := extractID(w, r, "id", "comment")
	if !ok {
		return
	}

	userID, ok := h.likingUser(w, r)
	if !ok {
		return
	}

	respondComment(w)(h.taskService.SetCommentLike(r.Context(), commentID, userID, like))
}

func respondComment(w http.ResponseWriter) func(*domain.Comment, error) {
	return func(comment *domain.Comment, err error) {
		if err != nil {
			respondDomainError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, comment)
	}
}
