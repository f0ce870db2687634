package dto

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/mtlprog/taskboard/internal/domain"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// MapDomainError maps domain errors to HTTP status codes and error codes.
func MapDomainError(err error) (status int, code string, message string) {
	message = err.Error()

	var validationErrs validator.ValidationErrors

	switch {
	// Not found
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND", message
	case errors.Is(err, domain.ErrSubtaskNotFound):
		return http.StatusNotFound, "SUBTASK_NOT_FOUND", message
	case errors.Is(err, domain.ErrCommentNotFound):
		return http.StatusNotFound, "COMMENT_NOT_FOUND", message
	case errors.Is(err, domain.ErrAttachmentNotFound):
		return http.StatusNotFound, "ATTACHMENT_NOT_FOUND", message

	// Comment threading
	case errors.Is(err, domain.ErrParentNotFound):
		return http.StatusUnprocessableEntity, "PARENT_NOT_FOUND", message
	case errors.Is(err, domain.ErrNestedReply):
		return http.StatusUnprocessableEntity, "NESTED_REPLY", message

	// Attachments
	case errors.Is(err, domain.ErrAttachmentTooBig):
		return http.StatusRequestEntityTooLarge, "ATTACHMENT_TOO_LARGE", message
	case errors.Is(err, domain.ErrEmptyAttachment):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message

	// Validation errors
	case errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrEmptyComment),
		errors.Is(err, domain.ErrEmptyUserID),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority),
		errors.Is(err, domain.ErrInvalidDepartment):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", message
	case errors.As(err, &validationErrs):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", ValidationMessage(validationErrs)

	// Default: internal server error
	default:
		slog.Error("unmapped domain error returned to client",
			"error", err,
			"error_type", fmt.Sprintf("%T", err),
		)
		return http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"
	}
}
