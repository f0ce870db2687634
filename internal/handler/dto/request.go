package dto

import (
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
)

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required,max=500"`
	Description string     `json:"description" validate:"max=20000"`
	Status      string     `json:"status,omitempty" validate:"omitempty,task_status"`
	Priority    string     `json:"priority,omitempty" validate:"omitempty,task_priority"`
	Department  string     `json:"department,omitempty" validate:"omitempty,department"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// ToDraft converts the request to a domain draft.
func (r CreateTaskRequest) ToDraft() domain.TaskDraft {
	return domain.TaskDraft{
		Title:       r.Title,
		Description: r.Description,
		Status:      domain.TaskStatus(r.Status),
		Priority:    domain.TaskPriority(r.Priority),
		Department:  domain.Department(r.Department),
		StartDate:   r.StartDate,
		DueDate:     r.DueDate,
	}
}

// TitleRequest represents the request body for creating or renaming a subtask.
type TitleRequest struct {
	Title string `json:"title" validate:"required,max=500"`
}

// AuthorRequest identifies who wrote a comment.
type AuthorRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
	Role string `json:"role" validate:"required"`
}

// CommentRequest represents the request body for POST /tasks/{id}/comments.
type CommentRequest struct {
	Content  string        `json:"content" validate:"required,max=5000"`
	Author   AuthorRequest `json:"author"`
	ParentID *string       `json:"parentId,omitempty" validate:"omitempty,uuid"`
}

// ToDraft converts the request to a domain draft.
func (r CommentRequest) ToDraft() domain.CommentDraft {
	return domain.CommentDraft{
		Content: r.Content,
		Author: domain.Author{
			ID:   r.Author.ID,
			Name: r.Author.Name,
			Role: domain.Role(r.Author.Role),
		},
		ParentID: r.ParentID,
	}
}

// ContentRequest represents the request body for PATCH /comments/{id}.
type ContentRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

// LikeRequest represents the request body for like and unlike endpoints.
type LikeRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// ListTasksFilters represents query parameters for GET /tasks.
type ListTasksFilters struct {
	Departments []string // ?department=Marketing,Kinh Doanh
	Statuses    []string // ?status=Đang làm
	// IncludePublic keeps tasks without a department in a department filter (?public=false drops them).
	IncludePublic bool
}

// EventsFilters represents query parameters for GET /events.
type EventsFilters struct {
	After int64     // ?after=42
	Since time.Time // ?since=2026-03-10T09:00:00Z
	Limit int       // ?limit=100
}
