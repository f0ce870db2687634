package domain

import (
	"slices"
	"time"
)

// TaskStatus is the board column of a task. Values are the Vietnamese labels shown to users
// and stored as-is.
type TaskStatus string

const (
	TaskStatusNotStarted TaskStatus = "Chưa bắt đầu"
	TaskStatusPlanning   TaskStatus = "Lên kế hoạch"
	TaskStatusToDo       TaskStatus = "Cần làm"
	TaskStatusInProgress TaskStatus = "Đang làm"
	TaskStatusDone       TaskStatus = "Hoàn thành"
	TaskStatusBacklog    TaskStatus = "Tồn đọng"
	TaskStatusStopped    TaskStatus = "Tạm dừng"
)

// TaskStatuses lists every status in board order.
var TaskStatuses = []TaskStatus{
	TaskStatusNotStarted,
	TaskStatusPlanning,
	TaskStatusToDo,
	TaskStatusInProgress,
	TaskStatusDone,
	TaskStatusBacklog,
	TaskStatusStopped,
}

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	return slices.Contains(TaskStatuses, s)
}

// Rank orders statuses for the board: active work first, finished work last.
// Unknown statuses sort after every known one.
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusInProgress:
		return 1
	case TaskStatusPlanning:
		return 2
	case TaskStatusToDo:
		return 3
	case TaskStatusNotStarted:
		return 4
	case TaskStatusBacklog:
		return 5
	case TaskStatusStopped:
		return 6
	case TaskStatusDone:
		return 7
	default:
		return 8
	}
}

// TaskPriority represents the priority level of a task.
type TaskPriority string

const (
	TaskPriorityHigh   TaskPriority = "Cao"
	TaskPriorityMedium TaskPriority = "Trung bình"
	TaskPriorityLow    TaskPriority = "Thấp"
)

// TaskPriorities lists every priority from most to least urgent.
var TaskPriorities = []TaskPriority{TaskPriorityHigh, TaskPriorityMedium, TaskPriorityLow}

// IsValid checks if the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	return slices.Contains(TaskPriorities, p)
}

// Rank returns 1 for High through 3 for Low, 4 for anything else.
func (p TaskPriority) Rank() int {
	switch p {
	case TaskPriorityHigh:
		return 1
	case TaskPriorityMedium:
		return 2
	case TaskPriorityLow:
		return 3
	default:
		return 4
	}
}

// Task is the top-level unit of work on the board.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	// Department is empty when the task is visible to everyone.
	Department  Department `json:"department,omitempty"`
	Subtasks    []Subtask  `json:"subtasks"`
	Comments    []Comment  `json:"comments"`
	Likes       int        `json:"likes"`
	LikedBy     []string   `json:"likedBy"`
	IsRead      bool       `json:"isRead"`
	StartDate   *time.Time `json:"startDate,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PendingSync bool       `json:"pendingSync,omitempty"`
}

// TaskDraft is the input for creating a task. The store assigns id, timestamps and
// empty subtask/comment lists.
type TaskDraft struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	Department  Department   `json:"department,omitempty"`
	StartDate   *time.Time   `json:"startDate,omitempty"`
	DueDate     *time.Time   `json:"dueDate,omitempty"`
}

// Normalize fills the defaults a new task gets.
func (d TaskDraft) Normalize() TaskDraft {
	if d.Status == "" {
		d.Status = TaskStatusNotStarted
	}
	if d.Priority == "" {
		d.Priority = TaskPriorityMedium
	}
	return d
}

// Validate checks the draft fields without touching any store.
func (d TaskDraft) Validate() error {
	if d.Title == "" {
		return ErrEmptyTitle
	}
	if d.Status != "" && !d.Status.IsValid() {
		return ErrInvalidStatus
	}
	if d.Priority != "" && !d.Priority.IsValid() {
		return ErrInvalidPriority
	}
	if d.Department != "" && !d.Department.IsValid() {
		return ErrInvalidDepartment
	}
	return nil
}

// NewTask builds a task from a draft with the given identity and creation time.
func NewTask(id string, draft TaskDraft, now time.Time) Task {
	draft = draft.Normalize()
	return Task{
		ID:          id,
		Title:       draft.Title,
		Description: draft.Description,
		Status:      draft.Status,
		Priority:    draft.Priority,
		Department:  draft.Department,
		Subtasks:    []Subtask{},
		Comments:    []Comment{},
		LikedBy:     []string{},
		StartDate:   draft.StartDate,
		DueDate:     draft.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsVisibleTo reports whether a user with the given access may see the task.
// Tasks without a department are visible to everyone.
func (t *Task) IsVisibleTo(access Access) bool {
	return t.Department == "" || access.Allows(t.Department)
}

// Like adds userID to likedBy once and keeps the like count in step.
func (t *Task) Like(userID string) {
	t.LikedBy = addLike(t.LikedBy, userID)
	t.Likes = len(t.LikedBy)
}

// Unlike removes userID from likedBy.
func (t *Task) Unlike(userID string) {
	t.LikedBy = removeLike(t.LikedBy, userID)
	t.Likes = len(t.LikedBy)
}

// IsLikedBy reports whether userID liked the task.
func (t *Task) IsLikedBy(userID string) bool {
	return slices.Contains(t.LikedBy, userID)
}

// Clone returns a deep copy, so optimistic edits never alias a cached snapshot.
func (t Task) Clone() Task {
	t.Subtasks = slices.Clone(t.Subtasks)
	t.LikedBy = slices.Clone(t.LikedBy)
	if t.Comments != nil {
		comments := make([]Comment, len(t.Comments))
		for i, c := range t.Comments {
			c.LikedBy = slices.Clone(c.LikedBy)
			comments[i] = c
		}
		t.Comments = comments
	}
	if t.StartDate != nil {
		d := *t.StartDate
		t.StartDate = &d
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	return t
}

// CloneTasks deep-copies a task list.
func CloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}

func addLike(likedBy []string, userID string) []string {
	if slices.Contains(likedBy, userID) {
		return likedBy
	}
	return append(likedBy, userID)
}

func removeLike(likedBy []string, userID string) []string {
	out := make([]string, 0, len(likedBy))
	for _, id := range likedBy {
		if id != userID {
			out = append(out, id)
		}
	}
	return out
}
