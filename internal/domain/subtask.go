package domain

import "time"

// Subtask is a checklist item owned by a single task.
type Subtask struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// SetCompleted moves the subtask to the given state. completedAt is stamped on
// false→true and cleared on true→false.
func (s *Subtask) SetCompleted(completed bool, now time.Time) {
	if completed == s.Completed {
		return
	}
	s.Completed = completed
	if completed {
		s.CompletedAt = &now
	} else {
		s.CompletedAt = nil
	}
}
