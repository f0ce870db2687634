package domain

import "time"

// ChangeType names what happened to the task collection.
type ChangeType string

const (
	ChangeTaskCreated ChangeType = "task.created"
	ChangeTaskUpdated ChangeType = "task.updated"
	ChangeTaskDeleted ChangeType = "task.deleted"
)

// ChangeEvent tells subscribers that a task changed and their lists are stale.
type ChangeEvent struct {
	// ID is the journal position; zero for events that were never stored.
	ID     int64      `json:"id,omitempty"`
	Type   ChangeType `json:"type"`
	TaskID string     `json:"taskId"`
	At     time.Time  `json:"at"`
}
