package dto

import (
	"time"

	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/repository"
)

// Tasks, subtasks, comments and attachments are returned in their domain JSON shape, which
// is what the board clients decode.

// StatsResponse represents board statistics.
type StatsResponse struct {
	TotalTasks        int            `json:"totalTasks"`
	TasksByStatus     map[string]int `json:"tasksByStatus"`
	TasksByPriority   map[string]int `json:"tasksByPriority"`
	TasksByDepartment map[string]int `json:"tasksByDepartment"`
	OverdueCount      int            `json:"overdueCount"`
	Subtasks          SubtaskStats   `json:"subtasks"`
	CommentsTotal     int            `json:"commentsTotal"`
	AttachmentsTotal  int            `json:"attachmentsTotal"`
	// CompletionRatePercent is the share of tasks that are done.
	CompletionRatePercent float64   `json:"completionRatePercent"`
	GeneratedAt           time.Time `json:"generatedAt"`
}

// SubtaskStats counts checklist items across the board.
type SubtaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
}

// EventsResponse represents the response for GET /events.
type EventsResponse struct {
	Events []domain.ChangeEvent `json:"events"`
	// NextAfter is the id to pass as ?after= to continue.
	NextAfter int64 `json:"nextAfter"`
}

// ToStatsResponse converts repository stats to StatsResponse.
func ToStatsResponse(stats *repository.BoardStatsResult, now time.Time) StatsResponse {
	resp := StatsResponse{
		TotalTasks:        stats.TotalTasks,
		TasksByStatus:     stats.TasksByStatus,
		TasksByPriority:   stats.TasksByPriority,
		TasksByDepartment: stats.TasksByDepartment,
		OverdueCount:      stats.OverdueCount,
		Subtasks: SubtaskStats{
			Total:     stats.SubtasksTotal,
			Completed: stats.SubtasksCompleted,
		},
		CommentsTotal:    stats.CommentsTotal,
		AttachmentsTotal: stats.AttachmentsTotal,
		GeneratedAt:      now,
	}
	if stats.TotalTasks > 0 {
		done := stats.TasksByStatus[string(domain.TaskStatusDone)]
		resp.CompletionRatePercent = float64(done) / float64(stats.TotalTasks) * 100
	}
	return resp
}

// ToEventsResponse wraps a page of events with the cursor for the next page.
func ToEventsResponse(events []domain.ChangeEvent, after int64) EventsResponse {
	next := after
	if n := len(events); n > 0 {
		next = events[n-1].ID
	}
	return EventsResponse{Events: events, NextAfter: next}
}
