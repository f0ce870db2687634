package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/domain"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func TestTask_LikesTrackLikedBy(t *testing.T) {
	task := domain.NewTask("t1", domain.TaskDraft{Title: "Viết báo cáo"}, now)

	task.Like("u1")
	task.Like("u1")
	task.Like("u2")
	assert.Equal(t, 2, task.Likes)
	assert.True(t, task.IsLikedBy("u1"))

	task.Unlike("u1")
	task.Unlike("u3")
	assert.Equal(t, 1, task.Likes)
	assert.Equal(t, []string{"u2"}, task.LikedBy)
}

func TestTask_Visibility(t *testing.T) {
	public := domain.Task{ID: "t1"}
	marketing := domain.Task{ID: "t2", Department: domain.DepartmentMarketing}

	none := domain.OnlyDepartments()
	assert.True(t, public.IsVisibleTo(none))
	assert.False(t, marketing.IsVisibleTo(none))
	assert.True(t, marketing.IsVisibleTo(domain.OnlyDepartments(domain.DepartmentMarketing)))
	assert.True(t, marketing.IsVisibleTo(domain.AllDepartments()))
}

func TestTask_CloneIsDeep(t *testing.T) {
	task := domain.NewTask("t1", domain.TaskDraft{Title: "Viết báo cáo"}, now)
	task.Like("u1")
	task.Comments = append(task.Comments, domain.Comment{ID: "c1", LikedBy: []string{"u1"}})

	clone := task.Clone()
	clone.Like("u2")
	clone.Comments[0].Like("u2")

	assert.Equal(t, 1, task.Likes)
	assert.Equal(t, []string{"u1"}, task.Comments[0].LikedBy)
}

func TestTaskDraft_Validate(t *testing.T) {
	assert.ErrorIs(t, domain.TaskDraft{}.Validate(), domain.ErrEmptyTitle)
	assert.ErrorIs(t, domain.TaskDraft{Title: "x", Status: "Xong"}.Validate(), domain.ErrInvalidStatus)
	assert.ErrorIs(t, domain.TaskDraft{Title: "x", Priority: "Gấp"}.Validate(), domain.ErrInvalidPriority)
	assert.ErrorIs(t, domain.TaskDraft{Title: "x", Department: "Pháp Chế"}.Validate(), domain.ErrInvalidDepartment)
	assert.NoError(t, domain.TaskDraft{Title: "x"}.Validate())

	task := domain.NewTask("t1", domain.TaskDraft{Title: "x"}, now)
	assert.Equal(t, domain.TaskStatusNotStarted, task.Status)
	assert.Equal(t, domain.TaskPriorityMedium, task.Priority)
	assert.NotNil(t, task.Subtasks)
	assert.NotNil(t, task.Comments)
	assert.Equal(t, now, task.UpdatedAt)
}

func TestSubtask_SetCompleted(t *testing.T) {
	var s domain.Subtask

	s.SetCompleted(true, now)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, now, *s.CompletedAt)

	s.SetCompleted(true, now.Add(time.Hour))
	assert.Equal(t, now, *s.CompletedAt, "already completed")

	s.SetCompleted(false, now.Add(time.Hour))
	assert.False(t, s.Completed)
	assert.Nil(t, s.CompletedAt)
}

func TestValidateReply(t *testing.T) {
	parent := "c1"
	comments := []domain.Comment{
		{ID: "c1"},
		{ID: "c2", ParentID: &parent},
	}

	assert.NoError(t, domain.ValidateReply(comments, "c1"))
	assert.ErrorIs(t, domain.ValidateReply(comments, "c2"), domain.ErrNestedReply)
	assert.ErrorIs(t, domain.ValidateReply(comments, "c9"), domain.ErrParentNotFound)
}

func TestTaskPatch_JSON(t *testing.T) {
	var patch domain.TaskPatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Mới","dueDate":null,"department":"","unknown":1}`), &patch))

	require.NotNil(t, patch.Title)
	assert.True(t, patch.DueDate.Set)
	assert.Nil(t, patch.DueDate.Time)
	assert.False(t, patch.StartDate.Set)
	require.NotNil(t, patch.Department)
	assert.NoError(t, patch.Validate())
	assert.Equal(t, []string{"title", "department", "dueDate"}, patch.Fields())

	task := domain.Task{Title: "Cũ", Department: domain.DepartmentMarketing, DueDate: &now}
	prev := patch.Snapshot(task)
	patch.Apply(&task, now.Add(time.Hour))
	assert.Equal(t, "Mới", task.Title)
	assert.Empty(t, task.Department)
	assert.Nil(t, task.DueDate)
	assert.Equal(t, now.Add(time.Hour), task.UpdatedAt)

	prev.Apply(&task, now)
	assert.Equal(t, "Cũ", task.Title)
	assert.Equal(t, domain.DepartmentMarketing, task.Department)
	require.NotNil(t, task.DueDate)

	out, err := json.Marshal(domain.TaskPatch{StartDate: domain.SetDate(now)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"startDate":"2026-03-10T09:00:00Z"}`, string(out))
}

func TestTaskPatch_Merge(t *testing.T) {
	a, b := "a", "b"
	status := domain.TaskStatusDone
	merged := domain.TaskPatch{Title: &a, Status: &status}.Merge(domain.TaskPatch{Title: &b})

	assert.Equal(t, "b", *merged.Title)
	assert.Equal(t, domain.TaskStatusDone, *merged.Status)
	assert.True(t, domain.TaskPatch{}.IsEmpty())
	assert.False(t, merged.IsEmpty())
}
