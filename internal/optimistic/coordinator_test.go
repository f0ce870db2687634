package optimistic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/optimistic"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

var errDown = errors.New("service unavailable")

type fakeRemote struct {
	mu      sync.Mutex
	tasks   []domain.Task
	fail    bool
	updates []domain.TaskPatch
}

func (f *fakeRemote) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeRemote) sent() []domain.TaskPatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TaskPatch(nil), f.updates...)
}

func (f *fakeRemote) ListTasks(context.Context) client.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return client.Snapshot{Tasks: domain.CloneTasks(f.tasks), Source: client.SourceRemote}
}

func (f *fakeRemote) Refresh(ctx context.Context) client.Snapshot {
	return f.ListTasks(ctx)
}

func (f *fakeRemote) UpdateTask(_ context.Context, id string, patch domain.TaskPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, patch)
	if f.fail {
		return errDown
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			patch.Apply(&f.tasks[i], base)
		}
	}
	return nil
}

func (f *fakeRemote) AddSubtask(_ context.Context, taskID, title string) ([]domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == taskID {
			f.tasks[i].Subtasks = append(f.tasks[i].Subtasks, domain.Subtask{ID: "s1", Title: title, CreatedAt: base})
		}
	}
	return domain.CloneTasks(f.tasks), nil
}

func (f *fakeRemote) UpdateSubtask(context.Context, string, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) ToggleSubtask(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) DeleteSubtask(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) AddComment(context.Context, string, domain.CommentDraft) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) UpdateComment(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) DeleteComment(context.Context, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) LikeComment(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) UnlikeComment(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) LikeTask(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func (f *fakeRemote) UnlikeTask(context.Context, string, string) ([]domain.Task, error) {
	return nil, errDown
}

func setup(t *testing.T, opts optimistic.Options) (*optimistic.Coordinator, *fakeRemote) {
	t.Helper()
	remote := &fakeRemote{tasks: []domain.Task{
		domain.NewTask("t1", domain.TaskDraft{Title: "Viết báo cáo", Priority: domain.TaskPriorityLow}, base),
	}}
	c := optimistic.New(remote, opts)
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(c.Close)
	return c, remote
}

func TestCoordinator_TitleDebounceSendsLastValueOnce(t *testing.T) {
	c, remote := setup(t, optimistic.Options{Debounce: 50 * time.Millisecond})

	titles := []string{"B", "Bá", "Báo", "Báo c", "Báo cáo tuần"}
	for _, title := range titles {
		require.NoError(t, c.SetTitle("t1", title))
		assert.Equal(t, title, c.Tasks()[0].Title)
	}

	time.Sleep(200 * time.Millisecond)
	c.Wait()

	sent := remote.sent()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Title)
	assert.Equal(t, "Báo cáo tuần", *sent[0].Title)
}

func TestCoordinator_ExpiredTimerIgnoredAfterRestart(t *testing.T) {
	c, remote := setup(t, optimistic.Options{Debounce: time.Hour})

	require.NoError(t, c.SetTitle("t1", "Báo"))
	expired := c.ArmedSend("t1", "title")
	require.NoError(t, c.SetTitle("t1", "Báo cáo"))

	expired()
	c.Wait()
	assert.Empty(t, remote.sent())

	c.Flush()
	c.Wait()
	sent := remote.sent()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].Title)
	assert.Equal(t, "Báo cáo", *sent[0].Title)
}

func TestCoordinator_FlushSendsImmediately(t *testing.T) {
	c, remote := setup(t, optimistic.Options{Debounce: time.Hour})

	require.NoError(t, c.SetDescription("t1", "Số liệu quý 1"))
	assert.Empty(t, remote.sent())

	c.Flush()
	c.Wait()
	require.Len(t, remote.sent(), 1)
}

func TestCoordinator_EmptyTitleRejected(t *testing.T) {
	c, remote := setup(t, optimistic.Options{})

	assert.ErrorIs(t, c.SetTitle("t1", "  "), domain.ErrEmptyTitle)
	assert.Equal(t, "Viết báo cáo", c.Tasks()[0].Title)
	c.Flush()
	c.Wait()
	assert.Empty(t, remote.sent())
}

func TestCoordinator_StatusAppliedBeforeRemote(t *testing.T) {
	c, remote := setup(t, optimistic.Options{})

	edit, err := c.SetStatus(context.Background(), "t1", domain.TaskStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, optimistic.Pending, edit.State)
	assert.Equal(t, []string{"status"}, edit.Fields)
	assert.Equal(t, domain.TaskStatusInProgress, c.Tasks()[0].Status)

	c.Wait()
	assert.Len(t, remote.sent(), 1)
	assert.Empty(t, c.Errors())
	assert.Empty(t, c.Edits())
}

func TestCoordinator_UnknownTask(t *testing.T) {
	c, _ := setup(t, optimistic.Options{})

	_, err := c.SetPriority(context.Background(), "nope", domain.TaskPriorityHigh)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	assert.ErrorIs(t, c.SetTitle("nope", "x"), domain.ErrTaskNotFound)
}

func TestCoordinator_FailureRetainsLocalByDefault(t *testing.T) {
	c, remote := setup(t, optimistic.Options{})
	remote.setFail(true)

	_, err := c.SetPriority(context.Background(), "t1", domain.TaskPriorityHigh)
	require.NoError(t, err)
	c.Wait()

	assert.Equal(t, domain.TaskPriorityHigh, c.Tasks()[0].Priority)
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, optimistic.Failed, errs[0].State)
	assert.ErrorIs(t, errs[0].Err, errDown)
}

func TestCoordinator_FailureRevertsWhenConfigured(t *testing.T) {
	c, remote := setup(t, optimistic.Options{Policy: optimistic.Revert})
	remote.setFail(true)

	_, err := c.SetPriority(context.Background(), "t1", domain.TaskPriorityHigh)
	require.NoError(t, err)
	c.Wait()

	assert.Equal(t, domain.TaskPriorityLow, c.Tasks()[0].Priority)
	assert.Len(t, c.Errors(), 1)
}

func TestCoordinator_RevertSkipsFieldsTouchedLater(t *testing.T) {
	c, remote := setup(t, optimistic.Options{Policy: optimistic.Revert})
	remote.setFail(true)
	ctx := context.Background()

	_, err := c.SetPriority(ctx, "t1", domain.TaskPriorityMedium)
	require.NoError(t, err)
	_, err = c.SetPriority(ctx, "t1", domain.TaskPriorityHigh)
	require.NoError(t, err)
	c.Wait()

	// Only the latest edit may revert, and it restores the value it replaced.
	assert.Equal(t, domain.TaskPriorityMedium, c.Tasks()[0].Priority)
	assert.Len(t, c.Errors(), 2)
}

func TestCoordinator_DismissAndRetry(t *testing.T) {
	c, remote := setup(t, optimistic.Options{})
	remote.setFail(true)
	ctx := context.Background()

	first, err := c.SetStatus(ctx, "t1", domain.TaskStatusDone)
	require.NoError(t, err)
	second, err := c.SetPriority(ctx, "t1", domain.TaskPriorityHigh)
	require.NoError(t, err)
	c.Wait()
	require.Len(t, c.Errors(), 2)

	require.NoError(t, c.Dismiss(first.ID))
	assert.ErrorIs(t, c.Dismiss(first.ID), optimistic.ErrEditNotFound)
	require.Len(t, c.Errors(), 1)

	remote.setFail(false)
	require.NoError(t, c.Retry(ctx, second.ID))
	assert.Empty(t, c.Errors())
	assert.ErrorIs(t, c.Retry(ctx, second.ID), optimistic.ErrEditNotFound)
}

func TestCoordinator_OpenMarksReadOnce(t *testing.T) {
	c, remote := setup(t, optimistic.Options{})
	ctx := context.Background()

	task, err := c.Open(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, task.IsRead)

	_, err = c.Open(ctx, "t1")
	require.NoError(t, err)
	c.Wait()

	sent := remote.sent()
	require.Len(t, sent, 1)
	require.NotNil(t, sent[0].IsRead)
	assert.True(t, *sent[0].IsRead)
}

func TestCoordinator_OpenDoesNotRetryAfterFailure(t *testing.T) {
	c, remote := setup(t, optimistic.Options{})
	remote.setFail(true)
	ctx := context.Background()

	_, err := c.Open(ctx, "t1")
	require.NoError(t, err)
	c.Wait()
	_, err = c.Open(ctx, "t1")
	require.NoError(t, err)
	c.Wait()

	assert.Len(t, remote.sent(), 1)
	assert.Empty(t, c.Errors())
}

func TestCoordinator_SubtaskReplacesList(t *testing.T) {
	c, _ := setup(t, optimistic.Options{})

	require.NoError(t, c.AddSubtask(context.Background(), "t1", "Thu thập số liệu"))
	require.Len(t, c.Tasks()[0].Subtasks, 1)

	// A failed pass-through without a list leaves the current one alone.
	assert.ErrorIs(t, c.ToggleSubtask(context.Background(), "t1", "s1"), errDown)
	assert.Len(t, c.Tasks()[0].Subtasks, 1)
}

func TestCoordinator_RefreshKeepsTypedText(t *testing.T) {
	c, _ := setup(t, optimistic.Options{Debounce: time.Hour})

	require.NoError(t, c.SetTitle("t1", "Báo cáo tuần"))
	require.NoError(t, c.Refresh(context.Background()))

	assert.Equal(t, "Báo cáo tuần", c.Tasks()[0].Title)
}

func TestCoordinator_OnChange(t *testing.T) {
	c, _ := setup(t, optimistic.Options{})

	var mu sync.Mutex
	var seen []domain.TaskStatus
	c.OnChange(func(tasks []domain.Task) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tasks[0].Status)
	})

	_, err := c.SetStatus(context.Background(), "t1", domain.TaskStatusPlanning)
	require.NoError(t, err)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, domain.TaskStatusPlanning, seen[0])
}
