// Package optimistic keeps the board's task list responsive: edits are applied to the
// in-memory list immediately and sent to the task store in the background.
package optimistic

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
)

// DefaultDebounce is the quiet window before a text edit is sent.
const DefaultDebounce = 400 * time.Millisecond

// Remote is the task store the coordinator writes through. *client.Client implements it.
type Remote interface {
	ListTasks(ctx context.Context) client.Snapshot
	Refresh(ctx context.Context) client.Snapshot
	UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error

	AddSubtask(ctx context.Context, taskID, title string) ([]domain.Task, error)
	UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) ([]domain.Task, error)
	ToggleSubtask(ctx context.Context, taskID, subtaskID string) ([]domain.Task, error)
	DeleteSubtask(ctx context.Context, taskID, subtaskID string) ([]domain.Task, error)

	AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) ([]domain.Task, error)
	UpdateComment(ctx context.Context, commentID, content string) ([]domain.Task, error)
	DeleteComment(ctx context.Context, commentID string) ([]domain.Task, error)
	LikeComment(ctx context.Context, commentID, userID string) ([]domain.Task, error)
	UnlikeComment(ctx context.Context, commentID, userID string) ([]domain.Task, error)

	LikeTask(ctx context.Context, taskID, userID string) ([]domain.Task, error)
	UnlikeTask(ctx context.Context, taskID, userID string) ([]domain.Task, error)
}

// Policy decides what happens to the local list when a remote write fails.
type Policy int

const (
	// RetainLocal keeps the optimistic value and reports the failure.
	RetainLocal Policy = iota
	// Revert restores the pre-edit value of every field no later edit has touched.
	Revert
)

// Options configure a Coordinator.
type Options struct {
	Policy   Policy
	Debounce time.Duration
	Now      func() time.Time
}

type fieldKey struct {
	taskID string
	field  string
}

// pendingText is a text edit waiting for its quiet window to pass.
type pendingText struct {
	timer *time.Timer
	patch domain.TaskPatch
	prev  domain.TaskPatch
}

// Coordinator owns the board's task list.
type Coordinator struct {
	remote Remote
	opts   Options

	mu       sync.Mutex
	tasks    []domain.Task
	edits    []*Edit
	nextEdit uint64
	latest   map[fieldKey]uint64
	pending  map[fieldKey]*pendingText
	readSent map[string]bool
	onChange []func([]domain.Task)

	inflight sync.WaitGroup
}

// New creates a coordinator with an empty list. Call Load or Refresh to fill it.
func New(remote Remote, opts Options) *Coordinator {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		remote:   remote,
		opts:     opts,
		latest:   make(map[fieldKey]uint64),
		pending:  make(map[fieldKey]*pendingText),
		readSent: make(map[string]bool),
	}
}

// OnChange registers fn to be called with a copy of the list after every change.
func (c *Coordinator) OnChange(fn func([]domain.Task)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Tasks returns a copy of the current list.
func (c *Coordinator) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.CloneTasks(c.tasks)
}

// Load fills the list from the store, using its cache when fresh.
func (c *Coordinator) Load(ctx context.Context) error {
	snap := c.remote.ListTasks(ctx)
	c.replace(snap.Tasks)
	return snap.Err
}

// Refresh replaces the list with a fresh read of the store. Text edits still waiting
// for their debounce window are laid back over the new list.
func (c *Coordinator) Refresh(ctx context.Context) error {
	snap := c.remote.Refresh(ctx)
	c.replace(snap.Tasks)
	return snap.Err
}

func (c *Coordinator) replace(tasks []domain.Task) {
	if tasks == nil {
		return
	}
	c.mu.Lock()
	c.tasks = domain.CloneTasks(tasks)
	now := c.opts.Now()
	for key, p := range c.pending {
		if i := c.indexLocked(key.taskID); i >= 0 {
			p.patch.Apply(&c.tasks[i], now)
		}
	}
	c.mu.Unlock()
	c.notify()
}

// SetStatus changes a task's status.
func (c *Coordinator) SetStatus(ctx context.Context, id string, status domain.TaskStatus) (Edit, error) {
	return c.edit(ctx, id, domain.TaskPatch{Status: &status})
}

// SetPriority changes a task's priority.
func (c *Coordinator) SetPriority(ctx context.Context, id string, priority domain.TaskPriority) (Edit, error) {
	return c.edit(ctx, id, domain.TaskPatch{Priority: &priority})
}

// SetDepartment moves a task to a department; an empty department makes it public.
func (c *Coordinator) SetDepartment(ctx context.Context, id string, department domain.Department) (Edit, error) {
	return c.edit(ctx, id, domain.TaskPatch{Department: &department})
}

// SetDates changes the start and due dates. Absent values are left alone.
func (c *Coordinator) SetDates(ctx context.Context, id string, start, due domain.OptionalDate) (Edit, error) {
	return c.edit(ctx, id, domain.TaskPatch{StartDate: start, DueDate: due})
}

// edit applies patch locally and sends it in the background.
func (c *Coordinator) edit(ctx context.Context, id string, patch domain.TaskPatch) (Edit, error) {
	if err := patch.Validate(); err != nil {
		return Edit{}, err
	}

	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return Edit{}, domain.ErrTaskNotFound
	}
	prev := patch.Snapshot(c.tasks[i])
	patch.Apply(&c.tasks[i], c.opts.Now())
	e := c.recordLocked(id, patch, prev)
	out := *e
	c.inflight.Add(1)
	c.mu.Unlock()

	c.notify()
	go func() {
		defer c.inflight.Done()
		c.send(context.WithoutCancel(ctx), e)
	}()
	return out, nil
}

// SetTitle changes the title locally now and sends it once typing pauses.
func (c *Coordinator) SetTitle(id, title string) error {
	if strings.TrimSpace(title) == "" {
		return domain.ErrEmptyTitle
	}
	return c.text(id, "title", domain.TaskPatch{Title: &title})
}

// SetDescription changes the description locally now and sends it once typing pauses.
func (c *Coordinator) SetDescription(id, description string) error {
	return c.text(id, "description", domain.TaskPatch{Description: &description})
}

func (c *Coordinator) text(id, field string, patch domain.TaskPatch) error {
	key := fieldKey{taskID: id, field: field}

	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.ErrTaskNotFound
	}

	// A timer that fires after a restart finds itself replaced and sends nothing.
	p := &pendingText{patch: patch, prev: patch.Snapshot(c.tasks[i])}
	if old, ok := c.pending[key]; ok {
		old.timer.Stop()
		p.patch = old.patch.Merge(patch)
		p.prev = old.prev
	}
	c.pending[key] = p
	patch.Apply(&c.tasks[i], c.opts.Now())
	p.timer = time.AfterFunc(c.opts.Debounce, func() { c.fire(key, p) })
	c.mu.Unlock()

	c.notify()
	return nil
}

// fire sends a debounced edit unless it was already sent by Flush.
func (c *Coordinator) fire(key fieldKey, p *pendingText) {
	c.mu.Lock()
	if c.pending[key] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	e := c.recordLocked(key.taskID, p.patch, p.prev)
	c.inflight.Add(1)
	c.mu.Unlock()

	c.notify()
	go func() {
		defer c.inflight.Done()
		c.send(context.Background(), e)
	}()
}

// Flush sends every waiting text edit now.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	waiting := make(map[fieldKey]*pendingText, len(c.pending))
	for key, p := range c.pending {
		p.timer.Stop()
		waiting[key] = p
	}
	c.mu.Unlock()

	for key, p := range waiting {
		c.fire(key, p)
	}
}

// Wait blocks until every remote write started so far has finished.
func (c *Coordinator) Wait() {
	c.inflight.Wait()
}

// Close sends waiting text edits and waits for all writes.
func (c *Coordinator) Close() {
	c.Flush()
	c.Wait()
}

// Open returns the task for display. The first time an unread task is opened it is
// marked read, locally at once and remotely in the background.
func (c *Coordinator) Open(ctx context.Context, id string) (domain.Task, error) {
	c.mu.Lock()
	i := c.indexLocked(id)
	if i < 0 {
		c.mu.Unlock()
		return domain.Task{}, domain.ErrTaskNotFound
	}
	if c.tasks[i].IsRead || c.readSent[id] {
		task := c.tasks[i].Clone()
		c.mu.Unlock()
		return task, nil
	}

	c.readSent[id] = true
	c.tasks[i].IsRead = true
	task := c.tasks[i].Clone()
	c.inflight.Add(1)
	c.mu.Unlock()

	c.notify()
	go func() {
		defer c.inflight.Done()
		read := true
		if err := c.remote.UpdateTask(context.WithoutCancel(ctx), id, domain.TaskPatch{IsRead: &read}); err != nil {
			slog.Warn("failed to mark task read", "task_id", id, "error", err)
		}
	}()
	return task, nil
}

func (c *Coordinator) AddSubtask(ctx context.Context, taskID, title string) error {
	return c.passThrough(c.remote.AddSubtask(ctx, taskID, title))
}

func (c *Coordinator) UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) error {
	return c.passThrough(c.remote.UpdateSubtask(ctx, taskID, subtaskID, title))
}

func (c *Coordinator) ToggleSubtask(ctx context.Context, taskID, subtaskID string) error {
	return c.passThrough(c.remote.ToggleSubtask(ctx, taskID, subtaskID))
}

func (c *Coordinator) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	return c.passThrough(c.remote.DeleteSubtask(ctx, taskID, subtaskID))
}

func (c *Coordinator) AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) error {
	return c.passThrough(c.remote.AddComment(ctx, taskID, draft))
}

func (c *Coordinator) UpdateComment(ctx context.Context, commentID, content string) error {
	return c.passThrough(c.remote.UpdateComment(ctx, commentID, content))
}

func (c *Coordinator) DeleteComment(ctx context.Context, commentID string) error {
	return c.passThrough(c.remote.DeleteComment(ctx, commentID))
}

func (c *Coordinator) LikeComment(ctx context.Context, commentID, userID string) error {
	return c.passThrough(c.remote.LikeComment(ctx, commentID, userID))
}

func (c *Coordinator) UnlikeComment(ctx context.Context, commentID, userID string) error {
	return c.passThrough(c.remote.UnlikeComment(ctx, commentID, userID))
}

func (c *Coordinator) LikeTask(ctx context.Context, taskID, userID string) error {
	return c.passThrough(c.remote.LikeTask(ctx, taskID, userID))
}

func (c *Coordinator) UnlikeTask(ctx context.Context, taskID, userID string) error {
	return c.passThrough(c.remote.UnlikeTask(ctx, taskID, userID))
}

// passThrough adopts the list a sub-resource write returned, if any.
func (c *Coordinator) passThrough(tasks []domain.Task, err error) error {
	c.replace(tasks)
	return err
}

// send performs the remote write for e and settles its state.
func (c *Coordinator) send(ctx context.Context, e *Edit) {
	err := c.remote.UpdateTask(ctx, e.TaskID, e.Patch)

	c.mu.Lock()
	if err == nil {
		e.State = Confirmed
		e.Err = nil
		c.mu.Unlock()
		c.notify()
		return
	}

	e.State = Failed
	e.Err = err
	slog.Warn("task edit failed", "task_id", e.TaskID, "edit_id", e.ID, "fields", e.Fields, "error", err)

	if errors.Is(err, client.ErrNotFound) {
		c.tasks = slices.DeleteFunc(c.tasks, func(t domain.Task) bool { return t.ID == e.TaskID })
	} else if c.opts.Policy == Revert {
		c.revertLocked(e)
	}
	c.mu.Unlock()
	c.notify()
}

// revertLocked restores the fields of e that no later edit has touched.
func (c *Coordinator) revertLocked(e *Edit) {
	i := c.indexLocked(e.TaskID)
	if i < 0 {
		return
	}
	var restore domain.TaskPatch
	for _, field := range e.Fields {
		key := fieldKey{taskID: e.TaskID, field: field}
		if c.latest[key] != e.ID {
			continue
		}
		if _, typing := c.pending[key]; typing {
			continue
		}
		restore = restore.Merge(pick(e.Prev, field))
	}
	if !restore.IsEmpty() {
		restore.Apply(&c.tasks[i], c.opts.Now())
	}
}

func (c *Coordinator) indexLocked(id string) int {
	return slices.IndexFunc(c.tasks, func(t domain.Task) bool { return t.ID == id })
}

func (c *Coordinator) notify() {
	c.mu.Lock()
	fns := slices.Clone(c.onChange)
	var tasks []domain.Task
	if len(fns) > 0 {
		tasks = domain.CloneTasks(c.tasks)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(tasks)
	}
}

// pick returns the part of p that sets field.
func pick(p domain.TaskPatch, field string) domain.TaskPatch {
	var out domain.TaskPatch
	switch field {
	case "title":
		out.Title = p.Title
	case "description":
		out.Description = p.Description
	case "status":
		out.Status = p.Status
	case "priority":
		out.Priority = p.Priority
	case "department":
		out.Department = p.Department
	case "startDate":
		out.StartDate = p.StartDate
	case "dueDate":
		out.DueDate = p.DueDate
	case "isRead":
		out.IsRead = p.IsRead
	}
	return out
}
