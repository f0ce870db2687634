package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mtlprog/taskboard/internal/domain"
)

// Source says where the tasks of a Snapshot came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceLocal  Source = "local"
)

// Snapshot is the result of a list read. Err is set when the remote store could not be
// reached; Tasks then hold the best fallback available.
type Snapshot struct {
	Tasks  []domain.Task
	Source Source
	Err    error
}

// Options tune a Client.
type Options struct {
	CacheTTL time.Duration
	Now      func() time.Time
}

// Client reads and writes the task collection for the current user.
type Client struct {
	transport Transport
	local     LocalStore
	cache     *Cache
	now       func() time.Time
	group     singleflight.Group

	mu   sync.Mutex
	user domain.User

	// gen counts refreshes. A fetch only fills the cache while its generation is current.
	gen uint64
}

// New creates a client. A nil local store keeps snapshots in memory only.
func New(transport Transport, local LocalStore, opts Options) *Client {
	if local == nil {
		local = NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		transport: transport,
		local:     local,
		cache:     NewCache(opts.CacheTTL),
		now:       opts.Now,
	}
}

// SetUser switches the current user. The cache is dropped when the identity changes.
func (c *Client) SetUser(user domain.User) {
	c.mu.Lock()
	changed := c.user.ID != user.ID
	c.user = user
	if changed {
		c.gen++
		c.cache.Invalidate()
	}
	c.mu.Unlock()

	if changed {
		slog.Debug("task cache invalidated", "user_id", user.ID)
	}
}

// User returns the current user.
func (c *Client) User() domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// ListTasks returns the tasks, from the cache while it is fresh.
func (c *Client) ListTasks(ctx context.Context) Snapshot {
	c.mu.Lock()
	userID, gen := c.user.ID, c.gen
	c.mu.Unlock()

	if tasks, ok := c.cache.Get(userID, c.now()); ok {
		return Snapshot{Tasks: tasks, Source: SourceCache}
	}
	return c.fetch(ctx, userID, gen)
}

// Refresh drops the cache and reads the remote store. It never joins a list that was
// already in flight, since that list may predate a write.
func (c *Client) Refresh(ctx context.Context) Snapshot {
	c.mu.Lock()
	c.gen++
	userID, gen := c.user.ID, c.gen
	c.cache.Invalidate()
	c.mu.Unlock()

	return c.fetch(ctx, userID, gen)
}

func (c *Client) fetch(ctx context.Context, userID string, gen uint64) Snapshot {
	key := fmt.Sprintf("%s#%d", userID, gen)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.transport.ListTasks(ctx)
	})
	if err != nil {
		return c.fallback(ctx, userID, fmt.Errorf("list tasks: %w", err))
	}

	tasks := domain.CloneTasks(v.([]domain.Task))
	if tasks == nil {
		tasks = []domain.Task{}
	}
	tasks = c.withPending(ctx, userID, tasks)

	c.mu.Lock()
	current := c.gen == gen
	if current {
		c.cache.Put(userID, tasks, c.now())
	}
	c.mu.Unlock()
	if !current {
		slog.Debug("stale task list not cached", "user_id", userID)
		return Snapshot{Tasks: tasks, Source: SourceRemote}
	}

	if err := c.local.Save(ctx, userID, tasks); err != nil {
		slog.Warn("failed to save local snapshot", "user_id", userID, "error", err)
	}
	return Snapshot{Tasks: tasks, Source: SourceRemote}
}

func (c *Client) fallback(ctx context.Context, userID string, cause error) Snapshot {
	slog.Warn("remote task store unavailable", "user_id", userID, "error", cause)

	if tasks, ok := c.cache.Get(userID, c.now()); ok {
		return Snapshot{Tasks: tasks, Source: SourceCache, Err: cause}
	}
	tasks, err := c.local.Load(ctx, userID)
	if err != nil {
		slog.Warn("failed to load local snapshot", "user_id", userID, "error", err)
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return Snapshot{Tasks: tasks, Source: SourceLocal, Err: cause}
}

// withPending appends the local-only tasks that the remote list does not know about.
func (c *Client) withPending(ctx context.Context, userID string, remote []domain.Task) []domain.Task {
	saved, err := c.local.Load(ctx, userID)
	if err != nil {
		slog.Warn("failed to load local snapshot", "user_id", userID, "error", err)
		return remote
	}
	for _, t := range saved {
		if !t.PendingSync {
			continue
		}
		if slices.ContainsFunc(remote, func(r domain.Task) bool { return r.ID == t.ID }) {
			continue
		}
		remote = append(remote, t)
	}
	return remote
}

// CreateTask creates a task remotely. When the remote store fails the task is kept
// locally with a local id and PendingSync set, and the returned error wraps ErrNotSynced.
func (c *Client) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if err := draft.Validate(); err != nil {
		return domain.Task{}, err
	}
	draft = draft.Normalize()

	task, err := c.transport.CreateTask(ctx, draft)
	if err == nil {
		c.applyLocal(ctx, insertTaskOp(task))
		return task, nil
	}

	task = domain.NewTask(localID(), draft, c.now().UTC())
	task.PendingSync = true
	c.applyLocal(ctx, insertTaskOp(task))

	slog.Warn("task kept locally", "task_id", task.ID, "error", err)
	return task, fmt.Errorf("create task: %w: %w", ErrNotSynced, err)
}

// UpdateTask sends a partial update. On a remote failure the patch is still applied to
// the local copy and the returned error wraps ErrRemote.
func (c *Client) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	if isLocalID(id) {
		_, err := c.applyLocal(ctx, patchTaskOp(id, patch))
		return err
	}

	err := c.transport.UpdateTask(ctx, id, patch)
	switch {
	case err == nil:
		c.applyLocal(ctx, patchTaskOp(id, patch))
		return nil
	case errors.Is(err, ErrNotFound):
		c.applyLocal(ctx, deleteTaskOp(id))
		return fmt.Errorf("update task %s: %w", id, err)
	default:
		c.applyLocal(ctx, patchTaskOp(id, patch))
		return fmt.Errorf("update task %s: %w: %w", id, ErrRemote, err)
	}
}

// DeleteTask removes a task. A task that is already gone counts as deleted.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	if !isLocalID(id) {
		if err := c.transport.DeleteTask(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("delete task %s: %w", id, err)
		}
	}
	c.applyLocal(ctx, deleteTaskOp(id))
	return nil
}

func (c *Client) AddSubtask(ctx context.Context, taskID, title string) ([]domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrEmptyTitle
	}
	return c.mutate(ctx, "add subtask", func(ctx context.Context) error {
		return c.transport.AddSubtask(ctx, taskID, title)
	}, addSubtaskOp(taskID, localID(), title), taskID)
}

func (c *Client) UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) ([]domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, domain.ErrEmptyTitle
	}
	return c.mutate(ctx, "update subtask", func(ctx context.Context) error {
		return c.transport.UpdateSubtask(ctx, taskID, subtaskID, title)
	}, updateSubtaskOp(taskID, subtaskID, title), taskID, subtaskID)
}

func (c *Client) ToggleSubtask(ctx context.Context, taskID, subtaskID string) ([]domain.Task, error) {
	return c.mutate(ctx, "toggle subtask", func(ctx context.Context) error {
		return c.transport.ToggleSubtask(ctx, taskID, subtaskID)
	}, toggleSubtaskOp(taskID, subtaskID), taskID, subtaskID)
}

func (c *Client) DeleteSubtask(ctx context.Context, taskID, subtaskID string) ([]domain.Task, error) {
	return c.mutate(ctx, "delete subtask", func(ctx context.Context) error {
		return c.transport.DeleteSubtask(ctx, taskID, subtaskID)
	}, deleteSubtaskOp(taskID, subtaskID), taskID, subtaskID)
}

// AddComment adds a comment or, with ParentID set, a reply to a top-level comment.
func (c *Client) AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) ([]domain.Task, error) {
	draft.Content = strings.TrimSpace(draft.Content)
	if draft.Content == "" {
		return nil, domain.ErrEmptyComment
	}
	if draft.ParentID != nil && *draft.ParentID == "" {
		draft.ParentID = nil
	}
	var parentID string
	if draft.ParentID != nil {
		parentID = *draft.ParentID
	}
	return c.mutate(ctx, "add comment", func(ctx context.Context) error {
		return c.transport.AddComment(ctx, taskID, draft)
	}, addCommentOp(taskID, localID(), draft), taskID, parentID)
}

func (c *Client) UpdateComment(ctx context.Context, commentID, content string) ([]domain.Task, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyComment
	}
	return c.mutate(ctx, "update comment", func(ctx context.Context) error {
		return c.transport.UpdateComment(ctx, commentID, content)
	}, updateCommentOp(commentID, content), commentID)
}

func (c *Client) DeleteComment(ctx context.Context, commentID string) ([]domain.Task, error) {
	return c.mutate(ctx, "delete comment", func(ctx context.Context) error {
		return c.transport.DeleteComment(ctx, commentID)
	}, deleteCommentOp(commentID), commentID)
}

func (c *Client) LikeComment(ctx context.Context, commentID, userID string) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrEmptyUserID
	}
	return c.mutate(ctx, "like comment", func(ctx context.Context) error {
		return c.transport.LikeComment(ctx, commentID, userID)
	}, likeCommentOp(commentID, userID, true), commentID)
}

func (c *Client) UnlikeComment(ctx context.Context, commentID, userID string) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrEmptyUserID
	}
	return c.mutate(ctx, "unlike comment", func(ctx context.Context) error {
		return c.transport.UnlikeComment(ctx, commentID, userID)
	}, likeCommentOp(commentID, userID, false), commentID)
}

func (c *Client) LikeTask(ctx context.Context, taskID, userID string) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrEmptyUserID
	}
	return c.mutate(ctx, "like task", func(ctx context.Context) error {
		return c.transport.LikeTask(ctx, taskID, userID)
	}, likeTaskOp(taskID, userID, true), taskID)
}

func (c *Client) UnlikeTask(ctx context.Context, taskID, userID string) ([]domain.Task, error) {
	if userID == "" {
		return nil, domain.ErrEmptyUserID
	}
	return c.mutate(ctx, "unlike task", func(ctx context.Context) error {
		return c.transport.UnlikeTask(ctx, taskID, userID)
	}, likeTaskOp(taskID, userID, false), taskID)
}

// mutate runs a sub-resource write. On success the canonical list is refetched. When the
// remote store cannot be reached the write is applied locally and the error wraps ErrRemote;
// a write the store refused is returned as is.
// Writes that touch a local-only entity never reach the remote store.
func (c *Client) mutate(ctx context.Context, op string, remote func(context.Context) error, local localOp, ids ...string) ([]domain.Task, error) {
	if slices.ContainsFunc(ids, isLocalID) {
		return c.applyLocal(ctx, local)
	}

	err := remote(ctx)
	switch {
	case err == nil:
		snap := c.Refresh(ctx)
		if snap.Err != nil {
			// The write landed but the list did not; show it from the local copy.
			return c.applyLocal(ctx, local)
		}
		return snap.Tasks, nil
	case errors.Is(err, ErrNotFound):
		snap := c.Refresh(ctx)
		return snap.Tasks, fmt.Errorf("%s: %w", op, err)
	case rejected(err):
		return nil, fmt.Errorf("%s: %w", op, err)
	default:
		tasks, localErr := c.applyLocal(ctx, local)
		if localErr != nil {
			return tasks, fmt.Errorf("%s: %w: %w", op, ErrRemote, errors.Join(err, localErr))
		}
		slog.Warn("write applied locally only", "op", op, "target_id", ids[0], "error", err)
		return tasks, fmt.Errorf("%s: %w: %w", op, ErrRemote, err)
	}
}

// applyLocal runs op against the saved snapshot and writes the result to the local
// store and the cache.
func (c *Client) applyLocal(ctx context.Context, op localOp) ([]domain.Task, error) {
	userID := c.User().ID

	tasks, err := c.local.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load local snapshot: %w", err)
	}
	tasks, err = op(tasks, c.now().UTC())
	if err != nil {
		return domain.CloneTasks(tasks), err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}

	if err := c.local.Save(ctx, userID, tasks); err != nil {
		slog.Warn("failed to save local snapshot", "user_id", userID, "error", err)
	}
	c.cache.Replace(userID, tasks)
	return domain.CloneTasks(tasks), nil
}

// SyncPending pushes local-only tasks to the remote store. Tasks that are created get
// their remote id; the rest stay pending. It returns how many were synced.
func (c *Client) SyncPending(ctx context.Context) (int, error) {
	userID := c.User().ID
	tasks, err := c.local.Load(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load local snapshot: %w", err)
	}

	synced := 0
	var errs []error
	for i, t := range tasks {
		if !t.PendingSync {
			continue
		}
		created, err := c.transport.CreateTask(ctx, domain.TaskDraft{
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Priority:    t.Priority,
			Department:  t.Department,
			StartDate:   t.StartDate,
			DueDate:     t.DueDate,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("sync task %s: %w", t.ID, err))
			continue
		}
		slog.Info("pending task synced", "local_id", t.ID, "task_id", created.ID)
		tasks[i] = created
		synced++
	}

	if synced > 0 {
		if err := c.local.Save(ctx, userID, tasks); err != nil {
			errs = append(errs, fmt.Errorf("save local snapshot: %w", err))
		}
		c.cache.Invalidate()
	}
	return synced, errors.Join(errs...)
}

func (c *Client) attachments() (AttachmentTransport, error) {
	at, ok := c.transport.(AttachmentTransport)
	if !ok {
		return nil, ErrUnsupported
	}
	return at, nil
}

// UploadAttachment attaches a file to a task.
func (c *Client) UploadAttachment(ctx context.Context, taskID string, upload Upload) (domain.Attachment, error) {
	at, err := c.attachments()
	if err != nil {
		return domain.Attachment{}, err
	}
	if isLocalID(taskID) {
		return domain.Attachment{}, fmt.Errorf("upload attachment: %w", ErrNotSynced)
	}
	return at.UploadAttachment(ctx, taskID, upload)
}

func (c *Client) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	at, err := c.attachments()
	if err != nil {
		return nil, err
	}
	if isLocalID(taskID) {
		return []domain.Attachment{}, nil
	}
	return at.ListAttachments(ctx, taskID)
}

func (c *Client) DeleteAttachment(ctx context.Context, attachmentID string) error {
	at, err := c.attachments()
	if err != nil {
		return err
	}
	if err := at.DeleteAttachment(ctx, attachmentID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// rejected reports whether the remote store answered and refused the write.
func rejected(err error) bool {
	if errors.Is(err, ErrUnsupported) ||
		errors.Is(err, domain.ErrNestedReply) ||
		errors.Is(err, domain.ErrParentNotFound) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500
}

func isLocalID(id string) bool {
	return strings.HasPrefix(id, "local-")
}
