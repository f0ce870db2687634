package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtlprog/taskboard/internal/domain"
)

// ScriptTransport talks to the legacy spreadsheet script: one endpoint, the operation in
// the "action" query parameter, task payloads JSON-encoded into form fields.
//
// In blind mode responses to writes are not read at all and every write is assumed to
// have succeeded; the next list fetch reconciles.
type ScriptTransport struct {
	endpoint string
	http     *http.Client
	blind    bool
	now      func() time.Time
}

// NewScriptTransport creates a transport for the script deployed at endpoint.
func NewScriptTransport(endpoint string, httpClient *http.Client, blind bool) *ScriptTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ScriptTransport{
		endpoint: endpoint,
		http:     httpClient,
		blind:    blind,
		now:      time.Now,
	}
}

type scriptResponse struct {
	Success *bool            `json:"success"`
	Error   string           `json:"error"`
	Message string           `json:"message"`
	Tasks   []map[string]any `json:"tasks"`
	Data    []map[string]any `json:"data"`
	Task    map[string]any   `json:"task"`
}

// ListTasks fetches every row and decodes the valid ones.
func (t *ScriptTransport) ListTasks(ctx context.Context) ([]domain.Task, error) {
	body, err := t.call(ctx, http.MethodGet, "getTasks", nil, true)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []map[string]any
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode getTasks rows: %w", err)
		}
		return DecodeRows(rows), nil
	}

	var resp scriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode getTasks response: %w", err)
	}
	if err := resp.err(); err != nil {
		return nil, err
	}
	if resp.Tasks != nil {
		return DecodeRows(resp.Tasks), nil
	}
	return DecodeRows(resp.Data), nil
}

// CreateTask assigns the id locally so the row can be recognized on the next fetch even
// when the response is never read.
func (t *ScriptTransport) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	task := domain.NewTask(uuid.NewString(), draft, t.now().UTC())

	payload, err := json.Marshal(task)
	if err != nil {
		return domain.Task{}, fmt.Errorf("encode task: %w", err)
	}

	body, err := t.call(ctx, http.MethodPost, "createTask", url.Values{"task": {string(payload)}}, false)
	if err != nil {
		return domain.Task{}, err
	}
	if body == nil {
		return task, nil
	}

	var resp scriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.Task{}, fmt.Errorf("decode createTask response: %w", err)
	}
	if err := resp.err(); err != nil {
		return domain.Task{}, err
	}
	if resp.Task != nil {
		if created, err := DecodeRow(0, resp.Task); err == nil {
			return created, nil
		}
	}
	return task, nil
}

func (t *ScriptTransport) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode updates: %w", err)
	}
	return t.write(ctx, "updateTask", url.Values{"id": {id}, "updates": {string(payload)}})
}

func (t *ScriptTransport) DeleteTask(ctx context.Context, id string) error {
	return t.write(ctx, "deleteTask", url.Values{"id": {id}})
}

func (t *ScriptTransport) AddSubtask(ctx context.Context, taskID, title string) error {
	return t.rewrite(ctx, byTask(taskID), addSubtaskOp(taskID, uuid.NewString(), title))
}

func (t *ScriptTransport) UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) error {
	return t.rewrite(ctx, byTask(taskID), updateSubtaskOp(taskID, subtaskID, title))
}

func (t *ScriptTransport) ToggleSubtask(ctx context.Context, taskID, subtaskID string) error {
	return t.rewrite(ctx, byTask(taskID), toggleSubtaskOp(taskID, subtaskID))
}

func (t *ScriptTransport) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	return t.rewrite(ctx, byTask(taskID), deleteSubtaskOp(taskID, subtaskID))
}

func (t *ScriptTransport) AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) error {
	return t.rewrite(ctx, byTask(taskID), addCommentOp(taskID, uuid.NewString(), draft))
}

func (t *ScriptTransport) UpdateComment(ctx context.Context, commentID, content string) error {
	return t.rewrite(ctx, byComment(commentID), updateCommentOp(commentID, content))
}

func (t *ScriptTransport) DeleteComment(ctx context.Context, commentID string) error {
	return t.rewrite(ctx, byComment(commentID), deleteCommentOp(commentID))
}

func (t *ScriptTransport) LikeComment(ctx context.Context, commentID, userID string) error {
	return t.rewrite(ctx, byComment(commentID), likeCommentOp(commentID, userID, true))
}

func (t *ScriptTransport) UnlikeComment(ctx context.Context, commentID, userID string) error {
	return t.rewrite(ctx, byComment(commentID), likeCommentOp(commentID, userID, false))
}

func (t *ScriptTransport) LikeTask(ctx context.Context, taskID, userID string) error {
	return t.rewrite(ctx, byTask(taskID), likeTaskOp(taskID, userID, true))
}

func (t *ScriptTransport) UnlikeTask(ctx context.Context, taskID, userID string) error {
	return t.rewrite(ctx, byTask(taskID), likeTaskOp(taskID, userID, false))
}

func byTask(taskID string) func([]domain.Task) (int, error) {
	return func(tasks []domain.Task) (int, error) { return findTask(tasks, taskID) }
}

func byComment(commentID string) func([]domain.Task) (int, error) {
	return func(tasks []domain.Task) (int, error) {
		ti, _, err := findComment(tasks, commentID)
		return ti, err
	}
}

// rowColumns are the nested columns a rewrite sends back.
type rowColumns struct {
	Subtasks  []domain.Subtask `json:"subtasks"`
	Comments  []domain.Comment `json:"comments"`
	LikedBy   []string         `json:"likedBy"`
	Likes     int              `json:"likes"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// rewrite reads the rows, applies op to the task that locate picks and sends that task's
// subtasks, comments and likes back as a row update. The script keeps them as JSON columns.
func (t *ScriptTransport) rewrite(ctx context.Context, locate func([]domain.Task) (int, error), op localOp) error {
	tasks, err := t.ListTasks(ctx)
	if err != nil {
		return err
	}

	i, err := locate(tasks)
	if err != nil {
		return missing(err)
	}
	id := tasks[i].ID

	tasks, err = op(tasks, t.now().UTC())
	if err != nil {
		return missing(err)
	}
	task := tasks[i]

	payload, err := json.Marshal(rowColumns{
		Subtasks:  task.Subtasks,
		Comments:  task.Comments,
		LikedBy:   task.LikedBy,
		Likes:     len(task.LikedBy),
		UpdatedAt: task.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode task %s columns: %w", id, err)
	}
	return t.write(ctx, "updateTask", url.Values{"id": {id}, "updates": {string(payload)}})
}

// missing marks domain lookups that failed against the fetched rows as ErrNotFound.
func missing(err error) error {
	if errors.Is(err, domain.ErrTaskNotFound) ||
		errors.Is(err, domain.ErrSubtaskNotFound) ||
		errors.Is(err, domain.ErrCommentNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}

func (t *ScriptTransport) write(ctx context.Context, action string, form url.Values) error {
	body, err := t.call(ctx, http.MethodPost, action, form, false)
	if err != nil || body == nil {
		return err
	}

	var resp scriptResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	return resp.err()
}

// call performs the request. It returns a nil body without error for blind writes.
func (t *ScriptTransport) call(ctx context.Context, method, action string, form url.Values, read bool) ([]byte, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse script endpoint: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()

	var reader io.Reader
	if form != nil {
		reader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer resp.Body.Close()

	if t.blind && !read {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Method: method, Path: action, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}
	return body, nil
}

func (r scriptResponse) err() error {
	if r.Success == nil || *r.Success {
		return nil
	}
	msg := r.Error
	if msg == "" {
		msg = r.Message
	}
	if strings.Contains(strings.ToLower(msg), "not found") {
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	}
	return errors.New("script error: " + msg)
}
