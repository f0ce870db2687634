package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/mtlprog/taskboard/internal/domain"
)

// Upload is a file to attach to a task.
type Upload struct {
	FileName    string
	ContentType string
	UploadedBy  string
	Body        io.Reader
}

// RESTTransport talks to the task service API (see internal/handler).
type RESTTransport struct {
	baseURL string
	http    *http.Client
}

// NewRESTTransport creates a transport for the API rooted at baseURL, e.g.
// "http://localhost:8080/api/v1".
func NewRESTTransport(baseURL string, httpClient *http.Client) *RESTTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type userRequest struct {
	UserID string `json:"userId"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type contentRequest struct {
	Content string `json:"content"`
}

// ListTasks fetches the whole collection.
func (t *RESTTransport) ListTasks(ctx context.Context) ([]domain.Task, error) {
	var tasks []domain.Task
	if err := t.do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask posts a draft and returns the created task.
func (t *RESTTransport) CreateTask(ctx context.Context, draft domain.TaskDraft) (domain.Task, error) {
	var task domain.Task
	if err := t.do(ctx, http.MethodPost, "/tasks", draft, &task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func (t *RESTTransport) UpdateTask(ctx context.Context, id string, patch domain.TaskPatch) error {
	return t.do(ctx, http.MethodPut, "/tasks/"+url.PathEscape(id), patch, nil)
}

func (t *RESTTransport) DeleteTask(ctx context.Context, id string) error {
	return t.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, nil)
}

func (t *RESTTransport) AddSubtask(ctx context.Context, taskID, title string) error {
	return t.do(ctx, http.MethodPost, subtasksPath(taskID), titleRequest{Title: title}, nil)
}

func (t *RESTTransport) UpdateSubtask(ctx context.Context, taskID, subtaskID, title string) error {
	return t.do(ctx, http.MethodPut, subtasksPath(taskID)+"/"+url.PathEscape(subtaskID), titleRequest{Title: title}, nil)
}

func (t *RESTTransport) ToggleSubtask(ctx context.Context, taskID, subtaskID string) error {
	return t.do(ctx, http.MethodPost, subtasksPath(taskID)+"/"+url.PathEscape(subtaskID)+"/toggle", nil, nil)
}

func (t *RESTTransport) DeleteSubtask(ctx context.Context, taskID, subtaskID string) error {
	return t.do(ctx, http.MethodDelete, subtasksPath(taskID)+"/"+url.PathEscape(subtaskID), nil, nil)
}

func (t *RESTTransport) AddComment(ctx context.Context, taskID string, draft domain.CommentDraft) error {
	return t.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/comments", draft, nil)
}

func (t *RESTTransport) UpdateComment(ctx context.Context, commentID, content string) error {
	return t.do(ctx, http.MethodPatch, commentPath(commentID), contentRequest{Content: content}, nil)
}

func (t *RESTTransport) DeleteComment(ctx context.Context, commentID string) error {
	return t.do(ctx, http.MethodDelete, commentPath(commentID), nil, nil)
}

func (t *RESTTransport) LikeComment(ctx context.Context, commentID, userID string) error {
	return t.do(ctx, http.MethodPost, commentPath(commentID)+"/like", userRequest{UserID: userID}, nil)
}

func (t *RESTTransport) UnlikeComment(ctx context.Context, commentID, userID string) error {
	return t.do(ctx, http.MethodPost, commentPath(commentID)+"/unlike", userRequest{UserID: userID}, nil)
}

func (t *RESTTransport) LikeTask(ctx context.Context, taskID, userID string) error {
	return t.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/like", userRequest{UserID: userID}, nil)
}

func (t *RESTTransport) UnlikeTask(ctx context.Context, taskID, userID string) error {
	return t.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/unlike", userRequest{UserID: userID}, nil)
}

// UploadAttachment sends the file as multipart form data.
func (t *RESTTransport) UploadAttachment(ctx context.Context, taskID string, upload Upload) (domain.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("uploadedBy", upload.UploadedBy); err != nil {
		return domain.Attachment{}, fmt.Errorf("write uploadedBy field: %w", err)
	}
	part, err := mw.CreateFormFile("file", upload.FileName)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, upload.Body); err != nil {
		return domain.Attachment{}, fmt.Errorf("copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.Attachment{}, fmt.Errorf("close multipart: %w", err)
	}

	path := "/tasks/" + url.PathEscape(taskID) + "/attachments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, &buf)
	if err != nil {
		return domain.Attachment{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var attachment domain.Attachment
	if err := t.send(req, path, &attachment); err != nil {
		return domain.Attachment{}, err
	}
	return attachment, nil
}

func (t *RESTTransport) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	var attachments []domain.Attachment
	if err := t.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/attachments", nil, &attachments); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (t *RESTTransport) DeleteAttachment(ctx context.Context, attachmentID string) error {
	return t.do(ctx, http.MethodDelete, "/attachments/"+url.PathEscape(attachmentID), nil, nil)
}

// do sends a JSON request and decodes a JSON response into out when out is non-nil.
func (t *RESTTransport) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return t.send(req, path, out)
}

func (t *RESTTransport) send(req *http.Request, path string, out any) error {
	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", req.Method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: req.Method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, path, err)
	}
	return nil
}

func subtasksPath(taskID string) string {
	return "/tasks/" + url.PathEscape(taskID) + "/subtasks"
}

func commentPath(commentID string) string {
	return "/comments/" + url.PathEscape(commentID)
}
