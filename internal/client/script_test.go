package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
)

func TestScriptTransport_ListTasksSkipsBadRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getTasks", r.URL.Query().Get("action"))
		w.Write([]byte(`[
			{"id": "t1", "title": "Viết báo cáo", "createdAt": "2026-03-10T09:00:00Z"},
			{"id": "t2", "createdAt": "2026-03-10T09:00:00Z"},
			{"id": "t3", "title": "Lập kế hoạch", "status": "???", "createdAt": "2026-03-10T09:00:00Z"}
		]`))
	}))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), false)
	tasks, err := tr.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)
}

func TestScriptTransport_ListTasksWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "tasks": [
			{"id": "t1", "title": "Viết báo cáo", "createdAt": "2026-03-10 09:00:00"}
		]}`))
	}))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), false)
	tasks, err := tr.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestScriptTransport_CreateTaskPostsForm(t *testing.T) {
	var sent domain.Task
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "createTask", r.URL.Query().Get("action"))
		require.NoError(t, r.ParseForm())
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("task")), &sent))
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), false)
	task, err := tr.CreateTask(context.Background(), domain.TaskDraft{Title: "Gọi khách hàng"})
	require.NoError(t, err)
	assert.Equal(t, task.ID, sent.ID)
	assert.Equal(t, "Gọi khách hàng", sent.Title)
	assert.Equal(t, domain.TaskPriorityMedium, sent.Priority)
}

func TestScriptTransport_BlindWritesAssumeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html>opaque</html>`))
	}))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), true)
	task, err := tr.CreateTask(context.Background(), domain.TaskDraft{Title: "Gọi khách hàng"})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)

	assert.NoError(t, tr.DeleteTask(context.Background(), task.ID))
}

func TestScriptTransport_NotFoundMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "t9", r.PostForm.Get("id"))
		w.Write([]byte(`{"success": false, "error": "Task not found"}`))
	}))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), false)
	err := tr.DeleteTask(context.Background(), "t9")
	assert.ErrorIs(t, err, client.ErrNotFound)
}

// scriptSheet stands in for the script: one row per task, row updates merged key by key.
type scriptSheet struct {
	mu    sync.Mutex
	rows  map[string]map[string]any
	order []string
}

func newScriptSheet(rows ...map[string]any) *scriptSheet {
	s := &scriptSheet{rows: map[string]map[string]any{}}
	for _, row := range rows {
		id := row["id"].(string)
		s.rows[id] = row
		s.order = append(s.order, id)
	}
	return s
}

func (s *scriptSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.URL.Query().Get("action") {
	case "getTasks":
		rows := make([]map[string]any, 0, len(s.order))
		for _, id := range s.order {
			rows = append(rows, s.rows[id])
		}
		json.NewEncoder(w).Encode(rows)
	case "updateTask":
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		row, ok := s.rows[r.PostForm.Get("id")]
		if !ok {
			w.Write([]byte(`{"success": false, "error": "Task not found"}`))
			return
		}
		var updates map[string]any
		if err := json.Unmarshal([]byte(r.PostForm.Get("updates")), &updates); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for k, v := range updates {
			row[k] = v
		}
		w.Write([]byte(`{"success": true}`))
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

func sheetRow(id, title string) map[string]any {
	return map[string]any{"id": id, "title": title, "createdAt": "2026-03-10T09:00:00Z"}
}

func TestScriptTransport_SubtasksRewriteRow(t *testing.T) {
	srv := httptest.NewServer(newScriptSheet(sheetRow("t1", "Viết báo cáo")))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), false)
	ctx := context.Background()

	require.NoError(t, tr.AddSubtask(ctx, "t1", "Thu thập số liệu"))
	tasks, err := tr.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks[0].Subtasks, 1)
	sub := tasks[0].Subtasks[0]
	assert.Equal(t, "Thu thập số liệu", sub.Title)
	assert.False(t, strings.HasPrefix(sub.ID, "local-"))

	require.NoError(t, tr.ToggleSubtask(ctx, "t1", sub.ID))
	tasks, err = tr.ListTasks(ctx)
	require.NoError(t, err)
	assert.True(t, tasks[0].Subtasks[0].Completed)
	assert.NotNil(t, tasks[0].Subtasks[0].CompletedAt)

	assert.ErrorIs(t, tr.ToggleSubtask(ctx, "t1", "s-missing"), client.ErrNotFound)
	assert.ErrorIs(t, tr.AddSubtask(ctx, "t9", "x"), client.ErrNotFound)
}

func TestScriptTransport_CommentsAndLikesRewriteRow(t *testing.T) {
	srv := httptest.NewServer(newScriptSheet(sheetRow("t1", "Viết báo cáo")))
	defer srv.Close()

	tr := client.NewScriptTransport(srv.URL, srv.Client(), false)
	ctx := context.Background()
	author := domain.Author{ID: "u1", Name: "Lan", Role: domain.RoleMember}

	require.NoError(t, tr.AddComment(ctx, "t1", domain.CommentDraft{Content: "Đã xong phần 1", Author: author}))
	tasks, err := tr.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks[0].Comments, 1)
	parent := tasks[0].Comments[0].ID

	require.NoError(t, tr.AddComment(ctx, "t1", domain.CommentDraft{Content: "Cảm ơn", Author: author, ParentID: &parent}))
	tasks, err = tr.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks[0].Comments, 2)
	reply := tasks[0].Comments[1].ID

	err = tr.AddComment(ctx, "t1", domain.CommentDraft{Content: "Lồng", Author: author, ParentID: &reply})
	assert.ErrorIs(t, err, domain.ErrNestedReply)

	require.NoError(t, tr.LikeComment(ctx, parent, "u2"))
	require.NoError(t, tr.LikeTask(ctx, "t1", "u2"))
	tasks, err = tr.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, tasks[0].LikedBy)
	assert.Equal(t, 1, tasks[0].Likes)
	assert.Equal(t, 1, tasks[0].Comments[0].Likes)

	require.NoError(t, tr.DeleteComment(ctx, parent))
	tasks, err = tr.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks[0].Comments)

	assert.ErrorIs(t, tr.UpdateComment(ctx, "c-missing", "x"), client.ErrNotFound)
}

func TestClient_ScriptSubtaskSurvivesRefresh(t *testing.T) {
	srv := httptest.NewServer(newScriptSheet(sheetRow("t1", "Viết báo cáo")))
	defer srv.Close()

	c := client.New(client.NewScriptTransport(srv.URL, srv.Client(), false), nil, client.Options{})
	c.SetUser(domain.User{ID: "u1", Name: "Lan", Role: domain.RoleMember})
	ctx := context.Background()

	tasks, err := c.AddSubtask(ctx, "t1", "Thu thập số liệu")
	require.NoError(t, err)
	require.Len(t, tasks[0].Subtasks, 1)

	snap := c.Refresh(ctx)
	require.NoError(t, snap.Err)
	assert.Equal(t, client.SourceRemote, snap.Source)
	require.Len(t, snap.Tasks[0].Subtasks, 1)
	assert.Equal(t, "Thu thập số liệu", snap.Tasks[0].Subtasks[0].Title)
}
