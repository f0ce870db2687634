package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
)

func TestRESTTransport_ListTasks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/tasks", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]domain.Task{seedTask("t1", "Viết báo cáo")})
	}))
	defer srv.Close()

	tr := client.NewRESTTransport(srv.URL+"/api/v1/", srv.Client())
	tasks, err := tr.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Viết báo cáo", tasks[0].Title)
}

func TestRESTTransport_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			http.Error(w, `{"error":"TASK_NOT_FOUND"}`, http.StatusNotFound)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := client.NewRESTTransport(srv.URL, srv.Client())

	err := tr.DeleteTask(context.Background(), "missing")
	assert.ErrorIs(t, err, client.ErrNotFound)

	err = tr.DeleteTask(context.Background(), "other")
	var statusErr *client.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestRESTTransport_UpdateTaskSendsOnlySetFields(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/tasks/t1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tr := client.NewRESTTransport(srv.URL, srv.Client())
	title := "Mới"
	err := tr.UpdateTask(context.Background(), "t1", domain.TaskPatch{Title: &title, DueDate: domain.ClearDate()})
	require.NoError(t, err)

	assert.Equal(t, "Mới", body["title"])
	assert.Contains(t, body, "dueDate")
	assert.Nil(t, body["dueDate"])
	assert.NotContains(t, body, "status")
	assert.NotContains(t, body, "startDate")
}

func TestRESTTransport_LikeSendsUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/comments/c1/like", r.URL.Path)
		var req struct {
			UserID string `json:"userId"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "u1", req.UserID)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := client.NewRESTTransport(srv.URL, srv.Client())
	require.NoError(t, tr.LikeComment(context.Background(), "c1", "u1"))
}

func TestRESTTransport_UploadAttachment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/t1/attachments", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "u1", r.FormValue("uploadedBy"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Attachment{
			ID:         "a1",
			TaskID:     "t1",
			FileName:   header.Filename,
			Size:       int64(len(data)),
			UploadedBy: r.FormValue("uploadedBy"),
			CreatedAt:  time.Now().UTC(),
		})
	}))
	defer srv.Close()

	tr := client.NewRESTTransport(srv.URL, srv.Client())
	att, err := tr.UploadAttachment(context.Background(), "t1", client.Upload{
		FileName:   "bao-cao.txt",
		UploadedBy: "u1",
		Body:       strings.NewReader("xin chào"),
	})
	require.NoError(t, err)
	assert.Equal(t, "bao-cao.txt", att.FileName)
	assert.Equal(t, int64(len("xin chào")), att.Size)
}
