package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
	"github.com/mtlprog/taskboard/internal/optimistic"
	"github.com/mtlprog/taskboard/internal/view"
)

func TestChangeFeedURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080/api/v1":      "ws://localhost:8080/ws",
		"https://board.example.com/api/v1/": "wss://board.example.com/ws",
		"http://gateway/board/api/v1?x=1":   "ws://gateway/board/ws",
	}
	for in, want := range cases {
		got, err := changeFeedURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDate("2026-03-10")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 10, d.Day())

	_, err = parseDate("10/03/2026")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", fileName("/tmp/docs/report.pdf"))
	assert.Equal(t, "report.pdf", fileName(`C:\docs\report.pdf`))
	assert.Equal(t, "report.pdf", fileName("report.pdf"))
}

func TestPrintBoard(t *testing.T) {
	now := time.Now()
	tasks := []domain.Task{
		domain.NewTask("t1", domain.TaskDraft{Title: "Chiến dịch", Priority: domain.TaskPriorityHigh, Department: domain.DepartmentMarketing}, now),
		domain.NewTask("t2", domain.TaskDraft{Title: "Lương tháng", Department: domain.DepartmentAccounting}, now),
		domain.NewTask("t3", domain.TaskDraft{Title: "Họp chung"}, now.AddDate(0, 0, -10)),
	}

	v := view.Derive(tasks, domain.OnlyDepartments(domain.DepartmentMarketing), view.Filters{}, now)

	var buf bytes.Buffer
	printBoard(&buf, v, client.SourceRemote)
	out := buf.String()

	assert.Contains(t, out, "2 task(s) from remote")
	assert.Contains(t, out, "Chiến dịch")
	assert.Contains(t, out, "Họp chung")
	assert.NotContains(t, out, "Lương tháng")
	assert.Contains(t, out, "Older")
	assert.Contains(t, out, "Marketing 1")
}

func TestCountsLabel(t *testing.T) {
	counts := map[domain.TaskPriority]int{domain.TaskPriorityLow: 2, domain.TaskPriorityHigh: 1}

	assert.Equal(t, "Cao 1, Thấp 2", countsLabel(counts, domain.TaskPriorities))
	assert.Equal(t, "-", countsLabel(map[domain.TaskPriority]int{}, domain.TaskPriorities))
}

// offlineClient returns a client whose service refuses connections and whose local store
// holds tasks for user u1.
func offlineClient(t *testing.T, tasks ...domain.Task) (*client.Client, *client.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	store := client.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), "u1", tasks))

	c := client.New(client.NewRESTTransport(srv.URL, &http.Client{Timeout: time.Second}), store, client.Options{})
	c.SetUser(domain.User{ID: "u1", Name: "Lan", Role: domain.RoleMember})
	return c, store
}

func TestLoadTasks_WorksOnSavedCopyWhenOffline(t *testing.T) {
	ctx := context.Background()
	c, store := offlineClient(t, domain.NewTask("t1", domain.TaskDraft{Title: "Viết báo cáo"}, time.Now()))

	coord := optimistic.New(c, optimistic.Options{})
	require.NoError(t, loadTasks(ctx, coord))
	require.Len(t, coord.Tasks(), 1)

	_, err := coord.SetStatus(ctx, "t1", domain.TaskStatusInProgress)
	require.NoError(t, err)
	coord.Close()

	saved, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, domain.TaskStatusInProgress, saved[0].Status)
}

func TestLoadTasks_FailsWithoutSavedCopy(t *testing.T) {
	c, _ := offlineClient(t)

	coord := optimistic.New(c, optimistic.Options{})
	assert.Error(t, loadTasks(context.Background(), coord))
}

func TestCheckVisible(t *testing.T) {
	now := time.Now()
	tasks := []domain.Task{
		domain.NewTask("t1", domain.TaskDraft{Title: "Chiến dịch", Department: domain.DepartmentMarketing}, now),
		domain.NewTask("t2", domain.TaskDraft{Title: "Lương tháng", Department: domain.DepartmentAccounting}, now),
		domain.NewTask("t3", domain.TaskDraft{Title: "Họp chung"}, now),
	}
	marketing := domain.OnlyDepartments(domain.DepartmentMarketing)

	assert.NoError(t, checkVisible(tasks, "t1", marketing))
	assert.NoError(t, checkVisible(tasks, "t3", marketing))
	assert.ErrorIs(t, checkVisible(tasks, "t2", marketing), domain.ErrTaskNotFound)
	assert.ErrorIs(t, checkVisible(tasks, "t9", marketing), domain.ErrTaskNotFound)
	assert.NoError(t, checkVisible(tasks, "t2", domain.AllDepartments()))
}
