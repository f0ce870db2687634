package client_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/client"
	"github.com/mtlprog/taskboard/internal/domain"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "local.db")

	store, err := client.OpenSQLiteStore(ctx, path)
	require.NoError(t, err)

	tasks, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, tasks)

	saved := []domain.Task{seedTask("t1", "Viết báo cáo"), seedTask("t2", "Gọi khách hàng")}
	require.NoError(t, store.Save(ctx, "u1", saved))
	require.NoError(t, store.Save(ctx, "u2", saved[:1]))
	require.NoError(t, store.Save(ctx, "u1", saved[1:]))
	require.NoError(t, store.Close())

	// Reopening reruns migrations as a no-op and keeps the data.
	store, err = client.OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	tasks, err = store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, saved[1:], tasks)

	tasks, err = store.Load(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, saved[:1], tasks)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := client.NewMemoryStore()

	saved := []domain.Task{seedTask("t1", "Viết báo cáo")}
	require.NoError(t, store.Save(ctx, "u1", saved))
	saved[0].Title = "changed"

	tasks, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Viết báo cáo", tasks[0].Title)
}
