package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/taskboard/internal/config"
)

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TASKBOARD_TEST_API=http://board.local/api/v1\nTASKBOARD_TEST_KEPT=from-file\n"), 0o600))

	t.Setenv("TASKBOARD_TEST_KEPT", "from-env")
	t.Cleanup(func() { os.Unsetenv("TASKBOARD_TEST_API") })

	require.NoError(t, config.LoadEnv(path))

	assert.Equal(t, "http://board.local/api/v1", os.Getenv("TASKBOARD_TEST_API"))
	assert.Equal(t, "from-env", os.Getenv("TASKBOARD_TEST_KEPT"))
}

func TestLoadEnv_MissingFileIgnored(t *testing.T) {
	assert.NoError(t, config.LoadEnv(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, config.LoadEnv(""))
}

func TestLoadEnv_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KEY='unterminated\n"), 0o600))

	assert.Error(t, config.LoadEnv(path))
}
