package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultPort is the default HTTP server port.
	DefaultPort = "8080"

	// DefaultDatabaseURL is empty; must be provided via flag or environment.
	DefaultDatabaseURL = ""

	// DefaultEnvFile is read before flags are parsed. A missing file is not an error.
	DefaultEnvFile = ".env"

	// DefaultAPIURL is where the board client finds the task service.
	DefaultAPIURL = "http://localhost:8080/api/v1"

	// DefaultCacheTTL is how long a fetched task list is served without refetching.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultDebounce delays title and description saves while the user is typing.
	DefaultDebounce = 400 * time.Millisecond

	// DefaultHTTPTimeout bounds every client request to the task service.
	DefaultHTTPTimeout = 15 * time.Second

	// DefaultLocalStorePath is the SQLite file holding the client's last known task list.
	DefaultLocalStorePath = "taskboard-local.db"

	// DefaultPermissionFile is empty; the built-in permission table is used.
	DefaultPermissionFile = ""

	// DefaultMaxUploadBytes caps a single attachment.
	DefaultMaxUploadBytes = 10 << 20
)

// LoadEnv loads KEY=VALUE pairs from path into the process environment so that flag EnvVars
// see them. Variables already set win. A missing file is ignored.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no env file found", "path", path)
			return nil
		}
		return err
	}
	slog.Debug("env file loaded", "path", path)
	return nil
}
