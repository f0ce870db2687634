package client

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/mtlprog/taskboard/internal/domain"
)

// LocalStore persists one task snapshot per user for offline use.
type LocalStore interface {
	// Load returns nil without error when nothing was saved for userID.
	Load(ctx context.Context, userID string) ([]domain.Task, error)
	Save(ctx context.Context, userID string, tasks []domain.Task) error
}

//go:embed migrations/*.sql
var localMigrations embed.FS

// SQLiteStore keeps snapshots as JSON blobs in a SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the snapshot database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping local store: %w", err)
	}

	migrations, err := fs.Sub(localMigrations, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("local store migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create local store migrator: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate local store: %w", err)
	}

	slog.Debug("local store opened", "path", path)

	return &SQLiteStore{db: db}, nil
}

// Load returns the snapshot saved for userID.
func (s *SQLiteStore) Load(ctx context.Context, userID string) ([]domain.Task, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE user_id = ?`, userID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot for %s: %w", userID, err)
	}

	var tasks []domain.Task
	if err := json.Unmarshal([]byte(payload), &tasks); err != nil {
		return nil, fmt.Errorf("parse snapshot for %s: %w", userID, err)
	}
	return tasks, nil
}

// Save replaces the snapshot for userID.
func (s *SQLiteStore) Save(ctx context.Context, userID string, tasks []domain.Task) error {
	if tasks == nil {
		tasks = []domain.Task{}
	}
	payload, err := json.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (user_id, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at
	`, userID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save snapshot for %s: %w", userID, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MemoryStore is a LocalStore that lives only as long as the process.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]domain.Task
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snapshots: make(map[string][]domain.Task)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneTasks(s.snapshots[userID]), nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[userID] = domain.CloneTasks(tasks)
	return nil
}
