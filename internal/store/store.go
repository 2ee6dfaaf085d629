package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"kiroku/internal/clock"
)

const currentVersion = 1

// Store owns the canonical Item, Session and Settings collections.
// Mutations are serialized by mu so no two writes are in flight at once.
type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	clock clock.Clock
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	return NewWithClock(dbPath, clock.System{})
}

// NewWithClock is New with an injected time source, for tests.
func NewWithClock(dbPath string, c clock.Clock) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, clock: c}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

// NewMemoryWithClock creates an in-memory store with an injected clock.
func NewMemoryWithClock(c clock.Clock) (*Store, error) {
	return NewWithClock(":memory:", c)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS items (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		color       TEXT NOT NULL DEFAULT '',
		sort_order  INTEGER NOT NULL DEFAULT 0,
		archived    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		item_id     TEXT NOT NULL,
		start_at    TEXT NOT NULL,
		end_at      TEXT,
		note        TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_item  ON sessions(item_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_start ON sessions(start_at);

	-- At most one open session. The indexed expression is 1 for every
	-- matched row; indexing end_at itself would never conflict because
	-- NULLs are distinct in unique indexes.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_open
		ON sessions(end_at IS NULL) WHERE end_at IS NULL;

	CREATE TABLE IF NOT EXISTS settings (
		id              TEXT PRIMARY KEY CHECK (id = 'default'),
		week_starts_on  INTEGER NOT NULL DEFAULT 1,
		updated_at      TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// DefaultDBPath returns ~/.config/kiroku/kiroku.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "kiroku", "kiroku.db"), nil
}
