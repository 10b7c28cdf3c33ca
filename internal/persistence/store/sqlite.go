// Package store keeps owners, circuit documents and a frame index in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrExists    = errors.New("already exists")
	ErrAuth      = errors.New("invalid credentials")
)

const schemaVersion = "1"

type SQLite struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropFrames    atomic.Uint64
	dropSnapshots atomic.Uint64
}

// Open creates or opens the database at path and starts the background
// frame indexer. An empty path or ":memory:" yields an in-memory store.
func Open(path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	s := &SQLite{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS owners (
			name TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner TEXT NOT NULL REFERENCES owners(name) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			private INTEGER NOT NULL DEFAULT 0,
			revision INTEGER NOT NULL,
			forked_from TEXT NOT NULL DEFAULT '',
			body_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner, updated_at);`,
		`CREATE TABLE IF NOT EXISTS frames (
			circuit_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			mode TEXT NOT NULL,
			digest TEXT NOT NULL,
			advanced INTEGER NOT NULL,
			emitted INTEGER NOT NULL,
			dropped INTEGER NOT NULL,
			pending INTEGER NOT NULL,
			acts INTEGER NOT NULL,
			PRIMARY KEY (circuit_id, frame)
		);`,
		`CREATE TABLE IF NOT EXISTS acts (
			circuit_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			client_id TEXT NOT NULL,
			op TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			code TEXT NOT NULL DEFAULT '',
			act_json TEXT NOT NULL,
			PRIMARY KEY (circuit_id, frame, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_acts_client ON acts(client_id, frame);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			circuit_id TEXT NOT NULL,
			frame INTEGER NOT NULL,
			path TEXT NOT NULL,
			objects INTEGER NOT NULL,
			wires INTEGER NOT NULL,
			PRIMARY KEY (circuit_id, frame)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','` + schemaVersion + `');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the frame indexer and closes the database.
func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Ping reports whether the database answers.
func (s *SQLite) Ping() error { return s.db.Ping() }
