// Package storage implements the server-wide and session-local persistence
// facades (components F and E): SQLite-backed tables for server runs,
// terminal sessions, LLM providers, and per-session command records.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// openDB opens (creating if needed) a SQLite database at path with a busy
// timeout and WAL journal mode, matching the single-writer, serialized-access
// model the server loop guarantees (component H runs on one goroutine).
func openDB(path string, schema string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create dir for %s: %w", path, err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: init schema for %s: %w", path, err)
	}

	return db, nil
}
