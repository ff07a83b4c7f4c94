package storage

import (
	"database/sql"
	"errors"
	"time"
)

const serverSchema = `
CREATE TABLE IF NOT EXISTS server_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    start_timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS server_stops (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id INTEGER NOT NULL REFERENCES server_runs(id),
    stop_timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS terminal_sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_run_id INTEGER NOT NULL REFERENCES server_runs(id),
    created_at INTEGER NOT NULL,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    deleted_at INTEGER
);

CREATE TABLE IF NOT EXISTS llm_providers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    url TEXT NOT NULL,
    model TEXT NOT NULL,
    api_key TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chat_messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`

// TerminalSession is a row of the server-wide terminal_sessions table.
type TerminalSession struct {
	ID          uint64
	ServerRunID int64
	CreatedAt   time.Time
	IsDeleted   bool
	DeletedAt   *time.Time
}

// ChatMessage is one turn of a session's AI chat transcript.
type ChatMessage struct {
	ID        int64
	SessionID uint64
	Role      string
	Content   string
	CreatedAt time.Time
}

// LLMProvider is a configured chat backend (component F's llm_providers table).
type LLMProvider struct {
	ID        int64
	Name      string
	Type      string
	URL       string
	Model     string
	APIKey    string
	CreatedAt time.Time
}

// ServerStore is the server-wide storage facade (component F): server-run
// records for crash detection, the active-session table, and the
// LLM-provider table.
type ServerStore struct {
	db *sql.DB
}

// OpenServerStore opens (or creates) the global database at path.
func OpenServerStore(path string) (*ServerStore, error) {
	db, err := openDB(path, serverSchema)
	if err != nil {
		return nil, err
	}
	return &ServerStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *ServerStore) Close() error { return s.db.Close() }

// RecordStart inserts a new server_runs row and returns its id.
func (s *ServerStore) RecordStart() (int64, error) {
	res, err := s.db.Exec(`INSERT INTO server_runs (start_timestamp) VALUES (?)`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecordStop inserts the stop record for a run.
func (s *ServerStore) RecordStop(runID int64) error {
	_, err := s.db.Exec(`INSERT INTO server_stops (run_id, stop_timestamp) VALUES (?, ?)`, runID, time.Now().Unix())
	return err
}

// WasLastRunCrashed reports whether the most recent run has no stop record.
// On the very first run ever (no rows at all) it returns false.
func (s *ServerStore) WasLastRunCrashed() (bool, error) {
	var lastRunID int64
	err := s.db.QueryRow(`SELECT id FROM server_runs ORDER BY id DESC LIMIT 1`).Scan(&lastRunID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var stopCount int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM server_stops WHERE run_id = ?`, lastRunID).Scan(&stopCount); err != nil {
		return false, err
	}
	return stopCount == 0, nil
}

// CreateTerminalSession inserts a new active session row for serverRunID.
func (s *ServerStore) CreateTerminalSession(serverRunID int64) (uint64, error) {
	res, err := s.db.Exec(`INSERT INTO terminal_sessions (server_run_id, created_at, is_deleted) VALUES (?, ?, 0)`,
		serverRunID, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

// MarkTerminalSessionAsDeleted soft-deletes a session row.
func (s *ServerStore) MarkTerminalSessionAsDeleted(id uint64) error {
	_, err := s.db.Exec(`UPDATE terminal_sessions SET is_deleted = 1, deleted_at = ? WHERE id = ?`,
		time.Now().Unix(), id)
	return err
}

// IsActiveTerminalSession reports whether id exists and is not soft-deleted.
func (s *ServerStore) IsActiveTerminalSession(id uint64) (bool, error) {
	var isDeleted int
	err := s.db.QueryRow(`SELECT is_deleted FROM terminal_sessions WHERE id = ?`, id).Scan(&isDeleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return isDeleted == 0, nil
}

// GetTerminalSession fetches a session row, or nil if it doesn't exist.
func (s *ServerStore) GetTerminalSession(id uint64) (*TerminalSession, error) {
	row := s.db.QueryRow(`SELECT id, server_run_id, created_at, is_deleted, deleted_at FROM terminal_sessions WHERE id = ?`, id)
	return scanTerminalSession(row)
}

// GetActiveTerminalSessions returns every non-deleted session row.
func (s *ServerStore) GetActiveTerminalSessions() ([]TerminalSession, error) {
	rows, err := s.db.Query(`SELECT id, server_run_id, created_at, is_deleted, deleted_at FROM terminal_sessions WHERE is_deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []TerminalSession
	for rows.Next() {
		var (
			ts             TerminalSession
			createdAt      int64
			isDeleted      int
			deletedAtValue sql.NullInt64
		)
		if err := rows.Scan(&ts.ID, &ts.ServerRunID, &createdAt, &isDeleted, &deletedAtValue); err != nil {
			return nil, err
		}
		ts.CreatedAt = time.Unix(createdAt, 0)
		ts.IsDeleted = isDeleted != 0
		if deletedAtValue.Valid {
			t := time.Unix(deletedAtValue.Int64, 0)
			ts.DeletedAt = &t
		}
		sessions = append(sessions, ts)
	}
	return sessions, rows.Err()
}

func scanTerminalSession(row *sql.Row) (*TerminalSession, error) {
	var (
		ts             TerminalSession
		createdAt      int64
		isDeleted      int
		deletedAtValue sql.NullInt64
	)
	if err := row.Scan(&ts.ID, &ts.ServerRunID, &createdAt, &isDeleted, &deletedAtValue); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	ts.CreatedAt = time.Unix(createdAt, 0)
	ts.IsDeleted = isDeleted != 0
	if deletedAtValue.Valid {
		t := time.Unix(deletedAtValue.Int64, 0)
		ts.DeletedAt = &t
	}
	return &ts, nil
}

// AddLLMProvider inserts a provider row and returns its id.
func (s *ServerStore) AddLLMProvider(p LLMProvider) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO llm_providers (name, type, url, model, api_key, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Type, p.URL, p.Model, p.APIKey, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpdateLLMProvider overwrites an existing provider row.
func (s *ServerStore) UpdateLLMProvider(p LLMProvider) error {
	_, err := s.db.Exec(`UPDATE llm_providers SET name = ?, type = ?, url = ?, model = ?, api_key = ? WHERE id = ?`,
		p.Name, p.Type, p.URL, p.Model, p.APIKey, p.ID)
	return err
}

// DeleteLLMProvider removes a provider row.
func (s *ServerStore) DeleteLLMProvider(id int64) error {
	_, err := s.db.Exec(`DELETE FROM llm_providers WHERE id = ?`, id)
	return err
}

// GetLLMProvider fetches a provider by id, or nil if it doesn't exist.
func (s *ServerStore) GetLLMProvider(id int64) (*LLMProvider, error) {
	row := s.db.QueryRow(`SELECT id, name, type, url, model, api_key, created_at FROM llm_providers WHERE id = ?`, id)
	var p LLMProvider
	var createdAt int64
	if err := row.Scan(&p.ID, &p.Name, &p.Type, &p.URL, &p.Model, &p.APIKey, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	return &p, nil
}

// SaveChatMessage appends one turn to a session's chat transcript.
func (s *ServerStore) SaveChatMessage(sessionID uint64, role, content string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO chat_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, role, content, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetChatHistory returns a session's chat transcript in chronological order.
func (s *ServerStore) GetChatHistory(sessionID uint64) ([]ChatMessage, error) {
	rows, err := s.db.Query(`SELECT id, session_id, role, content, created_at FROM chat_messages WHERE session_id = ? ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var m ChatMessage
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(createdAt)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ClearChatHistory deletes every chat message belonging to a session.
func (s *ServerStore) ClearChatHistory(sessionID uint64) error {
	_, err := s.db.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, sessionID)
	return err
}

// GetAllLLMProviders returns every configured provider.
func (s *ServerStore) GetAllLLMProviders() ([]LLMProvider, error) {
	rows, err := s.db.Query(`SELECT id, name, type, url, model, api_key, created_at FROM llm_providers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var providers []LLMProvider
	for rows.Next() {
		var p LLMProvider
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.URL, &p.Model, &p.APIKey, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(createdAt, 0)
		providers = append(providers, p)
	}
	return providers, rows.Err()
}
