package storage

import (
	"database/sql"
	"errors"
	"time"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session_commands (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    server_run_id INTEGER,
    command TEXT NOT NULL,
    output BLOB NOT NULL DEFAULT '',
    exit_code INTEGER,
    cwd_start TEXT,
    cwd_end TEXT,
    is_finished INTEGER NOT NULL DEFAULT 0,
    timestamp INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS command_output_lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    command_id INTEGER NOT NULL REFERENCES session_commands(id),
    line_order INTEGER NOT NULL,
    segments_json TEXT NOT NULL
);
`

// CommandRecord is one durable command block: the command text, its
// accumulated raw output, and its exit/cwd bookkeeping.
type CommandRecord struct {
	ID          int64
	ServerRunID int64
	Command     string
	Output      []byte
	ExitCode    int
	HasExitCode bool
	CwdStart    string
	CwdEnd      string
	IsFinished  bool
	Timestamp   time.Time
}

// SessionStore is the per-session storage facade (component E): a durable
// ring of command records with appended output, supporting late-join replay.
// It implements shellmarker.CommandStore.
type SessionStore struct {
	db          *sql.DB
	serverRunID int64
}

// OpenSessionStore opens (or creates) the per-session database at path.
// serverRunID is stamped onto commands created through this store.
func OpenSessionStore(path string, serverRunID int64) (*SessionStore, error) {
	db, err := openDB(path, sessionSchema)
	if err != nil {
		return nil, err
	}
	return &SessionStore{db: db, serverRunID: serverRunID}, nil
}

// Close releases the underlying database handle.
func (s *SessionStore) Close() error { return s.db.Close() }

// AddCommand inserts a new, unfinished CommandRecord and returns its id.
func (s *SessionStore) AddCommand(command, cwdStart string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO session_commands (server_run_id, command, output, cwd_start, is_finished, timestamp) VALUES (?, ?, '', ?, 0, ?)`,
		s.serverRunID, command, cwdStart, time.Now().Unix(),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AppendOutput appends bytes to a command's accumulated output.
func (s *SessionStore) AppendOutput(id int64, data []byte) error {
	_, err := s.db.Exec(`UPDATE session_commands SET output = output || ? WHERE id = ?`, data, id)
	return err
}

// FinishCommand records the exit code and ending cwd, marking the command finished.
func (s *SessionStore) FinishCommand(id int64, exitCode int, cwdEnd string) error {
	_, err := s.db.Exec(`UPDATE session_commands SET exit_code = ?, cwd_end = ?, is_finished = 1 WHERE id = ?`,
		exitCode, cwdEnd, id)
	return err
}

// GetAllCommands returns every command record in insertion order.
func (s *SessionStore) GetAllCommands() ([]CommandRecord, error) {
	rows, err := s.db.Query(`SELECT id, server_run_id, command, output, exit_code, cwd_start, cwd_end, is_finished, timestamp FROM session_commands ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CommandRecord
	for rows.Next() {
		var (
			rec          CommandRecord
			exitCode     sql.NullInt64
			cwdEnd       sql.NullString
			isFinished   int
			timestampSec int64
		)
		if err := rows.Scan(&rec.ID, &rec.ServerRunID, &rec.Command, &rec.Output, &exitCode, &rec.CwdStart, &cwdEnd, &isFinished, &timestampSec); err != nil {
			return nil, err
		}
		if exitCode.Valid {
			rec.ExitCode = int(exitCode.Int64)
			rec.HasExitCode = true
		}
		rec.CwdEnd = cwdEnd.String
		rec.IsFinished = isFinished != 0
		rec.Timestamp = time.Unix(timestampSec, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetLastCwd returns the most recent cwd_end of a finished command.
func (s *SessionStore) GetLastCwd() (string, bool, error) {
	var cwd sql.NullString
	err := s.db.QueryRow(`SELECT cwd_end FROM session_commands WHERE is_finished = 1 AND cwd_end IS NOT NULL ORDER BY id DESC LIMIT 1`).Scan(&cwd)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cwd.String, cwd.Valid, nil
}

// AddOutputLine stores a pre-serialized StyledSegment array for one line of
// a command's output in command_output_lines.
func (s *SessionStore) AddOutputLine(commandID int64, lineOrder int, segmentsJSON string) error {
	_, err := s.db.Exec(`INSERT INTO command_output_lines (command_id, line_order, segments_json) VALUES (?, ?, ?)`,
		commandID, lineOrder, segmentsJSON)
	return err
}

// GetOutputLines returns the pre-serialized segment JSON for a command's
// lines, in order.
func (s *SessionStore) GetOutputLines(commandID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT segments_json FROM command_output_lines WHERE command_id = ? ORDER BY line_order`, commandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}
