package session

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore stores runs in SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the run database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location, for callers that watch it.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		dataset TEXT,
		output TEXT,
		status TEXT NOT NULL,
		result TEXT,
		error TEXT,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		type TEXT NOT NULL,
		step INTEGER,
		row_idx INTEGER,
		content TEXT,
		tool TEXT,
		args TEXT,
		error TEXT,
		duration_ms INTEGER,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS row_tags (
		run_id TEXT NOT NULL,
		row_idx INTEGER NOT NULL,
		tags TEXT NOT NULL,
		PRIMARY KEY (run_id, row_idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save upserts the run, replaces its events, and upserts its row tags,
// all in one transaction.
func (s *SQLiteStore) Save(run *Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, mode, provider, model, dataset, output, status, result, error,
			input_tokens, output_tokens, cost, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			result = excluded.result,
			error = excluded.error,
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cost = excluded.cost,
			updated_at = excluded.updated_at
	`, run.ID, run.Mode, run.Provider, run.Model, run.Dataset, run.Output,
		run.Status, run.Result, run.Error,
		run.InputTokens, run.OutputTokens, run.Cost, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM events WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}
	for _, ev := range run.Events {
		argsJSON, _ := json.Marshal(ev.Args)
		_, err = tx.Exec(`
			INSERT INTO events (run_id, type, step, row_idx, content, tool, args, error, duration_ms, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, ev.Type, ev.Step, ev.Row, ev.Content, ev.Tool,
			string(argsJSON), ev.Error, ev.DurationMs, ev.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to save event: %w", err)
		}
	}

	for row, tags := range run.RowTags {
		_, err = tx.Exec(`
			INSERT INTO row_tags (run_id, row_idx, tags) VALUES (?, ?, ?)
			ON CONFLICT(run_id, row_idx) DO UPDATE SET tags = excluded.tags
		`, run.ID, row, tags)
		if err != nil {
			return fmt.Errorf("failed to save row tags: %w", err)
		}
	}

	return tx.Commit()
}

// Load reads a run with its events and row tags.
func (s *SQLiteStore) Load(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, mode, provider, model, dataset, output, status, result, error,
			input_tokens, output_tokens, cost, created_at, updated_at
		FROM runs WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", id)
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	if err := s.loadEvents(run); err != nil {
		return nil, err
	}
	if err := s.loadRowTags(run); err != nil {
		return nil, err
	}
	return run, nil
}

// List reads every run, without events or row tags. Callers that need the
// full log should Load the individual run.
func (s *SQLiteStore) List() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, provider, model, dataset, output, status, result, error,
			input_tokens, output_tokens, cost, created_at, updated_at
		FROM runs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run and its events and row tags.
func (s *SQLiteStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	if _, err := tx.Exec("DELETE FROM events WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM row_tags WHERE run_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete row tags: %w", err)
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var dataset, output, result, errMsg sql.NullString
	err := row.Scan(&run.ID, &run.Mode, &run.Provider, &run.Model, &dataset, &output,
		&run.Status, &result, &errMsg,
		&run.InputTokens, &run.OutputTokens, &run.Cost, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	run.Dataset = dataset.String
	run.Output = output.String
	run.Result = result.String
	run.Error = errMsg.String
	return &run, nil
}

func (s *SQLiteStore) loadEvents(run *Run) error {
	rows, err := s.db.Query(`
		SELECT type, step, row_idx, content, tool, args, error, duration_ms, timestamp
		FROM events WHERE run_id = ? ORDER BY id
	`, run.ID)
	if err != nil {
		return fmt.Errorf("failed to load events: %w", err)
	}
	defer rows.Close()

	run.Events = []Event{}
	for rows.Next() {
		var ev Event
		var step, rowIdx, durationMs sql.NullInt64
		var content, tool, argsJSON, evError sql.NullString
		err := rows.Scan(&ev.Type, &step, &rowIdx, &content, &tool, &argsJSON, &evError, &durationMs, &ev.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Step = int(step.Int64)
		ev.Row = int(rowIdx.Int64)
		ev.Content = content.String
		ev.Tool = tool.String
		ev.Error = evError.String
		ev.DurationMs = durationMs.Int64
		if argsJSON.Valid && argsJSON.String != "" && argsJSON.String != "null" {
			json.Unmarshal([]byte(argsJSON.String), &ev.Args)
		}
		run.Events = append(run.Events, ev)
	}
	return rows.Err()
}

func (s *SQLiteStore) loadRowTags(run *Run) error {
	rows, err := s.db.Query("SELECT row_idx, tags FROM row_tags WHERE run_id = ?", run.ID)
	if err != nil {
		return fmt.Errorf("failed to load row tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rowIdx int
		var tags string
		if err := rows.Scan(&rowIdx, &tags); err != nil {
			return fmt.Errorf("failed to scan row tags: %w", err)
		}
		run.SetRowTag(rowIdx, tags)
	}
	return rows.Err()
}
