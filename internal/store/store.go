// Package store provides SQLite-based persistence for run history: which
// runs happened, what each task produced, and the lifecycle events along the
// way.
package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// Store is the SQLite-backed history layer.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a SQLite database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL keeps history writes from blocking readers like the CLI.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var name string
	err := s.db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&name)

	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.Exec(schemaSQL); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
		_, err = s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion)
		return err
	}
	if err != nil {
		return fmt.Errorf("checking schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version < currentSchemaVersion {
		return fmt.Errorf("schema version %d is older than %d, no migration available", version, currentSchemaVersion)
	}
	return nil
}

// Run is one scheduling run.
type Run struct {
	ID         string     `json:"id"`
	PlanName   string     `json:"plan_name,omitempty"`
	Mode       string     `json:"mode"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// CreateRun records the start of a run.
func (s *Store) CreateRun(id, planName, mode string) error {
	_, err := s.db.Exec(
		"INSERT INTO runs (id, plan_name, mode) VALUES (?, ?, ?)",
		id, planName, mode,
	)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	return nil
}

// FinishRun marks a run finished with the given status.
func (s *Store) FinishRun(id, status string) error {
	_, err := s.db.Exec(
		"UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id,
	)
	return err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT id, plan_name, mode, status, started_at, finished_at FROM runs ORDER BY started_at DESC, id LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.PlanName, &r.Mode, &r.Status, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TaskRecord is one task's terminal outcome within a run.
type TaskRecord struct {
	RunID       string    `json:"run_id"`
	TaskID      string    `json:"task_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Command     string    `json:"command"`
	Status      string    `json:"status"`
	ExitCode    int       `json:"exit_code"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	TimedOut    bool      `json:"timed_out,omitempty"`
	Error       string    `json:"error,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// SaveTaskResult upserts a task's terminal record for a run.
func (s *Store) SaveTaskResult(rec *TaskRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO task_results
		   (run_id, task_id, name, type, command, status, exit_code, stdout, stderr, duration_ms, timed_out, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, task_id) DO UPDATE SET
		   status = excluded.status,
		   exit_code = excluded.exit_code,
		   stdout = excluded.stdout,
		   stderr = excluded.stderr,
		   duration_ms = excluded.duration_ms,
		   timed_out = excluded.timed_out,
		   error = excluded.error,
		   completed_at = CURRENT_TIMESTAMP`,
		rec.RunID, rec.TaskID, rec.Name, rec.Type, rec.Command, rec.Status,
		rec.ExitCode, rec.Stdout, rec.Stderr, rec.DurationMs, rec.TimedOut, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("saving task result: %w", err)
	}
	return nil
}

// TasksForRun returns a run's task records in completion order.
func (s *Store) TasksForRun(runID string) ([]*TaskRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, task_id, name, type, command, status, exit_code, stdout, stderr,
		        duration_ms, timed_out, error, completed_at
		 FROM task_results WHERE run_id = ? ORDER BY completed_at, task_id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing task results: %w", err)
	}
	defer rows.Close()

	var recs []*TaskRecord
	for rows.Next() {
		rec := &TaskRecord{}
		if err := rows.Scan(
			&rec.RunID, &rec.TaskID, &rec.Name, &rec.Type, &rec.Command, &rec.Status,
			&rec.ExitCode, &rec.Stdout, &rec.Stderr, &rec.DurationMs, &rec.TimedOut,
			&rec.Error, &rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning task result: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// EventRecord is one lifecycle event within a run.
type EventRecord struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	TaskID     string    `json:"task_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// AppendEvent records a lifecycle event.
func (s *Store) AppendEvent(rec *EventRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO events (run_id, kind, task_id, error) VALUES (?, ?, ?, ?)",
		rec.RunID, rec.Kind, rec.TaskID, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// EventsForRun returns a run's events in the order they were recorded.
func (s *Store) EventsForRun(runID string) ([]*EventRecord, error) {
	rows, err := s.db.Query(
		"SELECT run_id, kind, task_id, error, occurred_at FROM events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var recs []*EventRecord
	for rows.Next() {
		rec := &EventRecord{}
		if err := rows.Scan(&rec.RunID, &rec.Kind, &rec.TaskID, &rec.Error, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
