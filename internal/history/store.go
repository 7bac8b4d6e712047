// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history keeps a journal of runs and task results in SQLite.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/batchrun/internal/tasks"
)

var (
	// ErrRunNotFound is returned when no run matches an id or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRun is returned when a prefix matches more than one run.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// OutcomeNotRun is the outcome stored for tasks left queued at stop.
const OutcomeNotRun = "not_run"

// Run is one row of the runs table.
type Run struct {
	ID          string
	Parallelism int
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is in progress or was never closed
	Stopped     bool
	Succeeded   int
	Failed      int
	NotRun      int
}

// Finished reports whether EndRun was recorded.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Record is one task outcome within a run.
type Record struct {
	RunID      string
	TaskID     string
	Path       string
	Args       string
	Outcome    string
	ExitCode   int
	Error      string
	Worker     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(InitMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize metadata: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// WRITES
// =============================================================================

// BeginRun records the start of a run.
func (s *Store) BeginRun(runID string, parallelism int, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, parallelism, started_at) VALUES (?, ?, ?)
	`, runID, parallelism, startedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("begin run %s: %w", runID, err)
	}
	return nil
}

// RecordResult stores the outcome of a task that ran.
func (s *Store) RecordResult(runID string, res tasks.Result) error {
	errText := ""
	if res.Outcome.Err != nil {
		errText = res.Outcome.Err.Error()
	}
	_, err := s.db.Exec(`
		INSERT INTO results (run_id, task_id, path, args, outcome, exit_code, error, worker, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, string(res.Task.ID), res.Task.Path, res.Task.Args, res.Outcome.Kind.String(),
		res.Outcome.ExitCode, errText, res.Worker, unixMilli(res.StartedAt), unixMilli(res.FinishedAt))
	if err != nil {
		return fmt.Errorf("record result %s: %w", res.Task.ID, err)
	}
	return nil
}

// RecordNotRun stores a task that was still queued when its run stopped.
func (s *Store) RecordNotRun(runID string, task tasks.Task) error {
	_, err := s.db.Exec(`
		INSERT INTO results (run_id, task_id, path, args, outcome)
		VALUES (?, ?, ?, ?, ?)
	`, runID, string(task.ID), task.Path, task.Args, OutcomeNotRun)
	if err != nil {
		return fmt.Errorf("record not-run %s: %w", task.ID, err)
	}
	return nil
}

// EndRun closes a run with its final counters.
func (s *Store) EndRun(stats tasks.Stats) error {
	finished := stats.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	res, err := s.db.Exec(`
		UPDATE runs
		SET finished_at = ?, stopped = ?, succeeded = ?, failed = ?, not_run = ?
		WHERE id = ?
	`, finished.UnixMilli(), stats.StopRequested, stats.Succeeded, stats.Failed, stats.NotRun, stats.RunID)
	if err != nil {
		return fmt.Errorf("end run %s: %w", stats.RunID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end run %s: %w", stats.RunID, ErrRunNotFound)
	}
	return nil
}

// Prune deletes all but the newest keep runs and their results.
func (s *Store) Prune(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

// =============================================================================
// READS
// =============================================================================

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, parallelism, started_at, finished_at, stopped, succeeded, failed, not_run
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Parallelism, &started, &finished, &r.Stopped, &r.Succeeded, &r.Failed, &r.NotRun); err != nil {
			return nil, err
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ResolveRunID expands a unique id prefix to the full run id.
func (s *Store) ResolveRunID(prefix string) (string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs WHERE id LIKE ? ESCAPE '\' LIMIT 2`, escapeLike(prefix)+"%")
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%q: %w", prefix, ErrRunNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%q: %w", prefix, ErrAmbiguousRun)
	}
}

// Results returns the records of a run in the order they were written.
func (s *Store) Results(runID string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT run_id, task_id, path, args, outcome, exit_code, error, worker, started_at, finished_at
		FROM results WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                 Record
			code              sql.NullInt64
			started, finished sql.NullInt64
		)
		if err := rows.Scan(&r.RunID, &r.TaskID, &r.Path, &r.Args, &r.Outcome, &code, &r.Error, &r.Worker, &started, &finished); err != nil {
			return nil, err
		}
		r.ExitCode = int(code.Int64)
		if started.Valid {
			r.StartedAt = time.UnixMilli(started.Int64)
		}
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func unixMilli(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
