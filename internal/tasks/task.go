// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// TASK
// =============================================================================

// TaskID identifies a task for status correlation. The owner picks it; the
// engine only copies it into reports.
type TaskID string

// Task is one external-process invocation. It is a plain value: once handed to
// the engine it is never modified, and later edits by the owner only affect
// copies it enqueues afterwards.
type Task struct {
	// ID correlates reports back to the owner's view
	ID TaskID

	// Path is the executable or script to launch
	Path string

	// Args is the raw argument string, split by the Executor
	Args string
}

// NewTask creates a task value.
func NewTask(id TaskID, path, args string) Task {
	return Task{ID: id, Path: path, Args: args}
}

// Validate checks that the task can be enqueued.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Path) == "" {
		return fmt.Errorf("task %q: %w", t.ID, ErrEmptyPath)
	}
	return nil
}

// Name returns the base name of the task's path, for log lines.
func (t Task) Name() string {
	return filepath.Base(t.Path)
}

// String returns "name [args]".
func (t Task) String() string {
	if t.Args == "" {
		return t.Name()
	}
	return fmt.Sprintf("%s [%s]", t.Name(), t.Args)
}

// =============================================================================
// RESULT
// =============================================================================

// Result is produced exactly once for every task a worker dequeued and attempted.
type Result struct {
	Task       Task
	Outcome    Outcome
	Worker     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the process ran.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the task exited successfully.
func (r Result) Succeeded() bool {
	return r.Outcome.Kind == OutcomeSucceeded
}

// =============================================================================
// RUN STATE
// =============================================================================

// RunState is the lifecycle phase of an Engine run.
type RunState string

const (
	// StateIdle means no run has been started yet
	StateIdle RunState = "Idle"

	// StateRunning means workers are consuming the queue
	StateRunning RunState = "Running"

	// StateStopping means stop was requested and workers are draining
	StateStopping RunState = "Stopping"

	// StateFinished means every worker of the last run has exited
	StateFinished RunState = "Finished"
)

// String returns the state name.
func (s RunState) String() string {
	return string(s)
}

// Active reports whether a run is in progress.
func (s RunState) Active() bool {
	return s == StateRunning || s == StateStopping
}
