// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jeranaias/batchrun/internal/tasks"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the display state of a list entry.
type Status int

const (
	// StatusPending has not run in this session, or is queued for the current run
	StatusPending Status = iota

	// StatusRunning has a live process
	StatusRunning

	// StatusDone ran to completion; ExitCode holds its exit status
	StatusDone

	// StatusFailed could not be launched
	StatusFailed

	// StatusNotRun was still queued when the run was stopped
	StatusNotRun
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusNotRun:
		return "not run"
	default:
		return "unknown"
	}
}

// =============================================================================
// ENTRY
// =============================================================================

// Entry is one row of the batch list.
type Entry struct {
	ID   tasks.TaskID
	Path string
	Args string

	Status   Status
	ExitCode int
	// Reason is the failure text for StatusFailed, e.g. "LaunchError: ..."
	Reason string

	AddedAt   time.Time
	UpdatedAt time.Time
}

// Name returns the base name of the entry's path.
func (e Entry) Name() string {
	return filepath.Base(e.Path)
}

// Task returns the task value to enqueue for this entry.
func (e Entry) Task() tasks.Task {
	return tasks.NewTask(e.ID, e.Path, e.Args)
}

// Finished reports whether the entry ran (or failed to launch) in some run.
func (e Entry) Finished() bool {
	return e.Status == StatusDone || e.Status == StatusFailed
}

// Unsuccessful reports whether the last run of the entry did not exit 0.
func (e Entry) Unsuccessful() bool {
	return e.Status == StatusFailed || (e.Status == StatusDone && e.ExitCode != 0)
}

// Label is "path  [args]", the text shown for an entry without its status.
func (e Entry) Label() string {
	if e.Args == "" {
		return e.Path
	}
	return fmt.Sprintf("%s  [%s]", e.Path, e.Args)
}

// Suffix is the status decoration appended to Label.
func (e Entry) Suffix() string {
	switch e.Status {
	case StatusRunning:
		return " (Running)"
	case StatusDone:
		return fmt.Sprintf(" (Done, Code: %d)", e.ExitCode)
	case StatusFailed:
		return fmt.Sprintf(" (Failed: %s)", e.Reason)
	case StatusNotRun:
		return " (Not run)"
	default:
		return ""
	}
}

// Display is Label plus Suffix.
func Display(e Entry) string {
	return e.Label() + e.Suffix()
}
