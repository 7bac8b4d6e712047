// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is matched by every *InvalidStateError via errors.Is.
	ErrInvalidState = errors.New("invalid run state")

	// ErrNotRunning is returned by Enqueue when no run is active.
	ErrNotRunning = errors.New("no run is active")

	// ErrStopRequested is returned by Enqueue once stop has been requested.
	ErrStopRequested = errors.New("stop requested: run accepts no new tasks")

	// ErrQueueClosed is returned by Enqueue after CloseQueue.
	ErrQueueClosed = errors.New("queue closed: run accepts no new tasks")

	// ErrInvalidParallelism is returned by Configure for n < 1.
	ErrInvalidParallelism = errors.New("parallelism must be at least 1")

	// ErrEmptyPath is returned for tasks without an executable path.
	ErrEmptyPath = errors.New("executable path is empty")
)

// InvalidStateError reports an operation attempted in the wrong RunState.
type InvalidStateError struct {
	Op    string
	State RunState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.State)
}

// Is makes errors.Is(err, ErrInvalidState) true.
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// LaunchError means the process could not be created at all: missing file,
// permission denied, bad interpreter.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NonZeroExitError means the process ran and exited with a failure status.
type NonZeroExitError struct {
	Path string
	Code int
}

func (e *NonZeroExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Path, e.Code)
}
