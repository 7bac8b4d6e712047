// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mattn/go-shellwords"
)

// =============================================================================
// OUTCOME
// =============================================================================

// OutcomeKind classifies how a task ended.
type OutcomeKind int

const (
	// OutcomeSucceeded means the process exited with status 0
	OutcomeSucceeded OutcomeKind = iota

	// OutcomeExitFailure means the process ran and exited non-zero
	OutcomeExitFailure

	// OutcomeLaunchFailure means the process could not be started
	OutcomeLaunchFailure
)

// String returns the outcome name used in logs and the run journal.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeExitFailure:
		return "failed"
	case OutcomeLaunchFailure:
		return "launch_failed"
	default:
		return "unknown"
	}
}

// Outcome is what an Executor returns for one task.
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int

	// Err is a *NonZeroExitError or *LaunchError for failures, nil on success
	Err error
}

// Succeeded builds a successful outcome.
func Succeeded() Outcome {
	return Outcome{Kind: OutcomeSucceeded}
}

// ExitFailure builds an outcome for a process that exited with code.
func ExitFailure(path string, code int) Outcome {
	return Outcome{
		Kind:     OutcomeExitFailure,
		ExitCode: code,
		Err:      &NonZeroExitError{Path: path, Code: code},
	}
}

// LaunchFailure builds an outcome for a process that never started.
func LaunchFailure(path string, err error) Outcome {
	return Outcome{
		Kind:     OutcomeLaunchFailure,
		ExitCode: -1,
		Err:      &LaunchError{Path: path, Err: err},
	}
}

// Failed reports whether the outcome is any kind of failure.
func (o Outcome) Failed() bool {
	return o.Kind != OutcomeSucceeded
}

// Reason is the short text shown next to a finished task, e.g. "Code: 2".
func (o Outcome) Reason() string {
	switch o.Kind {
	case OutcomeSucceeded, OutcomeExitFailure:
		return fmt.Sprintf("Code: %d", o.ExitCode)
	default:
		var le *LaunchError
		if errors.As(o.Err, &le) && le.Err != nil {
			return "LaunchError: " + le.Err.Error()
		}
		return "LaunchError"
	}
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor launches the process for a task and blocks until it exits.
// Implementations must always return; the engine imposes no timeout.
type Executor interface {
	Run(ctx context.Context, task Task) Outcome
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, task Task) Outcome

// Run calls f.
func (f ExecutorFunc) Run(ctx context.Context, task Task) Outcome {
	return f(ctx, task)
}

// =============================================================================
// PROCESS EXECUTOR
// =============================================================================

// DefaultInterpreters maps script extensions to the command that runs them.
// Extensions not listed are executed directly.
func DefaultInterpreters() map[string][]string {
	m := map[string][]string{
		".sh":   {"sh"},
		".bash": {"bash"},
		".py":   {"python3"},
		".rb":   {"ruby"},
		".pl":   {"perl"},
		".js":   {"node"},
		".ps1":  {"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File"},
	}
	if runtime.GOOS == "windows" {
		m[".py"] = []string{"python"}
		m[".bat"] = []string{"cmd", "/C"}
		m[".cmd"] = []string{"cmd", "/C"}
	}
	return m
}

// ProcessExecutor runs tasks as child processes. Output is discarded.
type ProcessExecutor struct {
	// Interpreters maps a lower-case extension (".py") to a command prefix
	Interpreters map[string][]string

	// UseScriptDir runs each process with its script's directory as working dir
	UseScriptDir bool

	// Env is appended to the inherited environment ("KEY=value")
	Env []string
}

// NewProcessExecutor creates an executor with the default interpreter table.
func NewProcessExecutor() *ProcessExecutor {
	return &ProcessExecutor{Interpreters: DefaultInterpreters()}
}

// Run launches task and waits for it.
func (e *ProcessExecutor) Run(ctx context.Context, task Task) Outcome {
	cmd, err := e.Command(ctx, task)
	if err != nil {
		return LaunchFailure(task.Path, err)
	}

	if err := cmd.Start(); err != nil {
		return LaunchFailure(task.Path, err)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return ExitFailure(task.Path, exitErr.ExitCode())
		}
		return LaunchFailure(task.Path, err)
	}
	return Succeeded()
}

// Command builds the *exec.Cmd for task without starting it.
func (e *ProcessExecutor) Command(ctx context.Context, task Task) (*exec.Cmd, error) {
	info, err := os.Stat(task.Path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", task.Path)
	}

	args, err := SplitArgs(task.Args)
	if err != nil {
		return nil, err
	}

	name := task.Path
	if prefix, ok := e.Interpreters[strings.ToLower(filepath.Ext(task.Path))]; ok && len(prefix) > 0 {
		name = prefix[0]
		args = append(append(append([]string{}, prefix[1:]...), task.Path), args...)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if e.UseScriptDir {
		cmd.Dir = filepath.Dir(task.Path)
	}
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	return cmd, nil
}

// SplitArgs splits an argument string using shell quoting rules. Variables and
// backticks are left untouched.
func SplitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	p := shellwords.NewParser()
	p.ParseEnv = false
	p.ParseBacktick = false
	args, err := p.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid argument string %q: %w", s, err)
	}
	return args, nil
}
