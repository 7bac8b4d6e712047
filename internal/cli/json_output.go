// json_output.go - JSON output for scripting and CI pipelines.
//
// Every command that accepts --json prints exactly one JSONResponse to
// stdout; human-readable progress goes to stderr.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/jeranaias/batchrun/internal/history"
	"github.com/jeranaias/batchrun/internal/tasks"
)

// JSONResponse is the envelope of all JSON output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a response. A non-nil err marks it unsuccessful;
// data is still included so a failed run reports its results.
func NewJSONResponse(command string, data interface{}, err error) *JSONResponse {
	resp := &JSONResponse{
		Success:   err == nil,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
	if err != nil {
		msg := err.Error()
		resp.Error = &msg
	}
	return resp
}

// Print writes the response as indented JSON.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// RunData is the result of a headless run.
type RunData struct {
	RunID       string           `json:"run_id"`
	Parallelism int              `json:"parallelism"`
	Stopped     bool             `json:"stopped"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	NotRun      int              `json:"not_run"`
	DurationMS  int64            `json:"duration_ms"`
	Skipped     []SkippedData    `json:"skipped,omitempty"`
	Results     []TaskResultData `json:"results"`
}

// SkippedData is a path that was not added to the run.
type SkippedData struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// TaskResultData is one task outcome.
type TaskResultData struct {
	Path       string `json:"path"`
	Args       string `json:"args,omitempty"`
	Outcome    string `json:"outcome"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	Worker     int    `json:"worker,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// newTaskResultData converts an engine result.
func newTaskResultData(res tasks.Result) TaskResultData {
	d := TaskResultData{
		Path:       res.Task.Path,
		Args:       res.Task.Args,
		Outcome:    res.Outcome.Kind.String(),
		ExitCode:   res.Outcome.ExitCode,
		Worker:     res.Worker,
		DurationMS: res.Duration().Milliseconds(),
	}
	if res.Outcome.Err != nil {
		d.Error = res.Outcome.Err.Error()
	}
	return d
}

// HistoryRunData is one journaled run.
type HistoryRunData struct {
	ID          string     `json:"id"`
	Parallelism int        `json:"parallelism"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	Stopped     bool       `json:"stopped"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	NotRun      int        `json:"not_run"`
}

func newHistoryRunData(r history.Run) HistoryRunData {
	d := HistoryRunData{
		ID:          r.ID,
		Parallelism: r.Parallelism,
		StartedAt:   r.StartedAt,
		Stopped:     r.Stopped,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		NotRun:      r.NotRun,
	}
	if r.Finished() {
		finished := r.FinishedAt
		d.FinishedAt = &finished
	}
	return d
}

// HistoryResultData is one journaled task outcome.
type HistoryResultData struct {
	TaskID     string `json:"task_id"`
	Path       string `json:"path"`
	Args       string `json:"args,omitempty"`
	Outcome    string `json:"outcome"`
	ExitCode   int    `json:"exit_code"`
	Error      string `json:"error,omitempty"`
	Worker     int    `json:"worker,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func newHistoryResultData(r history.Record) HistoryResultData {
	d := HistoryResultData{
		TaskID:   r.TaskID,
		Path:     r.Path,
		Args:     r.Args,
		Outcome:  r.Outcome,
		ExitCode: r.ExitCode,
		Error:    r.Error,
		Worker:   r.Worker,
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		d.DurationMS = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	}
	return d
}

// ConfigData is the output of config show and config path.
type ConfigData struct {
	Path   string         `json:"path"`
	Exists bool           `json:"exists"`
	Values map[string]any `json:"values,omitempty"`
}

// VersionData represents the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}
