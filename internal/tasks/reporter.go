// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"time"

	"github.com/jeranaias/batchrun/internal/logging"
)

// =============================================================================
// REPORTER CONTRACT
// =============================================================================

// Reporter receives per-task status from workers.
//
// Both methods are called from worker goroutines, possibly concurrently, and
// must return promptly. For one task, TaskStarted always happens before
// TaskFinished and both come from the same goroutine.
type Reporter interface {
	TaskStarted(task Task, worker int)
	TaskFinished(result Result)
}

// NotRunReporter is implemented by reporters that want to hear about tasks
// still queued when a run ended by stop. Called once per such task, after the
// last worker exited.
type NotRunReporter interface {
	TaskNotRun(task Task)
}

// RunReporter is implemented by reporters that want the end-of-run summary.
type RunReporter interface {
	RunFinished(stats Stats)
}

// RunStartReporter is implemented by reporters that want to know when a run
// begins. RunStarted is called from Start before any worker exists, with the
// engine locked: it must not call back into the Engine.
type RunStartReporter interface {
	RunStarted(stats Stats)
}

// =============================================================================
// MULTI REPORTER
// =============================================================================

// MultiReporter fans reports out to several reporters in order.
type MultiReporter []Reporter

func (m MultiReporter) TaskStarted(task Task, worker int) {
	for _, r := range m {
		r.TaskStarted(task, worker)
	}
}

func (m MultiReporter) TaskFinished(result Result) {
	for _, r := range m {
		r.TaskFinished(result)
	}
}

func (m MultiReporter) TaskNotRun(task Task) {
	for _, r := range m {
		if nr, ok := r.(NotRunReporter); ok {
			nr.TaskNotRun(task)
		}
	}
}

func (m MultiReporter) RunStarted(stats Stats) {
	for _, r := range m {
		if rs, ok := r.(RunStartReporter); ok {
			rs.RunStarted(stats)
		}
	}
}

func (m MultiReporter) RunFinished(stats Stats) {
	for _, r := range m {
		if rr, ok := r.(RunReporter); ok {
			rr.RunFinished(stats)
		}
	}
}

// =============================================================================
// LOG REPORTER
// =============================================================================

// LogReporter writes one log line per report.
type LogReporter struct {
	Log logging.Logger
}

func (r LogReporter) TaskStarted(task Task, worker int) {
	r.Log.Info("task started",
		logging.F("task", task.Name()),
		logging.F("id", task.ID),
		logging.F("worker", worker),
		logging.F("args", task.Args))
}

func (r LogReporter) TaskFinished(res Result) {
	fields := []logging.Field{
		logging.F("task", res.Task.Name()),
		logging.F("id", res.Task.ID),
		logging.F("worker", res.Worker),
		logging.F("outcome", res.Outcome.Kind),
		logging.F("duration", res.Duration().Round(time.Millisecond)),
	}
	if res.Succeeded() {
		r.Log.Info("task finished", append(fields, logging.F("code", res.Outcome.ExitCode))...)
		return
	}
	r.Log.Warn("task failed", append(fields, logging.F("error", res.Outcome.Err))...)
}

func (r LogReporter) TaskNotRun(task Task) {
	r.Log.Info("task not run", logging.F("task", task.Name()), logging.F("id", task.ID))
}

func (r LogReporter) RunFinished(stats Stats) {
	r.Log.Info("run finished",
		logging.F("run", stats.RunID),
		logging.F("stopped", stats.StopRequested),
		logging.F("succeeded", stats.Succeeded),
		logging.F("failed", stats.Failed),
		logging.F("not_run", stats.NotRun))
}

// nopReporter is used when the owner passes nil.
type nopReporter struct{}

func (nopReporter) TaskStarted(Task, int) {}
func (nopReporter) TaskFinished(Result)   {}
