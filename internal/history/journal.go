// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/tasks"
)

// Journal writes engine events to a Store. It is fed from the owner's event
// loop, never from worker goroutines, so a slow disk cannot stall a worker.
type Journal struct {
	store    *Store
	log      logging.Logger
	keepRuns int
	run      string
}

// NewJournal creates a journal. keepRuns > 0 prunes older runs after each run.
func NewJournal(store *Store, log logging.Logger, keepRuns int) *Journal {
	if log == nil {
		log = logging.Nop()
	}
	return &Journal{store: store, log: log, keepRuns: keepRuns}
}

// Handle records one event. Storage errors are logged and do not stop the run.
func (j *Journal) Handle(ev tasks.Event) {
	var err error
	switch ev.Kind {
	case tasks.EventRunStarted:
		j.run = ev.Stats.RunID
		err = j.store.BeginRun(j.run, ev.Stats.Parallelism, ev.Stats.StartedAt)
	case tasks.EventFinished:
		if j.run != "" {
			err = j.store.RecordResult(j.run, ev.Result)
		}
	case tasks.EventNotRun:
		if j.run != "" {
			err = j.store.RecordNotRun(j.run, ev.Task)
		}
	case tasks.EventRunFinished:
		err = j.store.EndRun(ev.Stats)
		j.run = ""
		if err == nil && j.keepRuns > 0 {
			var n int64
			if n, err = j.store.Prune(j.keepRuns); err == nil && n > 0 {
				j.log.Debug("pruned run journal", logging.F("runs", n))
			}
		}
	}
	if err != nil {
		j.log.Warn("run journal write failed", logging.F("event", ev.Kind), logging.F("error", err))
	}
}

// Run returns the id of the run being journaled, or "".
func (j *Journal) Run() string {
	return j.run
}
