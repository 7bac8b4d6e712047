// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/batchrun/internal/tasks"
)

// ErrUnknownEntry is returned for ids that are not in the list.
var ErrUnknownEntry = errors.New("no such entry")

// SkipReason explains why a path was not added.
type SkipReason string

const (
	SkipMissing   SkipReason = "does not exist"
	SkipDirectory SkipReason = "is a directory"
	SkipDuplicate SkipReason = "already in list"
	SkipInvalid   SkipReason = "invalid path"
)

// Skipped is a path that Add rejected.
type Skipped struct {
	Path   string
	Reason SkipReason
}

// AddReport lists what Add did with each path.
type AddReport struct {
	Added   []Entry
	Skipped []Skipped
}

// Counts tallies entries by status.
type Counts struct {
	Total   int
	Pending int
	Running int
	Done    int
	Failed  int
	NotRun  int
}

// =============================================================================
// LIST
// =============================================================================

// List is the ordered batch of scripts the user has assembled. It is the
// owner-side view of a run: the engine never sees it, it only receives task
// values built from it, and results flow back through Apply.
//
// List is safe for concurrent use.
type List struct {
	mu              sync.RWMutex
	entries         []*Entry
	byID            map[tasks.TaskID]*Entry
	allowDuplicates bool

	now   func() time.Time
	newID func() tasks.TaskID
}

// New creates an empty list.
func New(allowDuplicates bool) *List {
	return &List{
		byID:            make(map[tasks.TaskID]*Entry),
		allowDuplicates: allowDuplicates,
		now:             time.Now,
		newID: func() tasks.TaskID {
			return tasks.TaskID(uuid.NewString())
		},
	}
}

// pathKey is the comparison key for duplicate detection. Paths are compared
// in NFC so a name typed on one system matches the same name dropped from another.
func pathKey(abs string) string {
	return norm.NFC.String(filepath.Clean(abs))
}

// Add appends paths with the given argument string. Each path is made absolute;
// paths that do not exist, directories, and (unless duplicates are allowed)
// paths already in the list are skipped.
func (l *List) Add(paths []string, args string) AddReport {
	var rep AddReport

	l.mu.Lock()
	defer l.mu.Unlock()

	existing := make(map[string]bool, len(l.entries))
	for _, e := range l.entries {
		existing[pathKey(e.Path)] = true
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || p == "" {
			rep.Skipped = append(rep.Skipped, Skipped{Path: p, Reason: SkipInvalid})
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			rep.Skipped = append(rep.Skipped, Skipped{Path: abs, Reason: SkipMissing})
			continue
		}
		if info.IsDir() {
			rep.Skipped = append(rep.Skipped, Skipped{Path: abs, Reason: SkipDirectory})
			continue
		}
		key := pathKey(abs)
		if !l.allowDuplicates && existing[key] {
			rep.Skipped = append(rep.Skipped, Skipped{Path: abs, Reason: SkipDuplicate})
			continue
		}

		now := l.now()
		e := &Entry{
			ID:        l.newID(),
			Path:      abs,
			Args:      args,
			Status:    StatusPending,
			AddedAt:   now,
			UpdatedAt: now,
		}
		l.entries = append(l.entries, e)
		l.byID[e.ID] = e
		existing[key] = true
		rep.Added = append(rep.Added, *e)
	}
	return rep
}

// Remove deletes entries. Tasks already handed to a run are not affected;
// their later events are ignored by Apply.
func (l *List) Remove(ids ...tasks.TaskID) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := make(map[tasks.TaskID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var removed []Entry
	kept := l.entries[:0]
	for _, e := range l.entries {
		if drop[e.ID] {
			removed = append(removed, *e)
			delete(l.byID, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = nil
	}
	l.entries = kept
	return removed
}

// EditArgs replaces the argument string of the given entries. Only tasks
// enqueued afterwards see the new arguments.
func (l *List) EditArgs(args string, ids ...tasks.TaskID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range ids {
		if _, ok := l.byID[id]; !ok {
			return fmt.Errorf("edit args %s: %w", id, ErrUnknownEntry)
		}
	}
	now := l.now()
	for _, id := range ids {
		e := l.byID[id]
		e.Args = args
		e.UpdatedAt = now
	}
	return nil
}

// SetAllowDuplicates changes the duplicate policy for future adds.
func (l *List) SetAllowDuplicates(allow bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowDuplicates = allow
}

// AllowDuplicates returns the duplicate policy.
func (l *List) AllowDuplicates() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.allowDuplicates
}

// Entries returns a copy of every entry in order.
func (l *List) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Get returns the entry with id.
func (l *List) Get(id tasks.TaskID) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// At returns the entry at position i.
func (l *List) At(i int) (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.entries) {
		return Entry{}, false
	}
	return *l.entries[i], true
}

// Index returns the position of id, or -1.
func (l *List) Index(id tasks.TaskID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i, e := range l.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Len returns the number of entries.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Counts tallies the entries by status.
func (l *List) Counts() Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c := Counts{Total: len(l.entries)}
	for _, e := range l.entries {
		switch e.Status {
		case StatusPending:
			c.Pending++
		case StatusRunning:
			c.Running++
		case StatusDone:
			c.Done++
		case StatusFailed:
			c.Failed++
		case StatusNotRun:
			c.NotRun++
		}
	}
	return c
}

// Task returns the task value for id with the entry's current arguments.
func (l *List) Task(id tasks.TaskID) (tasks.Task, bool) {
	e, ok := l.Get(id)
	if !ok {
		return tasks.Task{}, false
	}
	return e.Task(), true
}

// StartBacklog returns a task for every entry, in list order, for a new run.
// Entries that were running or left unrun go back to pending; finished entries
// keep their last result until they run again.
func (l *List) StartBacklog() []tasks.Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	backlog := make([]tasks.Task, 0, len(l.entries))
	for _, e := range l.entries {
		if !e.Finished() && e.Status != StatusPending {
			e.Status = StatusPending
			e.UpdatedAt = now
		}
		backlog = append(backlog, e.Task())
	}
	return backlog
}

// Apply folds an engine event into the list. It returns false for events about
// entries no longer in the list, and for run-level events.
func (l *List) Apply(ev tasks.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byID[ev.Task.ID]
	if !ok {
		return false
	}

	switch ev.Kind {
	case tasks.EventStarted:
		e.Status = StatusRunning
		e.Reason = ""
	case tasks.EventFinished:
		out := ev.Result.Outcome
		e.ExitCode = out.ExitCode
		if out.Kind == tasks.OutcomeLaunchFailure {
			e.Status = StatusFailed
			e.Reason = out.Reason()
		} else {
			e.Status = StatusDone
			e.Reason = ""
		}
	case tasks.EventNotRun:
		e.Status = StatusNotRun
	default:
		return false
	}
	e.UpdatedAt = l.now()
	if !ev.Time.IsZero() {
		e.UpdatedAt = ev.Time
	}
	return true
}
