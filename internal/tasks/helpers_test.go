// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// gateExecutor blocks every task until the test releases it, and tracks how
// many tasks run at once.
type gateExecutor struct {
	mu      sync.Mutex
	gates   map[TaskID]chan Outcome
	running map[TaskID]bool
	cur     int
	max     int
	overlap bool
	started chan TaskID
}

func newGateExecutor() *gateExecutor {
	return &gateExecutor{
		gates:   make(map[TaskID]chan Outcome),
		running: make(map[TaskID]bool),
		started: make(chan TaskID, 1024),
	}
}

func (g *gateExecutor) gateLocked(id TaskID) chan Outcome {
	ch, ok := g.gates[id]
	if !ok {
		ch = make(chan Outcome, 1)
		g.gates[id] = ch
	}
	return ch
}

func (g *gateExecutor) Run(_ context.Context, task Task) Outcome {
	g.mu.Lock()
	if g.running[task.ID] {
		g.overlap = true
	}
	g.running[task.ID] = true
	g.cur++
	if g.cur > g.max {
		g.max = g.cur
	}
	ch := g.gateLocked(task.ID)
	g.mu.Unlock()

	g.started <- task.ID
	out := <-ch

	g.mu.Lock()
	g.cur--
	delete(g.running, task.ID)
	g.mu.Unlock()
	return out
}

func (g *gateExecutor) release(id TaskID, out Outcome) {
	g.mu.Lock()
	ch := g.gateLocked(id)
	g.mu.Unlock()
	ch <- out
}

func (g *gateExecutor) maxConcurrent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max
}

// nextStarted waits for the executor to pick up a task.
func (g *gateExecutor) nextStarted(t *testing.T) TaskID {
	t.Helper()
	select {
	case id := <-g.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a task to start")
		return ""
	}
}

// expectNoStart fails if any task starts within d.
func (g *gateExecutor) expectNoStart(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case id := <-g.started:
		t.Fatalf("task %s started unexpectedly", id)
	case <-time.After(d):
	}
}

// recorder is a Reporter that checks per-task ordering.
type recorder struct {
	mu         sync.Mutex
	started    map[TaskID]int
	finished   map[TaskID]int
	results    map[TaskID]Result
	notRun     []TaskID
	runs       []Stats
	violations []string
}

func newRecorder() *recorder {
	return &recorder{
		started:  make(map[TaskID]int),
		finished: make(map[TaskID]int),
		results:  make(map[TaskID]Result),
	}
}

func (r *recorder) TaskStarted(task Task, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished[task.ID] > 0 {
		r.violations = append(r.violations, fmt.Sprintf("%s started after finishing", task.ID))
	}
	r.started[task.ID]++
}

func (r *recorder) TaskFinished(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started[res.Task.ID] == 0 {
		r.violations = append(r.violations, fmt.Sprintf("%s finished before starting", res.Task.ID))
	}
	r.finished[res.Task.ID]++
	r.results[res.Task.ID] = res
}

func (r *recorder) TaskNotRun(task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notRun = append(r.notRun, task.ID)
}

func (r *recorder) RunFinished(stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, stats)
}

func (r *recorder) counts(id TaskID) (started, finished int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[id], r.finished[id]
}

func (r *recorder) result(id TaskID) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[id]
}

func ids(names ...string) []Task {
	out := make([]Task, len(names))
	for i, n := range names {
		out[i] = NewTask(TaskID(n), "/opt/jobs/"+n+".sh", "")
	}
	return out
}
