// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/batchrun/internal/logging"
)

// DefaultParallelism is used until Configure is called.
const DefaultParallelism = 2

// =============================================================================
// STATS
// =============================================================================

// Stats is a point-in-time view of the current (or last) run.
type Stats struct {
	RunID       string
	State       RunState
	Parallelism int

	// Workers is the number of worker goroutines still alive
	Workers   int
	Executing int
	Pending   int

	Started   int
	Succeeded int
	Failed    int
	NotRun    int

	StopRequested bool
	QueueClosed   bool

	StartedAt  time.Time
	FinishedAt time.Time
}

// Finished returns Succeeded + Failed.
func (s Stats) Finished() int {
	return s.Succeeded + s.Failed
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs tasks on a fixed pool of workers.
//
// One run goes Start -> (Enqueue)* -> RequestStop or CloseQueue -> Finished.
// Exactly Parallelism workers are started per run, so at most that many
// processes execute at once. Stop is cooperative: running processes finish,
// queued tasks are left unstarted and reported through NotRunReporter.
type Engine struct {
	exec     Executor
	rep      Reporter
	log      logging.Logger
	now      func() time.Time
	newRunID func() string

	mu          sync.Mutex
	parallelism int
	state       RunState
	cur         *run
	unstarted   []Task
}

// run holds everything that belongs to one Start..Finished cycle.
type run struct {
	id          string
	parallelism int
	queue       *Queue
	stop        *StopSignal
	closed      bool // guarded by Engine.mu
	group       errgroup.Group
	done        chan struct{}

	live      atomic.Int32
	executing atomic.Int32
	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64

	// set by finish, guarded by Engine.mu
	notRun     int
	startedAt  time.Time
	finishedAt time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithParallelism sets the initial parallelism. Values below 1 are ignored.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.parallelism = n
		}
	}
}

// WithClock overrides time.Now for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithRunIDs overrides the run id generator.
func WithRunIDs(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newRunID = gen
		}
	}
}

// NewEngine creates an idle engine. A nil reporter discards reports.
func NewEngine(exec Executor, rep Reporter, opts ...Option) *Engine {
	if rep == nil {
		rep = nopReporter{}
	}
	e := &Engine{
		exec:        exec,
		rep:         rep,
		log:         logging.Nop(),
		now:         time.Now,
		newRunID:    uuid.NewString,
		parallelism: DefaultParallelism,
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// OWNER OPERATIONS
// =============================================================================

// Configure sets the number of workers for the next run. It does not affect a
// run that is already active.
func (e *Engine) Configure(n int) error {
	if n < 1 {
		return fmt.Errorf("configure %d: %w", n, ErrInvalidParallelism)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parallelism = n
	return nil
}

// Parallelism returns the configured worker count for the next run.
func (e *Engine) Parallelism() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.parallelism
}

// Start begins a run with the given backlog and spawns the workers.
func (e *Engine) Start(initial []Task) error {
	for _, t := range initial {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Active() {
		return &InvalidStateError{Op: "start", State: e.state}
	}

	stop := &StopSignal{}
	r := &run{
		id:          e.newRunID(),
		parallelism: e.parallelism,
		queue:       NewQueue(stop),
		stop:        stop,
		done:        make(chan struct{}),
		startedAt:   e.now(),
	}
	for _, t := range initial {
		r.queue.Enqueue(t)
	}

	e.cur = r
	e.unstarted = nil
	e.state = StateRunning

	if rs, ok := e.rep.(RunStartReporter); ok {
		rs.RunStarted(e.statsLocked())
	}
	e.log.Info("run started",
		logging.F("run", r.id),
		logging.F("tasks", len(initial)),
		logging.F("parallelism", r.parallelism))

	r.live.Store(int32(r.parallelism))
	for i := 1; i <= r.parallelism; i++ {
		worker := i
		r.group.Go(func() error {
			e.work(r, worker)
			return nil
		})
	}
	go e.finish(r)

	return nil
}

// Enqueue appends a task to the active run.
//
// It fails with ErrNotRunning when no run is active, ErrStopRequested after
// RequestStop and ErrQueueClosed after CloseQueue. Tasks rejected this way are
// not kept for a later run.
func (e *Engine) Enqueue(task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case !e.state.Active():
		return ErrNotRunning
	case e.cur.stop.Requested():
		return ErrStopRequested
	case e.cur.closed:
		return ErrQueueClosed
	}
	e.cur.queue.Enqueue(task)
	return nil
}

// RequestStop asks the run to drain: running tasks finish, nothing new starts.
// Calling it again while the run is draining is a no-op.
func (e *Engine) RequestStop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Active() {
		return &InvalidStateError{Op: "request stop", State: e.state}
	}
	r := e.cur
	if !r.stop.Request() {
		return nil
	}
	e.state = StateStopping
	// One sentinel per worker still alive; extras are discarded at finish.
	r.queue.EnqueueSentinels(int(r.live.Load()))
	r.queue.Wake()

	e.log.Info("stop requested",
		logging.F("run", r.id),
		logging.F("executing", r.executing.Load()),
		logging.F("pending", r.queue.Len()))
	return nil
}

// CloseQueue declares that no more tasks will be enqueued. Workers finish the
// backlog and then exit. It is a no-op after RequestStop or a previous
// CloseQueue.
func (e *Engine) CloseQueue() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.Active() {
		return &InvalidStateError{Op: "close queue", State: e.state}
	}
	r := e.cur
	if r.closed || r.stop.Requested() {
		return nil
	}
	r.closed = true
	r.queue.EnqueueSentinels(r.parallelism)

	e.log.Debug("queue closed", logging.F("run", r.id), logging.F("pending", r.queue.Len()))
	return nil
}

// WaitUntilFinished blocks until every worker of the current run has exited
// and the queue is empty. It returns immediately when no run is active.
func (e *Engine) WaitUntilFinished() {
	_ = e.WaitContext(context.Background())
}

// WaitContext is WaitUntilFinished with a context.
func (e *Engine) WaitContext(ctx context.Context) error {
	e.mu.Lock()
	r := e.cur
	active := e.state.Active()
	e.mu.Unlock()

	if !active || r == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================
// STATE PRIMITIVES
// =============================================================================

// State returns the run state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Workers returns the number of live workers in the current run.
func (e *Engine) Workers() int {
	if r := e.current(); r != nil {
		return int(r.live.Load())
	}
	return 0
}

// Executing returns the number of tasks whose process is running.
func (e *Engine) Executing() int {
	if r := e.current(); r != nil {
		return int(r.executing.Load())
	}
	return 0
}

// Pending returns the number of queued, not yet started tasks.
func (e *Engine) Pending() int {
	if r := e.current(); r != nil {
		return r.queue.Len()
	}
	return 0
}

// StopRequested reports whether stop was requested for the current run.
func (e *Engine) StopRequested() bool {
	if r := e.current(); r != nil {
		return r.stop.Requested()
	}
	return false
}

// Drained reports whether a run is active with nothing queued or executing.
func (e *Engine) Drained() bool {
	e.mu.Lock()
	r := e.cur
	active := e.state.Active()
	e.mu.Unlock()
	return active && r.queue.Idle()
}

// Unstarted returns the tasks still queued when the last run ended by stop.
func (e *Engine) Unstarted() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Task(nil), e.unstarted...)
}

// Snapshot returns the current run's counters.
func (e *Engine) Snapshot() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) statsLocked() Stats {
	s := Stats{State: e.state, Parallelism: e.parallelism}
	r := e.cur
	if r == nil {
		return s
	}
	s.RunID = r.id
	s.Parallelism = r.parallelism
	s.Workers = int(r.live.Load())
	s.Executing = int(r.executing.Load())
	s.Pending = r.queue.Len()
	s.Started = int(r.started.Load())
	s.Succeeded = int(r.succeeded.Load())
	s.Failed = int(r.failed.Load())
	s.NotRun = r.notRun
	s.StopRequested = r.stop.Requested()
	s.QueueClosed = r.closed
	s.StartedAt = r.startedAt
	s.FinishedAt = r.finishedAt
	return s
}

func (e *Engine) current() *run {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cur
}

// =============================================================================
// WORKERS
// =============================================================================

// work is one worker: dequeue, execute, report, until a sentinel arrives.
func (e *Engine) work(r *run, worker int) {
	defer r.live.Add(-1)

	for {
		task, ok := r.queue.Dequeue()
		if !ok {
			e.log.Debug("worker exiting", logging.F("run", r.id), logging.F("worker", worker))
			return
		}
		e.execute(r, worker, task)
	}
}

// execute runs one task and reports it. Failures never stop the worker.
func (e *Engine) execute(r *run, worker int, task Task) {
	r.executing.Add(1)
	r.started.Add(1)
	startedAt := e.now()
	e.rep.TaskStarted(task, worker)

	outcome := e.runTask(task)
	r.executing.Add(-1)
	// Before the report, so an owner reacting to it sees the run as drained.
	r.queue.Done()

	if outcome.Failed() {
		r.failed.Add(1)
	} else {
		r.succeeded.Add(1)
	}
	e.rep.TaskFinished(Result{
		Task:       task,
		Outcome:    outcome,
		Worker:     worker,
		StartedAt:  startedAt,
		FinishedAt: e.now(),
	})
}

// runTask calls the executor, turning a panic into a launch failure.
func (e *Engine) runTask(task Task) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("executor panic", logging.F("task", task.Name()), logging.F("panic", p))
			out = LaunchFailure(task.Path, fmt.Errorf("executor panic: %v", p))
		}
	}()
	return e.exec.Run(context.Background(), task)
}

// finish waits for the workers of r, reports leftovers and marks the run done.
func (e *Engine) finish(r *run) {
	_ = r.group.Wait()

	left := r.queue.Drain()
	if nr, ok := e.rep.(NotRunReporter); ok {
		for _, t := range left {
			nr.TaskNotRun(t)
		}
	}

	e.mu.Lock()
	r.notRun = len(left)
	r.finishedAt = e.now()
	stats := e.statsLocked()
	stats.State = StateFinished
	e.mu.Unlock()

	if rr, ok := e.rep.(RunReporter); ok {
		rr.RunFinished(stats)
	}
	e.log.Info("run finished",
		logging.F("run", r.id),
		logging.F("succeeded", stats.Succeeded),
		logging.F("failed", stats.Failed),
		logging.F("not_run", stats.NotRun))

	// The state flips only after every report is out, so a caller returning
	// from WaitUntilFinished has seen them all.
	e.mu.Lock()
	e.unstarted = left
	e.state = StateFinished
	e.mu.Unlock()

	close(r.done)
}
