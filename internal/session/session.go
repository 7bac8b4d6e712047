// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/config"
	"github.com/jeranaias/batchrun/internal/history"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/metrics"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/util"
)

// ErrNothingToRun is returned by Start when the batch list is empty.
var ErrNothingToRun = errors.New("batch list is empty")

// =============================================================================
// SESSION
// =============================================================================

// Session is the owner of a batch list and the engine that runs it.
type Session struct {
	cfg     *config.Config
	log     logging.Logger
	list    *batch.List
	engine  *tasks.Engine
	inbox   *tasks.Inbox
	out     *tasks.Inbox
	journal *history.Journal
	metrics *metrics.Exporter

	exec       tasks.Executor
	engineOpts []tasks.Option
	autoFinish bool

	mu       sync.Mutex
	status   string
	message  string
	runDone  chan struct{}
	loopDone chan struct{}
	closed   bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used by the session and its engine.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithExecutor replaces the process executor built from the config.
func WithExecutor(exec tasks.Executor) Option {
	return func(s *Session) {
		s.exec = exec
	}
}

// WithJournal records every run in j.
func WithJournal(j *history.Journal) Option {
	return func(s *Session) {
		s.journal = j
	}
}

// WithMetrics reports task activity to m.
func WithMetrics(m *metrics.Exporter) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithAutoFinish overrides runner.auto_finish.
func WithAutoFinish(on bool) Option {
	return func(s *Session) {
		s.autoFinish = on
	}
}

// WithEngineOptions passes extra options to the engine.
func WithEngineOptions(opts ...tasks.Option) Option {
	return func(s *Session) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// New creates a session and starts its event loop. A nil cfg uses defaults.
func New(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{
		cfg:        cfg,
		log:        logging.Nop(),
		list:       batch.New(cfg.Runner.AllowDuplicates),
		autoFinish: cfg.Runner.AutoFinish,
		status:     "Ready.",
		loopDone:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.exec == nil {
		exec, err := ExecutorFromConfig(cfg.Exec)
		if err != nil {
			return nil, err
		}
		s.exec = exec
	}

	s.inbox = tasks.NewInbox()
	s.out = tasks.NewInbox()

	reporters := tasks.MultiReporter{s.inbox, tasks.LogReporter{Log: s.log}}
	if s.metrics != nil {
		reporters = append(reporters, s.metrics)
	}
	engineOpts := append([]tasks.Option{
		tasks.WithLogger(s.log),
		tasks.WithParallelism(cfg.Runner.MaxParallel),
	}, s.engineOpts...)
	s.engine = tasks.NewEngine(s.exec, reporters, engineOpts...)

	go s.loop()
	return s, nil
}

// ExecutorFromConfig builds a process executor: the default interpreter table
// with the configured command lines laid over it.
func ExecutorFromConfig(cfg config.ExecConfig) (*tasks.ProcessExecutor, error) {
	interpreters := tasks.DefaultInterpreters()
	for ext, cmdline := range cfg.Interpreters {
		parts, err := tasks.SplitArgs(cmdline)
		if err != nil {
			return nil, fmt.Errorf("exec.interpreters[%s]: %w", ext, err)
		}
		ext = strings.ToLower(ext)
		if len(parts) == 0 {
			delete(interpreters, ext)
			continue
		}
		interpreters[ext] = parts
	}
	return &tasks.ProcessExecutor{
		Interpreters: interpreters,
		UseScriptDir: cfg.UseScriptDir,
		Env:          append([]string(nil), cfg.Env...),
	}, nil
}

// =============================================================================
// ACCESSORS
// =============================================================================

// List returns the batch list.
func (s *Session) List() *batch.List { return s.list }

// Engine returns the engine. Callers should prefer the Session methods.
func (s *Session) Engine() *tasks.Engine { return s.engine }

// Config returns the configuration the session was built with.
func (s *Session) Config() *config.Config { return s.cfg }

// Events returns every engine event after it has been applied to the list.
// The channel is closed by Close.
func (s *Session) Events() <-chan tasks.Event { return s.out.Events() }

// Entries returns a copy of the batch list.
func (s *Session) Entries() []batch.Entry { return s.list.Entries() }

// Snapshot returns the engine's counters for the current or last run.
func (s *Session) Snapshot() tasks.Stats { return s.engine.Snapshot() }

// Running reports whether a run is active.
func (s *Session) Running() bool { return s.engine.State().Active() }

// Parallelism returns the worker count for the next run.
func (s *Session) Parallelism() int { return s.engine.Parallelism() }

// DefaultArgs returns the argument string for newly added entries.
func (s *Session) DefaultArgs() string { return s.cfg.Runner.DefaultArgs }

// Status returns the one-line status text.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Message returns the final message of the last finished run, or "".
func (s *Session) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

func (s *Session) setStatus(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// Add appends paths to the list. While a run accepts tasks, the new entries
// are enqueued into it as well; otherwise they wait for the next Start.
func (s *Session) Add(paths []string, args string) batch.AddReport {
	rep := s.list.Add(paths, args)
	for _, sk := range rep.Skipped {
		s.log.Warn("skipped", logging.F("path", sk.Path), logging.F("reason", sk.Reason))
	}

	if len(rep.Added) > 0 && s.Running() {
		for i, e := range rep.Added {
			if err := s.engine.Enqueue(e.Task()); err != nil {
				s.log.Info("added to list only",
					logging.F("scripts", len(rep.Added)-i),
					logging.F("reason", err))
				break
			}
			s.log.Debug("enqueued into active run", logging.F("task", e.Name()))
		}
	}

	s.setStatus("Added %s.", util.Plural(len(rep.Added), "script"))
	return rep
}

// Remove deletes entries from the list. A removed entry that is already
// running or queued in the active run still executes; its results are dropped.
func (s *Session) Remove(ids ...tasks.TaskID) []batch.Entry {
	removed := s.list.Remove(ids...)
	s.setStatus("Removed %s from list.", util.Plural(len(removed), "script"))
	return removed
}

// EditArgs replaces the argument string of entries. Tasks already enqueued
// keep the arguments they were enqueued with.
func (s *Session) EditArgs(args string, ids ...tasks.TaskID) error {
	if _, err := tasks.SplitArgs(args); err != nil {
		return err
	}
	if err := s.list.EditArgs(args, ids...); err != nil {
		return err
	}
	s.setStatus("Updated arguments for %s.", util.Plural(len(ids), "script"))
	return nil
}

// SetAllowDuplicates toggles duplicate path detection for future adds.
func (s *Session) SetAllowDuplicates(allow bool) {
	s.list.SetAllowDuplicates(allow)
	if allow {
		s.setStatus("Duplicate paths allowed.")
	} else {
		s.setStatus("Duplicate paths rejected.")
	}
}

// SetParallelism sets the worker count for the next run.
func (s *Session) SetParallelism(n int) error {
	if err := s.engine.Configure(n); err != nil {
		return err
	}
	if s.Running() {
		s.setStatus("Max parallel set to %d (applies to the next run).", n)
	} else {
		s.setStatus("Max parallel set to %d.", n)
	}
	return nil
}

// =============================================================================
// RUN CONTROL
// =============================================================================

// Start runs every entry of the list.
func (s *Session) Start() error {
	if st := s.engine.State(); st.Active() {
		return &tasks.InvalidStateError{Op: "start", State: st}
	}
	if s.list.Len() == 0 {
		return ErrNothingToRun
	}

	// The previous run's last events may still be in the loop.
	s.mu.Lock()
	prev := s.runDone
	s.mu.Unlock()
	if prev != nil {
		<-prev
	}

	backlog := s.list.StartBacklog()
	done := make(chan struct{})
	s.mu.Lock()
	s.runDone = done
	s.message = ""
	s.mu.Unlock()

	if err := s.engine.Start(backlog); err != nil {
		s.mu.Lock()
		s.runDone = nil
		s.mu.Unlock()
		close(done)
		return err
	}
	s.setStatus("Starting execution (Tasks: %d, Max: %d)...", len(backlog), s.engine.Parallelism())
	return nil
}

// Stop asks the active run to finish running tasks and start nothing new.
func (s *Session) Stop() error {
	if err := s.engine.RequestStop(); err != nil {
		return err
	}
	s.setStatus("Stop signal sent. Finishing active scripts...")
	return nil
}

// Finish lets the active run complete its queue and then end.
func (s *Session) Finish() error {
	if err := s.engine.CloseQueue(); err != nil {
		return err
	}
	s.setStatus("Queue closed. Finishing remaining scripts...")
	return nil
}

// Wait blocks until the current run has ended and its final event has been
// applied. It returns immediately when no run was started.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.runDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops an active run, waits for it and shuts the event loop down.
// Events() is closed once every pending event has been delivered.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.Running() {
		if err := s.engine.RequestStop(); err != nil && !errors.Is(err, tasks.ErrInvalidState) {
			return err
		}
	}
	s.engine.WaitUntilFinished()

	s.inbox.Close()
	<-s.loopDone
	s.out.Close()
	return nil
}

// =============================================================================
// EVENT LOOP
// =============================================================================

func (s *Session) loop() {
	defer close(s.loopDone)
	for ev := range s.inbox.Events() {
		s.handle(ev)
		s.out.Post(ev)
	}
}

func (s *Session) handle(ev tasks.Event) {
	s.list.Apply(ev)
	if s.journal != nil {
		s.journal.Handle(ev)
	}

	switch ev.Kind {
	case tasks.EventFinished:
		out := ev.Result.Outcome
		name := ev.Task.Name()
		if out.Kind == tasks.OutcomeLaunchFailure {
			s.setStatus("%s", FailedStatus(name, s.list.Index(ev.Task.ID), out.Reason()))
		} else {
			s.setStatus("%s", FinishedStatus(s.engine.Snapshot(), name, out.ExitCode))
		}
		if s.autoFinish && s.engine.Drained() {
			if err := s.engine.CloseQueue(); err != nil {
				s.log.Debug("auto finish skipped", logging.F("error", err))
			}
		}

	case tasks.EventRunFinished:
		msg := FinalMessage(ev.Stats)
		s.log.Info("final status", logging.F("message", msg))
		s.mu.Lock()
		s.message = msg
		s.status = msg
		done := s.runDone
		s.runDone = nil
		s.mu.Unlock()
		if done != nil {
			close(done)
		}
	}
}

// =============================================================================
// STATUS TEXT
// =============================================================================

// FinishedStatus is the status line after a task exits.
func FinishedStatus(st tasks.Stats, name string, code int) string {
	return fmt.Sprintf("Running: %d/%d, Queue: %d, Finished: '%s' (Code %d)",
		st.Executing, st.Parallelism, st.Pending, name, code)
}

// FailedStatus is the status line after a task could not be launched. index is
// the entry's position in the list, -1 if it was removed.
func FailedStatus(name string, index int, reason string) string {
	return fmt.Sprintf("Failed: '%s' (Index %d) Reason: %s", name, index, reason)
}

// FinalMessage summarizes how a run ended.
func FinalMessage(st tasks.Stats) string {
	msg := "All tasks processed."
	if st.StopRequested {
		msg = "Execution stopped by user."
	}
	if st.NotRun > 0 {
		msg += fmt.Sprintf(" (%d tasks remain in queue).", st.NotRun)
	}
	return msg
}
