// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"sync"
	"time"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies what an Event reports.
type EventKind int

const (
	EventStarted EventKind = iota
	EventFinished
	EventNotRun
	EventRunFinished
	EventRunStarted
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventNotRun:
		return "not_run"
	case EventRunFinished:
		return "run_finished"
	case EventRunStarted:
		return "run_started"
	default:
		return "unknown"
	}
}

// Event is one report as delivered through an Inbox.
type Event struct {
	Kind   EventKind
	Task   Task
	Worker int

	// Result is set for EventFinished
	Result Result

	// Stats is set for EventRunStarted and EventRunFinished
	Stats Stats

	Time time.Time
}

// =============================================================================
// INBOX
// =============================================================================

// Inbox is an unbounded single-consumer mailbox for reports.
//
// Workers append to it without ever blocking; a pump goroutine hands events to
// the consumer over Events() in the order they were reported. The consumer
// (a UI loop, the CLI printer) drains it on its own goroutine.
type Inbox struct {
	mu      sync.Mutex
	pending []Event
	closed  bool
	notify  chan struct{}
	out     chan Event
}

// NewInbox creates an inbox and starts its pump.
func NewInbox() *Inbox {
	in := &Inbox{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}
	go in.pump()
	return in
}

// Events returns the delivery channel. It is closed after Close once every
// queued event has been delivered.
func (in *Inbox) Events() <-chan Event {
	return in.out
}

// Close stops accepting events. Events already queued are still delivered.
func (in *Inbox) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
	in.wake()
}

// Len returns the number of events not yet handed to the consumer.
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

func (in *Inbox) TaskStarted(task Task, worker int) {
	in.put(Event{Kind: EventStarted, Task: task, Worker: worker})
}

func (in *Inbox) TaskFinished(result Result) {
	in.put(Event{Kind: EventFinished, Task: result.Task, Worker: result.Worker, Result: result})
}

func (in *Inbox) TaskNotRun(task Task) {
	in.put(Event{Kind: EventNotRun, Task: task})
}

func (in *Inbox) RunStarted(stats Stats) {
	in.put(Event{Kind: EventRunStarted, Stats: stats})
}

func (in *Inbox) RunFinished(stats Stats) {
	in.put(Event{Kind: EventRunFinished, Stats: stats})
}

// Post appends an already-built event, keeping its Time when set. Owners use
// it to forward events they have processed to their own consumers.
func (in *Inbox) Post(ev Event) {
	in.put(ev)
}

func (in *Inbox) put(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.pending = append(in.pending, ev)
	in.mu.Unlock()
	in.wake()
}

func (in *Inbox) wake() {
	select {
	case in.notify <- struct{}{}:
	default:
	}
}

// pump moves batches of pending events to the consumer.
func (in *Inbox) pump() {
	for {
		in.mu.Lock()
		batch := in.pending
		in.pending = nil
		closed := in.closed
		in.mu.Unlock()

		if len(batch) == 0 {
			if closed {
				close(in.out)
				return
			}
			<-in.notify
			continue
		}
		for _, ev := range batch {
			in.out <- ev
		}
	}
}
