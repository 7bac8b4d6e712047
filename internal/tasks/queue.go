// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import "sync"

// =============================================================================
// TASK QUEUE
// =============================================================================

// queueItem is either a task or a sentinel telling one worker to exit.
type queueItem struct {
	task     Task
	sentinel bool
}

// Queue is an unbounded FIFO of tasks and sentinels shared by the owner and
// the workers of one run.
//
// Dequeue blocks on a condition variable until something is available. When the
// queue's StopSignal is set, Dequeue no longer hands out tasks: it skips to the
// first sentinel, so a task that is still queued at stop time is never started.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []queueItem
	tasks int // real tasks currently in items
	// inFlight counts tasks handed out by Dequeue and not yet marked Done
	inFlight int
	stop     *StopSignal
}

// NewQueue creates an empty queue bound to stop. A nil stop means the queue is
// never stopped.
func NewQueue(stop *StopSignal) *Queue {
	if stop == nil {
		stop = &StopSignal{}
	}
	q := &Queue{stop: stop}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a task to the tail. It never blocks.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	q.items = append(q.items, queueItem{task: task})
	q.tasks++
	q.mu.Unlock()
	q.cond.Signal()
}

// EnqueueSentinels appends n sentinels, one per worker that must be released.
func (q *Queue) EnqueueSentinels(n int) {
	if n <= 0 {
		return
	}
	q.mu.Lock()
	for i := 0; i < n; i++ {
		q.items = append(q.items, queueItem{sentinel: true})
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Dequeue blocks until a task or a sentinel is available and removes it.
// ok is false when the caller received a sentinel and must exit. A task
// counts as in flight until the caller calls Done.
func (q *Queue) Dequeue() (task Task, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if q.stop.Requested() {
			if i := q.firstSentinelLocked(); i >= 0 {
				q.removeLocked(i)
				return Task{}, false
			}
		} else if len(q.items) > 0 {
			item := q.items[0]
			q.removeLocked(0)
			if item.sentinel {
				return Task{}, false
			}
			q.inFlight++
			return item.task, true
		}
		q.cond.Wait()
	}
}

// Done marks one dequeued task as finished.
func (q *Queue) Done() {
	q.mu.Lock()
	if q.inFlight > 0 {
		q.inFlight--
	}
	q.mu.Unlock()
}

// Idle reports whether nothing is queued and no dequeued task is still in
// flight. Both counts are read under one lock, so a task moving from the
// queue to a worker is never missed.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks == 0 && q.inFlight == 0
}

// Wake rouses every blocked Dequeue so it re-checks the stop flag.
func (q *Queue) Wake() {
	q.cond.Broadcast()
}

// Len returns the number of queued tasks, not counting sentinels.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tasks
}

// Empty reports whether no tasks are queued.
func (q *Queue) Empty() bool {
	return q.Len() == 0
}

// Drain removes every queued task and sentinel and returns the tasks in order.
func (q *Queue) Drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	left := make([]Task, 0, q.tasks)
	for _, item := range q.items {
		if !item.sentinel {
			left = append(left, item.task)
		}
	}
	q.items = nil
	q.tasks = 0
	return left
}

// firstSentinelLocked returns the index of the first sentinel or -1.
// Must be called with lock held.
func (q *Queue) firstSentinelLocked() int {
	for i, item := range q.items {
		if item.sentinel {
			return i
		}
	}
	return -1
}

// removeLocked deletes items[i]. Must be called with lock held.
func (q *Queue) removeLocked(i int) {
	if !q.items[i].sentinel {
		q.tasks--
	}
	copy(q.items[i:], q.items[i+1:])
	q.items[len(q.items)-1] = queueItem{}
	q.items = q.items[:len(q.items)-1]
}
