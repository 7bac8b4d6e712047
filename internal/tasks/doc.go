// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks is the batch execution engine: a live task queue drained by a
// fixed pool of workers, each launching one external process at a time.
//
// # Key Types
//
//   - Task: immutable description of one process invocation (id, path, args)
//   - Queue: unbounded FIFO with per-worker sentinels and a stop-aware Dequeue
//   - StopSignal: write-once "start nothing new" flag, fresh per run
//   - Engine: Configure / Start / Enqueue / RequestStop / CloseQueue / Wait
//   - Executor: launches a process and blocks until it exits
//   - Reporter: started / finished callbacks from workers
//   - Inbox: unbounded single-consumer mailbox implementing Reporter
//
// # Usage
//
//	inbox := tasks.NewInbox()
//	eng := tasks.NewEngine(tasks.NewProcessExecutor(), inbox)
//	_ = eng.Configure(4)
//	_ = eng.Start(backlog)
//	_ = eng.Enqueue(tasks.NewTask("late", "/opt/jobs/late.sh", "--fast"))
//	_ = eng.CloseQueue() // or eng.RequestStop() to drain early
//	go eng.WaitUntilFinished()
//	for ev := range inbox.Events() {
//	    ...
//	}
//
// # Stop semantics
//
// RequestStop never kills a process. Workers finish what they are running and
// then exit; tasks still queued are reported once through NotRunReporter and
// are available from Unstarted. Enqueue after RequestStop fails with
// ErrStopRequested.
package tasks
