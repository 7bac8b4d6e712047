// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// SCENARIOS
// =============================================================================

func TestEngine_TwoWorkersThreeTasks(t *testing.T) {
	exec := newGateExecutor()
	rec := newRecorder()
	eng := NewEngine(exec, rec, WithParallelism(2))

	require.NoError(t, eng.Start(ids("A", "B", "C")))

	first := map[TaskID]bool{exec.nextStarted(t): true, exec.nextStarted(t): true}
	require.True(t, first["A"] && first["B"], "A and B should start first, got %v", first)
	exec.expectNoStart(t, 50*time.Millisecond)
	require.Equal(t, 2, eng.Executing())
	require.Equal(t, 1, eng.Pending())

	exec.release("A", Succeeded())
	require.Equal(t, TaskID("C"), exec.nextStarted(t))

	exec.release("B", Succeeded())
	exec.release("C", ExitFailure("/opt/jobs/C.sh", 4))
	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()

	for _, id := range []TaskID{"A", "B", "C"} {
		s, f := rec.counts(id)
		require.Equal(t, 1, s, "started count for %s", id)
		require.Equal(t, 1, f, "finished count for %s", id)
	}
	require.Empty(t, rec.violations)
	require.Equal(t, StateFinished, eng.State())
	require.Equal(t, 0, eng.Pending())
	require.Equal(t, 0, eng.Workers())

	res := rec.result("C")
	require.Equal(t, OutcomeExitFailure, res.Outcome.Kind)
	require.Equal(t, 4, res.Outcome.ExitCode)
	var nz *NonZeroExitError
	require.True(t, errors.As(res.Outcome.Err, &nz))

	stats := eng.Snapshot()
	require.Equal(t, 2, stats.Succeeded)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 0, stats.NotRun)
	require.False(t, stats.FinishedAt.IsZero())
}

func TestEngine_StopWhileExecuting(t *testing.T) {
	exec := newGateExecutor()
	rec := newRecorder()
	eng := NewEngine(exec, rec)
	require.NoError(t, eng.Configure(1))

	require.NoError(t, eng.Start(ids("A")))
	require.Equal(t, TaskID("A"), exec.nextStarted(t))

	require.NoError(t, eng.Enqueue(ids("B")[0]))
	require.NoError(t, eng.RequestStop())
	require.NoError(t, eng.RequestStop(), "RequestStop must be idempotent")
	require.Equal(t, StateStopping, eng.State())
	require.True(t, eng.StopRequested())

	err := eng.Enqueue(ids("C")[0])
	require.ErrorIs(t, err, ErrStopRequested)

	exec.release("A", Succeeded())
	eng.WaitUntilFinished()

	s, f := rec.counts("A")
	require.Equal(t, 1, s)
	require.Equal(t, 1, f)
	s, f = rec.counts("B")
	require.Zero(t, s, "B must never start after stop")
	require.Zero(t, f)
	s, _ = rec.counts("C")
	require.Zero(t, s)

	require.Equal(t, []TaskID{"B"}, rec.notRun)
	require.Len(t, eng.Unstarted(), 1)
	require.Equal(t, TaskID("B"), eng.Unstarted()[0].ID)
	require.Equal(t, StateFinished, eng.State())
	require.Equal(t, 0, eng.Pending())

	require.Len(t, rec.runs, 1)
	require.True(t, rec.runs[0].StopRequested)
	require.Equal(t, 1, rec.runs[0].NotRun)
	require.Equal(t, StateFinished, rec.runs[0].State)
}

func TestEngine_LaunchErrorDoesNotStopPool(t *testing.T) {
	proc := NewProcessExecutor()
	exec := ExecutorFunc(func(ctx context.Context, task Task) Outcome {
		if task.ID == "ok" {
			return Succeeded()
		}
		return proc.Run(ctx, task)
	})
	rec := newRecorder()
	eng := NewEngine(exec, rec, WithParallelism(1))

	missing := NewTask("missing", filepath.Join(t.TempDir(), "does-not-exist.sh"), "")
	require.NoError(t, eng.Start([]Task{missing}))
	require.NoError(t, eng.Enqueue(NewTask("ok", "/opt/jobs/ok.sh", "")))
	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()

	s, f := rec.counts("missing")
	require.Equal(t, 1, s)
	require.Equal(t, 1, f)
	res := rec.result("missing")
	require.Equal(t, OutcomeLaunchFailure, res.Outcome.Kind)
	var le *LaunchError
	require.True(t, errors.As(res.Outcome.Err, &le))

	s, f = rec.counts("ok")
	require.Equal(t, 1, s)
	require.Equal(t, 1, f)
	require.True(t, rec.result("ok").Succeeded())
}

// =============================================================================
// PROPERTIES
// =============================================================================

func TestEngine_EveryTaskReportedOnceAndBounded(t *testing.T) {
	for _, p := range []int{1, 2, 3, 8} {
		t.Run(fmt.Sprintf("parallelism=%d", p), func(t *testing.T) {
			var cur, max atomic.Int32
			exec := ExecutorFunc(func(_ context.Context, task Task) Outcome {
				n := cur.Add(1)
				for {
					m := max.Load()
					if n <= m || max.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				cur.Add(-1)
				return Succeeded()
			})
			rec := newRecorder()
			eng := NewEngine(exec, rec, WithParallelism(p))

			const before, after = 12, 9
			var backlog []Task
			for i := 0; i < before; i++ {
				backlog = append(backlog, NewTask(TaskID(fmt.Sprintf("pre-%d", i)), "/opt/x", ""))
			}
			require.NoError(t, eng.Start(backlog))
			require.Equal(t, p, eng.Workers(), "exactly P workers must be started")
			for i := 0; i < after; i++ {
				require.NoError(t, eng.Enqueue(NewTask(TaskID(fmt.Sprintf("post-%d", i)), "/opt/x", "")))
			}
			require.NoError(t, eng.CloseQueue())
			eng.WaitUntilFinished()

			require.Empty(t, rec.violations)
			require.Len(t, rec.started, before+after)
			for id := range rec.started {
				s, f := rec.counts(id)
				require.Equal(t, 1, s, "%s started", id)
				require.Equal(t, 1, f, "%s finished", id)
			}
			require.LessOrEqual(t, int(max.Load()), p)
		})
	}
}

func TestEngine_NoTaskExecutesTwiceConcurrently(t *testing.T) {
	exec := newGateExecutor()
	eng := NewEngine(exec, nil, WithParallelism(4))

	require.NoError(t, eng.Start(ids("a", "b", "c", "d", "e", "f")))
	for i := 0; i < 4; i++ {
		exec.release(exec.nextStarted(t), Succeeded())
	}
	for i := 0; i < 2; i++ {
		exec.release(exec.nextStarted(t), Succeeded())
	}
	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()

	require.False(t, exec.overlap)
	require.LessOrEqual(t, exec.maxConcurrent(), 4)
}

// =============================================================================
// STATE CONTRACT
// =============================================================================

func TestEngine_WaitBeforeStartReturnsImmediately(t *testing.T) {
	eng := NewEngine(newGateExecutor(), nil)
	done := make(chan struct{})
	go func() {
		eng.WaitUntilFinished()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitUntilFinished blocked with no run")
	}
	require.Equal(t, StateIdle, eng.State())
}

func TestEngine_InvalidStates(t *testing.T) {
	exec := newGateExecutor()
	eng := NewEngine(exec, nil, WithParallelism(1))

	require.ErrorIs(t, eng.Enqueue(ids("x")[0]), ErrNotRunning)
	require.ErrorIs(t, eng.RequestStop(), ErrInvalidState)
	require.ErrorIs(t, eng.CloseQueue(), ErrInvalidState)
	require.ErrorIs(t, eng.Configure(0), ErrInvalidParallelism)
	require.ErrorIs(t, eng.Start([]Task{{ID: "empty"}}), ErrEmptyPath)
	require.Equal(t, StateIdle, eng.State())

	require.NoError(t, eng.Start(ids("a")))
	err := eng.Start(ids("b"))
	require.ErrorIs(t, err, ErrInvalidState)
	var ise *InvalidStateError
	require.True(t, errors.As(err, &ise))
	require.Equal(t, StateRunning, ise.State)

	// Configure during a run only affects the next one.
	require.NoError(t, eng.Configure(3))
	require.Equal(t, 1, eng.Snapshot().Parallelism)

	exec.release(exec.nextStarted(t), Succeeded())
	require.NoError(t, eng.CloseQueue())
	require.ErrorIs(t, eng.Enqueue(ids("late")[0]), ErrQueueClosed)
	eng.WaitUntilFinished()

	require.ErrorIs(t, eng.Enqueue(ids("after")[0]), ErrNotRunning)
	require.ErrorIs(t, eng.RequestStop(), ErrInvalidState)
}

func TestEngine_FreshRunAfterFinish(t *testing.T) {
	exec := newGateExecutor()
	runIDs := []string{"run-1", "run-2"}
	var n atomic.Int32
	eng := NewEngine(exec, nil, WithParallelism(1), WithRunIDs(func() string {
		return runIDs[n.Add(1)-1]
	}))

	require.NoError(t, eng.Start(ids("a")))
	exec.nextStarted(t)
	require.NoError(t, eng.RequestStop())
	exec.release("a", Succeeded())
	eng.WaitUntilFinished()
	require.True(t, eng.Snapshot().StopRequested)

	require.NoError(t, eng.Configure(2))
	require.NoError(t, eng.Start(ids("b")))
	stats := eng.Snapshot()
	require.Equal(t, "run-2", stats.RunID)
	require.False(t, stats.StopRequested, "a new run must get a fresh stop signal")
	require.Equal(t, 2, stats.Parallelism)
	require.Empty(t, eng.Unstarted())

	exec.release(exec.nextStarted(t), Succeeded())
	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()
	require.Equal(t, 1, eng.Snapshot().Succeeded)
}

func TestEngine_IdleRunWithNoTasks(t *testing.T) {
	eng := NewEngine(newGateExecutor(), nil, WithParallelism(3))
	require.NoError(t, eng.Start(nil))
	require.Equal(t, 3, eng.Workers())
	require.True(t, eng.Drained())

	require.NoError(t, eng.RequestStop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.WaitContext(ctx))
	require.Equal(t, StateFinished, eng.State())
	require.False(t, eng.Drained())
}

func TestEngine_ExecutorPanicIsLaunchFailure(t *testing.T) {
	exec := ExecutorFunc(func(_ context.Context, task Task) Outcome {
		if task.ID == "boom" {
			panic("kaboom")
		}
		return Succeeded()
	})
	rec := newRecorder()
	eng := NewEngine(exec, rec, WithParallelism(1))

	require.NoError(t, eng.Start(ids("boom", "fine")))
	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()

	require.Equal(t, OutcomeLaunchFailure, rec.result("boom").Outcome.Kind)
	require.True(t, rec.result("fine").Succeeded())
}

func TestEngine_InboxDeliversInOrder(t *testing.T) {
	exec := ExecutorFunc(func(context.Context, Task) Outcome { return Succeeded() })
	inbox := NewInbox()
	eng := NewEngine(exec, inbox, WithParallelism(2))

	require.NoError(t, eng.Start(ids("a", "b", "c", "d")))
	require.NoError(t, eng.CloseQueue())
	go func() {
		eng.WaitUntilFinished()
		inbox.Close()
	}()

	started := make(map[TaskID]bool)
	finished := 0
	sawRunFinished := false
	first := true
	for ev := range inbox.Events() {
		if first {
			require.Equal(t, EventRunStarted, ev.Kind, "run start must precede task events")
			require.Equal(t, 4, ev.Stats.Pending)
			require.Equal(t, StateRunning, ev.Stats.State)
			first = false
			continue
		}
		switch ev.Kind {
		case EventStarted:
			started[ev.Task.ID] = true
		case EventFinished:
			require.True(t, started[ev.Task.ID], "finished event for %s before started", ev.Task.ID)
			finished++
		case EventRunFinished:
			sawRunFinished = true
			require.Equal(t, 4, ev.Stats.Succeeded)
		}
	}
	require.Equal(t, 4, finished)
	require.True(t, sawRunFinished)
}

func TestEngine_NotDrainedWhileTaskExecuting(t *testing.T) {
	exec := newGateExecutor()
	eng := NewEngine(exec, nil, WithParallelism(1))
	require.NoError(t, eng.Start(ids("A")))

	require.Equal(t, TaskID("A"), exec.nextStarted(t))
	require.Equal(t, 0, eng.Pending())
	require.False(t, eng.Drained(), "run with an executing task reported drained")

	exec.release("A", Succeeded())
	require.Eventually(t, eng.Drained, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()
}

func TestEngine_ClockStampsRunAndResults(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	exec := newGateExecutor()
	rec := newRecorder()
	eng := NewEngine(exec, rec, WithParallelism(1), WithClock(func() time.Time { return fixed }))

	require.NoError(t, eng.Start(ids("A")))
	require.Equal(t, TaskID("A"), exec.nextStarted(t))
	require.Equal(t, fixed, eng.Snapshot().StartedAt)

	exec.release("A", Succeeded())
	require.NoError(t, eng.CloseQueue())
	eng.WaitUntilFinished()

	res := rec.result("A")
	require.Equal(t, fixed, res.StartedAt)
	require.Equal(t, fixed, res.FinishedAt)
	require.Equal(t, fixed, eng.Snapshot().FinishedAt)
}
