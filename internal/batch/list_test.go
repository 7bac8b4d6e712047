// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/batchrun/internal/tasks"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"), 0755))
	return p
}

func TestList_AddSkipsMissingAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.sh")
	b := touch(t, dir, "b.sh")

	l := New(false)
	rep := l.Add([]string{a, b, filepath.Join(dir, "ghost.sh"), a, dir}, "-x")

	require.Len(t, rep.Added, 2)
	require.Equal(t, a, rep.Added[0].Path)
	require.Equal(t, "-x", rep.Added[0].Args)
	require.Equal(t, StatusPending, rep.Added[0].Status)
	require.NotEmpty(t, rep.Added[0].ID)
	require.NotEqual(t, rep.Added[0].ID, rep.Added[1].ID)

	require.Equal(t, []Skipped{
		{Path: filepath.Join(dir, "ghost.sh"), Reason: SkipMissing},
		{Path: a, Reason: SkipDuplicate},
		{Path: dir, Reason: SkipDirectory},
	}, rep.Skipped)

	// Already-present paths are duplicates on later adds as well.
	rep = l.Add([]string{b}, "")
	require.Empty(t, rep.Added)
	require.Equal(t, 2, l.Len())
}

func TestList_AllowDuplicates(t *testing.T) {
	a := touch(t, t.TempDir(), "a.sh")
	l := New(false)
	l.Add([]string{a}, "")

	l.SetAllowDuplicates(true)
	require.True(t, l.AllowDuplicates())
	rep := l.Add([]string{a, a}, "second")
	require.Len(t, rep.Added, 2)
	require.Equal(t, 3, l.Len())
}

func TestList_RelativePathsBecomeAbsolute(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "rel.sh")

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	rep := New(false).Add([]string{"rel.sh"}, "")
	require.Len(t, rep.Added, 1)
	require.True(t, filepath.IsAbs(rep.Added[0].Path))
	require.Equal(t, "rel.sh", rep.Added[0].Name())
}

func TestList_RemoveAndEditArgs(t *testing.T) {
	dir := t.TempDir()
	l := New(false)
	rep := l.Add([]string{touch(t, dir, "a.sh"), touch(t, dir, "b.sh"), touch(t, dir, "c.sh")}, "")
	a, b, c := rep.Added[0].ID, rep.Added[1].ID, rep.Added[2].ID

	removed := l.Remove(b)
	require.Len(t, removed, 1)
	require.Equal(t, 2, l.Len())
	require.Equal(t, 1, l.Index(c))
	_, ok := l.Get(b)
	require.False(t, ok)

	require.NoError(t, l.EditArgs("--new", a, c))
	task, ok := l.Task(a)
	require.True(t, ok)
	require.Equal(t, "--new", task.Args)

	err := l.EditArgs("x", b)
	require.True(t, errors.Is(err, ErrUnknownEntry))
}

func TestList_ApplyEvents(t *testing.T) {
	dir := t.TempDir()
	l := New(false)
	rep := l.Add([]string{touch(t, dir, "ok.sh"), touch(t, dir, "bad.sh"), touch(t, dir, "gone.sh"), touch(t, dir, "late.sh")}, "")
	ok, bad, gone, late := rep.Added[0], rep.Added[1], rep.Added[2], rep.Added[3]

	require.True(t, l.Apply(tasks.Event{Kind: tasks.EventStarted, Task: ok.Task()}))
	e, _ := l.Get(ok.ID)
	require.Equal(t, StatusRunning, e.Status)

	require.True(t, l.Apply(tasks.Event{Kind: tasks.EventFinished, Task: ok.Task(),
		Result: tasks.Result{Task: ok.Task(), Outcome: tasks.ExitFailure(ok.Path, 3)}}))
	e, _ = l.Get(ok.ID)
	require.Equal(t, StatusDone, e.Status)
	require.Equal(t, 3, e.ExitCode)
	require.True(t, e.Unsuccessful())
	require.Equal(t, ok.Path+" (Done, Code: 3)", Display(e))

	l.Apply(tasks.Event{Kind: tasks.EventFinished, Task: bad.Task(),
		Result: tasks.Result{Task: bad.Task(), Outcome: tasks.LaunchFailure(bad.Path, errors.New("exec format error"))}})
	e, _ = l.Get(bad.ID)
	require.Equal(t, StatusFailed, e.Status)
	require.Equal(t, bad.Path+" (Failed: LaunchError: exec format error)", Display(e))

	l.Apply(tasks.Event{Kind: tasks.EventNotRun, Task: late.Task()})
	e, _ = l.Get(late.ID)
	require.Equal(t, StatusNotRun, e.Status)

	// Events for removed entries are ignored.
	l.Remove(gone.ID)
	require.False(t, l.Apply(tasks.Event{Kind: tasks.EventStarted, Task: gone.Task()}))
	require.False(t, l.Apply(tasks.Event{Kind: tasks.EventRunFinished}))

	require.Equal(t, Counts{Total: 3, Done: 1, Failed: 1, NotRun: 1}, l.Counts())
}

func TestList_StartBacklog(t *testing.T) {
	dir := t.TempDir()
	l := New(false)
	rep := l.Add([]string{touch(t, dir, "a.sh"), touch(t, dir, "b.sh"), touch(t, dir, "c.sh")}, "-v")
	a, b, c := rep.Added[0], rep.Added[1], rep.Added[2]

	l.Apply(tasks.Event{Kind: tasks.EventFinished, Task: a.Task(), Result: tasks.Result{Outcome: tasks.Succeeded()}})
	l.Apply(tasks.Event{Kind: tasks.EventStarted, Task: b.Task()})
	l.Apply(tasks.Event{Kind: tasks.EventNotRun, Task: c.Task()})

	backlog := l.StartBacklog()
	require.Len(t, backlog, 3)
	require.Equal(t, []tasks.TaskID{a.ID, b.ID, c.ID}, []tasks.TaskID{backlog[0].ID, backlog[1].ID, backlog[2].ID})
	require.Equal(t, "-v", backlog[2].Args)

	ea, _ := l.Get(a.ID)
	eb, _ := l.Get(b.ID)
	ec, _ := l.Get(c.ID)
	require.Equal(t, StatusDone, ea.Status, "finished entries keep their result until re-run")
	require.Equal(t, StatusPending, eb.Status)
	require.Equal(t, StatusPending, ec.Status)
}

func TestDisplay(t *testing.T) {
	e := Entry{Path: "/jobs/a.sh"}
	require.Equal(t, "/jobs/a.sh", Display(e))
	e.Args = "-n 2"
	require.Equal(t, "/jobs/a.sh  [-n 2]", Display(e))
	e.Status = StatusDone
	require.Equal(t, "/jobs/a.sh  [-n 2] (Done, Code: 0)", Display(e))
	e.Status = StatusRunning
	require.Equal(t, "/jobs/a.sh  [-n 2] (Running)", Display(e))
}

func TestParseDropped(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: []string{}},
		{in: "/a.sh /b.py", want: []string{"/a.sh", "/b.py"}},
		{in: "{/my scripts/a.sh}", want: []string{"/my scripts/a.sh"}},
		{in: "{/my scripts/a.sh} /b.sh {/c d.sh}", want: []string{"/my scripts/a.sh", "/c d.sh", "/b.sh"}},
		{in: "{} /x.sh", want: []string{"/x.sh"}},
		{in: "  /only-open{ brace ", want: []string{"/only-open{", "brace"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, ParseDropped(tt.in))
		})
	}
}
