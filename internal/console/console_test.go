// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/batchrun/internal/session"
	"github.com/jeranaias/batchrun/internal/tasks"
)

// =============================================================================
// HELPERS
// =============================================================================

func newConsole(t *testing.T, opts ...session.Option) (*Console, *session.Session, *bytes.Buffer) {
	t.Helper()
	exec := tasks.ExecutorFunc(func(ctx context.Context, task tasks.Task) tasks.Outcome {
		return tasks.Succeeded()
	})
	sess, err := session.New(nil, append([]session.Option{session.WithExecutor(exec)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Close() })

	var out bytes.Buffer
	return New(sess, &out, nil), sess, &out
}

func writeScripts(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return dir, paths
}

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestSplitLine(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a b  c", []string{"a", "b", "c"}},
		{`"my script.sh" b`, []string{"my script.sh", "b"}},
		{`'it''s'`, []string{"its"}},
		{`"say \"hi\""`, []string{`say "hi"`}},
		{`a ""`, []string{"a", ""}},
	}

	for _, tc := range tests {
		got := splitLine(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitLine(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSplitDashes(t *testing.T) {
	tests := []struct {
		raw, before, after string
	}{
		{"a.sh b.sh", "a.sh b.sh", ""},
		{"a.sh -- -v --out x", "a.sh", "-v --out x"},
		{"-- -v", "", "-v"},
		{"a.sh --", "a.sh", ""},
		{"a.sh --verbose", "a.sh --verbose", ""},
	}

	for _, tc := range tests {
		before, after := splitDashes(tc.raw)
		if before != tc.before || after != tc.after {
			t.Errorf("splitDashes(%q) = (%q, %q), want (%q, %q)", tc.raw, before, after, tc.before, tc.after)
		}
	}
}

func TestParsePaths_Braces(t *testing.T) {
	got := parsePaths("{/tmp/my job.sh} /tmp/b.sh")
	want := []string{"/tmp/my job.sh", "/tmp/b.sh"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parsePaths = %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	reg := NewRegistry()

	in, err := reg.Parse("  LS ")
	if err != nil || in.Command == nil || in.Command.Name != "list" {
		t.Errorf("alias ls: %+v, %v", in, err)
	}

	in, err = reg.Parse("args 2 --name 'a b'")
	if err != nil {
		t.Fatal(err)
	}
	if in.Raw != "2 --name 'a b'" {
		t.Errorf("Raw = %q", in.Raw)
	}

	var unknown *UnknownCommandError
	if _, err := reg.Parse("launch"); !errors.As(err, &unknown) {
		t.Errorf("unknown command err = %v", err)
	}

	var invalid *ValidationError
	for _, line := range []string{"rm", "rm x", "parallel 0", "dups maybe"} {
		if _, err := reg.Parse(line); !errors.As(err, &invalid) {
			t.Errorf("Parse(%q) err = %v, want ValidationError", line, err)
		}
	}
}

func TestRegistry_NoDuplicateNames(t *testing.T) {
	reg := NewRegistry()
	seen := map[string]bool{}
	for _, name := range reg.Names() {
		if seen[name] {
			t.Errorf("%q registered twice", name)
		}
		seen[name] = true
	}
	for _, cmd := range reg.All() {
		if cmd.Handler == nil || cmd.Usage == "" {
			t.Errorf("command %q is incomplete", cmd.Name)
		}
	}
}

// =============================================================================
// EXEC TESTS
// =============================================================================

func TestExec_ListEditing(t *testing.T) {
	c, sess, out := newConsole(t)
	_, paths := writeScripts(t, "a.sh", "b.sh", "c.sh")
	ctx := context.Background()

	if err := c.Exec(ctx, "add "+strings.Join(paths, " ")+" -- -v"); err != nil {
		t.Fatal(err)
	}
	if sess.List().Len() != 3 {
		t.Fatalf("len = %d, want 3", sess.List().Len())
	}
	if e, _ := sess.List().At(0); e.Args != "-v" {
		t.Errorf("Args = %q, want -v", e.Args)
	}

	if err := c.Exec(ctx, `args 2 --name "x y"`); err != nil {
		t.Fatal(err)
	}
	if e, _ := sess.List().At(1); e.Args != `--name "x y"` {
		t.Errorf("edited Args = %q", e.Args)
	}

	if err := c.Exec(ctx, "rm 1 3"); err != nil {
		t.Fatal(err)
	}
	if sess.List().Len() != 1 {
		t.Errorf("len after rm = %d, want 1", sess.List().Len())
	}
	if err := c.Exec(ctx, "rm 5"); err == nil {
		t.Error("rm of a missing entry succeeded")
	}

	out.Reset()
	if err := c.Exec(ctx, "list"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "1 "+paths[1]+`  [--name "x y"]`) {
		t.Errorf("list output = %q", out.String())
	}
}

func TestExec_AddSkipsMissing(t *testing.T) {
	c, sess, out := newConsole(t)
	if err := c.Exec(context.Background(), "add /no/such/script.sh"); err != nil {
		t.Fatal(err)
	}
	if sess.List().Len() != 0 {
		t.Error("missing path was added")
	}
	if !strings.Contains(out.String(), "skipped /no/such/script.sh") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExec_AddRejectsBadArgs(t *testing.T) {
	c, sess, _ := newConsole(t)
	_, paths := writeScripts(t, "a.sh")
	if err := c.Exec(context.Background(), "add "+paths[0]+` -- "unterminated`); err == nil {
		t.Error("unbalanced quote accepted")
	}
	if sess.List().Len() != 0 {
		t.Error("entry added despite bad arguments")
	}
}

func TestExec_RunToCompletion(t *testing.T) {
	c, sess, out := newConsole(t, session.WithAutoFinish(true))
	_, paths := writeScripts(t, "a.sh", "b.sh")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, line := range []string{"add " + strings.Join(paths, " "), "start", "wait"} {
		if err := c.Exec(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if !strings.Contains(out.String(), "All tasks processed.") {
		t.Errorf("output = %q", out.String())
	}
	if counts := sess.List().Counts(); counts.Done != 2 {
		t.Errorf("done = %d, want 2", counts.Done)
	}
}

func TestExec_WaitClosesOpenQueue(t *testing.T) {
	c, sess, out := newConsole(t)
	_, paths := writeScripts(t, "a.sh")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, line := range []string{"add " + paths[0], "start", "wait"} {
		if err := c.Exec(ctx, line); err != nil {
			t.Fatalf("%s: %v", line, err)
		}
	}
	if sess.Running() {
		t.Error("run still active after wait returned")
	}
	if !strings.Contains(out.String(), "Queue closed.") {
		t.Errorf("output = %q, want queue close notice", out.String())
	}
	if !strings.Contains(out.String(), "All tasks processed.") {
		t.Errorf("output = %q", out.String())
	}
	if counts := sess.List().Counts(); counts.Done != 1 {
		t.Errorf("done = %d, want 1", counts.Done)
	}
}

func TestExec_WaitWithoutRun(t *testing.T) {
	c, _, out := newConsole(t)
	if err := c.Exec(context.Background(), "wait"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No run in progress.") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExec_Settings(t *testing.T) {
	c, sess, _ := newConsole(t)
	ctx := context.Background()

	if err := c.Exec(ctx, "parallel 6"); err != nil {
		t.Fatal(err)
	}
	if sess.Parallelism() != 6 {
		t.Errorf("parallelism = %d, want 6", sess.Parallelism())
	}
	if err := c.Exec(ctx, "dups ON"); err != nil {
		t.Fatal(err)
	}
	if !sess.List().AllowDuplicates() {
		t.Error("dups on not applied")
	}
	if err := c.Exec(ctx, "dups off"); err != nil {
		t.Fatal(err)
	}
	if sess.List().AllowDuplicates() {
		t.Error("dups off not applied")
	}
}

func TestExec_StopWithoutRun(t *testing.T) {
	c, _, _ := newConsole(t)
	if err := c.Exec(context.Background(), "stop"); err == nil {
		t.Error("stop without a run succeeded")
	}
	if err := c.Exec(context.Background(), "start"); !errors.Is(err, session.ErrNothingToRun) {
		t.Errorf("start on empty list err = %v", err)
	}
}

func TestExec_StatusHelpQuit(t *testing.T) {
	c, _, out := newConsole(t)
	ctx := context.Background()

	if err := c.Exec(ctx, "status"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "max:") {
		t.Errorf("status output = %q", out.String())
	}

	out.Reset()
	if err := c.Exec(ctx, "help"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "add <path...> [-- args]") {
		t.Errorf("help output = %q", out.String())
	}

	if err := c.Exec(ctx, ""); err != nil || c.Quitting() {
		t.Error("blank line had an effect")
	}
	if err := c.Exec(ctx, "exit"); err != nil || !c.Quitting() {
		t.Error("exit did not quit")
	}
}

// =============================================================================
// COMPLETION TESTS
// =============================================================================

func TestComplete(t *testing.T) {
	c, _, _ := newConsole(t)
	dir, _ := writeScripts(t, "alpha.sh", "beta.sh")

	got := c.Complete("sta")
	want := []string{"start", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Complete(sta) = %q, want %q", got, want)
	}

	got = c.Complete("dups o")
	want = []string{"dups off", "dups on"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Complete(dups o) = %q, want %q", got, want)
	}

	prefix := filepath.Join(dir, "al")
	got = c.Complete("add x.sh " + prefix)
	want = []string{"add x.sh " + filepath.Join(dir, "alpha.sh")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Complete(add) = %q, want %q", got, want)
	}

	if got := c.Complete("add a.sh -- " + prefix); got != nil {
		t.Errorf("completed after --: %q", got)
	}
	if got := c.Complete("nosuch x"); got != nil {
		t.Errorf("completed unknown command: %q", got)
	}
}

func TestEventLine(t *testing.T) {
	task := tasks.NewTask("t1", "/s/job.sh", "")
	start := time.Unix(100, 0)

	ok := tasks.Event{Kind: tasks.EventFinished, Result: tasks.Result{
		Task: task, Outcome: tasks.Succeeded(), StartedAt: start, FinishedAt: start.Add(1500 * time.Millisecond),
	}}
	if got := EventLine(ok); got != "[+] job.sh (Code: 0, 1.5s)" {
		t.Errorf("success line = %q", got)
	}

	failed := tasks.Event{Kind: tasks.EventFinished, Result: tasks.Result{
		Task: task, Outcome: tasks.ExitFailure(task.Path, 3), StartedAt: start, FinishedAt: start,
	}}
	if got := EventLine(failed); got != "[x] job.sh (Code: 3, 0s)" {
		t.Errorf("failure line = %q", got)
	}

	if got := EventLine(tasks.Event{Kind: tasks.EventStarted}); got != "" {
		t.Errorf("start event rendered as %q", got)
	}
}
