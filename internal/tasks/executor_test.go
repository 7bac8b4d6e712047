// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available on windows")
	}
}

func TestProcessExecutor_Outcomes(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	exec := NewProcessExecutor()

	tests := []struct {
		name     string
		task     Task
		wantKind OutcomeKind
		wantCode int
	}{
		{
			name:     "exit zero",
			task:     NewTask("ok", writeScript(t, dir, "ok.sh", "exit 0"), ""),
			wantKind: OutcomeSucceeded,
			wantCode: 0,
		},
		{
			name:     "exit three",
			task:     NewTask("fail", writeScript(t, dir, "fail.sh", "exit 3"), ""),
			wantKind: OutcomeExitFailure,
			wantCode: 3,
		},
		{
			name:     "quoted args reach the script",
			task:     NewTask("args", writeScript(t, dir, "args.sh", `[ "$1" = "hello world" ] && [ "$2" = "x" ] || exit 7`), `"hello world" x`),
			wantKind: OutcomeSucceeded,
			wantCode: 0,
		},
		{
			name:     "missing file",
			task:     NewTask("missing", filepath.Join(dir, "nope.sh"), ""),
			wantKind: OutcomeLaunchFailure,
			wantCode: -1,
		},
		{
			name:     "directory",
			task:     NewTask("dir", dir, ""),
			wantKind: OutcomeLaunchFailure,
			wantCode: -1,
		},
		{
			name:     "bad quoting",
			task:     NewTask("quote", writeScript(t, dir, "q.sh", "exit 0"), `"unterminated`),
			wantKind: OutcomeLaunchFailure,
			wantCode: -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := exec.Run(context.Background(), tt.task)
			require.Equal(t, tt.wantKind, out.Kind, "err: %v", out.Err)
			require.Equal(t, tt.wantCode, out.ExitCode)
			switch tt.wantKind {
			case OutcomeSucceeded:
				require.NoError(t, out.Err)
			case OutcomeExitFailure:
				var nz *NonZeroExitError
				require.True(t, errors.As(out.Err, &nz))
			case OutcomeLaunchFailure:
				var le *LaunchError
				require.True(t, errors.As(out.Err, &le))
				require.Equal(t, tt.task.Path, le.Path)
			}
		})
	}
}

func TestProcessExecutor_NonExecutableWithoutInterpreter(t *testing.T) {
	skipOnWindows(t)
	path := filepath.Join(t.TempDir(), "plainfile")
	require.NoError(t, os.WriteFile(path, []byte("not a program"), 0644))

	out := NewProcessExecutor().Run(context.Background(), NewTask("p", path, ""))
	require.Equal(t, OutcomeLaunchFailure, out.Kind)
}

func TestProcessExecutor_ScriptDirAndEnv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	script := writeScript(t, dir, "where.sh", `[ "$(pwd -P)" = "$EXPECT_DIR" ] && [ "$BATCH_FLAG" = "on" ] || exit 9`)

	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	exec := NewProcessExecutor()
	exec.UseScriptDir = true
	exec.Env = []string{"EXPECT_DIR=" + resolved, "BATCH_FLAG=on"}

	out := exec.Run(context.Background(), NewTask("w", script, ""))
	require.Equal(t, OutcomeSucceeded, out.Kind, "err: %v", out.Err)
}

func TestProcessExecutor_CommandUsesInterpreter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0644))

	exec := &ProcessExecutor{Interpreters: map[string][]string{".py": {"python3", "-u"}}}
	cmd, err := exec.Command(context.Background(), NewTask("py", path, "--flag value"))
	require.NoError(t, err)
	require.Equal(t, []string{"python3", "-u", path, "--flag", "value"}, cmd.Args)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "a b  c", want: []string{"a", "b", "c"}},
		{in: `"two words" 'single quoted'`, want: []string{"two words", "single quoted"}},
		{in: `"open`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SplitArgs(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestOutcome_Reason(t *testing.T) {
	require.Equal(t, "Code: 0", Succeeded().Reason())
	require.Equal(t, "Code: 2", ExitFailure("/x", 2).Reason())
	require.Equal(t, "LaunchError: boom", LaunchFailure("/x", errors.New("boom")).Reason())
	require.True(t, LaunchFailure("/x", nil).Failed())
	require.Equal(t, "launch_failed", OutcomeLaunchFailure.String())
}
