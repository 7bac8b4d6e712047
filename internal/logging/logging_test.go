// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	line := Format(LevelInfo, "task started", F("task", "a.sh"), F("worker", 2))
	require.Equal(t, "[INFO] task started {task: a.sh, worker: 2}", line)
	require.Equal(t, "[WARN] plain", Format(LevelWarn, "plain"))
}

func TestStdLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarn)

	l.Debug("hidden")
	l.Info("hidden too")
	l.Warn("shown", F("k", "v"))
	l.Error("also shown")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "[WARN] shown {k: v}")
	require.Contains(t, out, "[ERROR] also shown")

	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	require.Contains(t, buf.String(), "[DEBUG] now visible")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFuncLogger(t *testing.T) {
	var lines []string
	l := FuncLogger{Min: LevelInfo, Sink: func(_ Level, line string) {
		lines = append(lines, line)
	}}
	l.Debug("skip")
	l.Info("keep")
	require.Len(t, lines, 1)
	require.True(t, strings.HasSuffix(lines[0], "keep"))

	// A zero FuncLogger must be safe to use.
	FuncLogger{}.Error("nothing")
	Nop().Error("nothing")
}
