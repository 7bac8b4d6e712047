// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/tasks"
)

// =============================================================================
// MESSAGES
// =============================================================================

// DropMsg adds paths to the list as if they were typed into the add prompt.
// The drop folder watcher sends it with Program.Send.
type DropMsg struct {
	Paths []string
}

type eventMsg struct {
	ev tasks.Event
}

type eventsClosedMsg struct{}

type logMsg struct {
	lines []string
}

// waitEvent delivers the next session event.
func waitEvent(ch <-chan tasks.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{ev: ev}
	}
}

// =============================================================================
// LOG SINK
// =============================================================================

// LogSink collects log lines from any goroutine for the log pane. Writers
// never block.
type LogSink struct {
	mu     sync.Mutex
	lines  []string
	notify chan struct{}
}

// NewLogSink creates an empty sink.
func NewLogSink() *LogSink {
	return &LogSink{notify: make(chan struct{}, 1)}
}

// Logger returns a Logger writing into the sink.
func (s *LogSink) Logger(min logging.Level) logging.Logger {
	return logging.FuncLogger{Min: min, Sink: s.write}
}

func (s *LogSink) write(_ logging.Level, line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Drain returns and clears the buffered lines.
func (s *LogSink) Drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.lines
	s.lines = nil
	return lines
}

// wait delivers the lines written since the last delivery.
func (s *LogSink) wait() tea.Cmd {
	return func() tea.Msg {
		<-s.notify
		return logMsg{lines: s.Drain()}
	}
}
