// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/ui/components"
)

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.refresh()
		return m, waitEvent(m.sess.Events())

	case eventsClosedMsg:
		return m, nil

	case logMsg:
		m.logs.Append(msg.lines...)
		return m, m.sink.wait()

	case DropMsg:
		m.add(msg.Paths)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m, m.logs.Update(msg)
	}
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt.Active() {
		return m.handlePromptKey(msg)
	}

	switch m.mode {
	case modeConfirmQuit:
		if key.Matches(msg, m.keys.Confirm) {
			return m.quit()
		}
		m.mode = modeList
		return m, nil

	case modeHelp:
		if key.Matches(msg, m.keys.Cancel, m.keys.Help, m.keys.Quit) {
			m.mode = modeList
		}
		return m, nil

	case modePreview:
		if key.Matches(msg, m.keys.Cancel, m.keys.Preview, m.keys.Quit) {
			m.mode = modeList
			return m, nil
		}
		return m, m.preview.Update(msg)
	}

	if m.focusLog {
		if key.Matches(msg, m.keys.FocusLog, m.keys.Cancel) {
			m.focusLog = false
			return m, nil
		}
		if !key.Matches(msg, m.keys.Quit) {
			return m, m.logs.Update(msg)
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.sess.Running() {
			m.mode = modeConfirmQuit
			return m, nil
		}
		return m.quit()

	case key.Matches(msg, m.keys.Up):
		m.list.Up()
	case key.Matches(msg, m.keys.Down):
		m.list.Down()
	case key.Matches(msg, m.keys.Top):
		m.list.Top()
	case key.Matches(msg, m.keys.Bottom):
		m.list.Bottom()
	case key.Matches(msg, m.keys.Mark):
		m.list.ToggleMark()

	case key.Matches(msg, m.keys.Add):
		return m, m.prompt.Open(components.PromptAdd,
			"Add paths (wrap paths containing spaces in {braces}):", "")

	case key.Matches(msg, m.keys.Edit):
		targets := m.list.Targets()
		if len(targets) == 0 {
			return m, nil
		}
		current, _ := m.sess.List().Get(targets[0])
		return m, m.prompt.Open(components.PromptEditArgs,
			"Arguments for "+strconv.Itoa(len(targets))+" script(s):", current.Args)

	case key.Matches(msg, m.keys.Delete):
		if targets := m.list.Targets(); len(targets) > 0 {
			m.sess.Remove(targets...)
			m.list.ClearMarks()
			m.refresh()
		}

	case key.Matches(msg, m.keys.Dups):
		m.sess.SetAllowDuplicates(!m.sess.List().AllowDuplicates())

	case key.Matches(msg, m.keys.Start):
		m.report("start", m.sess.Start())
		m.refresh()
	case key.Matches(msg, m.keys.Stop):
		m.report("stop", m.sess.Stop())
	case key.Matches(msg, m.keys.Finish):
		m.report("finish", m.sess.Finish())

	case key.Matches(msg, m.keys.More):
		m.report("set max parallel", m.sess.SetParallelism(m.sess.Parallelism()+1))
	case key.Matches(msg, m.keys.Less):
		if p := m.sess.Parallelism(); p > 1 {
			m.report("set max parallel", m.sess.SetParallelism(p-1))
		}

	case key.Matches(msg, m.keys.SetMax):
		return m, m.prompt.Open(components.PromptParallelism,
			"Max parallel for the next run:", strconv.Itoa(m.sess.Parallelism()))

	case key.Matches(msg, m.keys.Preview):
		if e, ok := m.list.Current(); ok {
			if err := m.preview.Open(e.Path, m.theme.IsDark); err != nil {
				m.report("preview", err)
			} else {
				m.mode = modePreview
			}
		}

	case key.Matches(msg, m.keys.FocusLog):
		m.focusLog = true

	case key.Matches(msg, m.keys.Help):
		m.mode = modeHelp
	}
	return m, nil
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.prompt.Close()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		m.submit(m.prompt.Kind, m.prompt.Value())
		m.prompt.Close()
		return m, nil
	}
	return m, m.prompt.Update(msg)
}

func (m *Model) submit(kind components.PromptKind, value string) {
	switch kind {
	case components.PromptAdd:
		m.add(batch.ParseDropped(value))
	case components.PromptEditArgs:
		m.report("edit arguments", m.sess.EditArgs(strings.TrimSpace(value), m.list.Targets()...))
		m.list.ClearMarks()
		m.refresh()
	case components.PromptParallelism:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			n = 0
		}
		m.report("set max parallel", m.sess.SetParallelism(n))
	}
}

func (m *Model) add(paths []string) {
	if len(paths) == 0 {
		return
	}
	m.sess.Add(paths, m.sess.DefaultArgs())
	m.refresh()
}

// quit requests stop when a run is active and ends the program. The caller
// of Run waits for running scripts when it closes the session.
func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.sess.Running() && !m.sess.Snapshot().StopRequested {
		m.report("stop", m.sess.Stop())
	}
	m.quitting = true
	return m, tea.Quit
}

// report logs a failed operation into the log pane.
func (m *Model) report(op string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, tasks.ErrInvalidParallelism) {
		m.log.Warn(op+" failed", logging.F("error", err))
		return
	}
	m.log.Error(op+" failed", logging.F("error", err))
}
