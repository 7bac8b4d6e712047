// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/batchrun/internal/logging"
	"github.com/jeranaias/batchrun/internal/session"
	"github.com/jeranaias/batchrun/internal/ui/components"
	"github.com/jeranaias/batchrun/internal/ui/styles"
)

// mode is what the main area shows.
type mode int

const (
	modeList mode = iota
	modeHelp
	modePreview
	modeConfirmQuit
)

// Options configures the app model.
type Options struct {
	// Theme is "dark", "light" or "auto"
	Theme string
	// ShowHelp shows the key hints footer
	ShowHelp bool
	// Sink receives the session's log lines; nil creates one
	Sink *LogSink
	// Log is where the model reports failed operations; nil logs into Sink
	Log logging.Logger
}

// Model is the Bubble Tea model of the batch view.
type Model struct {
	sess  *session.Session
	theme *styles.Theme
	keys  KeyMap
	sink  *LogSink
	log   logging.Logger

	list     *components.EntryList
	logs     *components.LogPane
	prompt   *components.Prompt
	preview  *components.Preview
	helpPage *components.Help
	help     help.Model
	spinner  spinner.Model

	mode     mode
	focusLog bool
	showHelp bool
	width    int
	height   int
	quitting bool
}

// New creates the model for sess.
func New(sess *session.Session, opts Options) Model {
	th := styles.NewTheme(opts.Theme)
	sink := opts.Sink
	if sink == nil {
		sink = NewLogSink()
	}
	log := opts.Log
	if log == nil {
		log = sink.Logger(logging.LevelInfo)
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = th.EntryRunning

	m := Model{
		sess:     sess,
		theme:    th,
		keys:     DefaultKeyMap(),
		sink:     sink,
		log:      log,
		list:     components.NewEntryList(),
		logs:     components.NewLogPane(th, components.DefaultLogLines),
		prompt:   components.NewPrompt(),
		preview:  components.NewPreview(),
		helpPage: &components.Help{},
		help:     help.New(),
		spinner:  sp,
		showHelp: opts.ShowHelp,
	}
	m.refresh()
	return m
}

// Init starts the event, log and spinner loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitEvent(m.sess.Events()),
		m.sink.wait(),
		m.spinner.Tick,
	)
}

// Quitting reports whether the user asked to quit.
func (m Model) Quitting() bool { return m.quitting }

// refresh copies the session's list into the list component.
func (m *Model) refresh() {
	m.list.SetEntries(m.sess.Entries())
}

// layout sizes every component for the current window.
func (m *Model) layout() {
	footer := 1 // status bar
	if m.showHelp {
		footer++
	}
	const header, separator, promptArea = 1, 1, 2

	rest := m.height - header - separator - promptArea - footer
	if rest < 2 {
		rest = 2
	}
	listH := rest * 3 / 5
	if listH < 1 {
		listH = 1
	}
	logH := rest - listH
	if logH < 1 {
		logH = 1
	}

	m.list.SetSize(m.width, listH)
	m.logs.SetSize(m.width, logH)
	m.prompt.SetWidth(m.width)
	m.preview.SetSize(m.width, m.height-2)
	m.help.Width = m.width
}
