// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/batchrun/internal/ui/styles"
)

// DefaultLogLines is how many lines the log pane keeps.
const DefaultLogLines = 1000

// LogPane is a scrollable view of recent log lines. It follows the tail
// unless the user scrolled up.
type LogPane struct {
	vp    viewport.Model
	lines []string
	max   int
	theme *styles.Theme
}

// NewLogPane creates a pane keeping at most max lines (DefaultLogLines if <= 0).
func NewLogPane(th *styles.Theme, max int) *LogPane {
	if max <= 0 {
		max = DefaultLogLines
	}
	return &LogPane{vp: viewport.New(0, 0), max: max, theme: th}
}

// Append adds lines at the bottom.
func (p *LogPane) Append(lines ...string) {
	if len(lines) == 0 {
		return
	}
	follow := p.vp.AtBottom() || len(p.lines) == 0
	p.lines = append(p.lines, lines...)
	if over := len(p.lines) - p.max; over > 0 {
		p.lines = append([]string(nil), p.lines[over:]...)
	}
	p.refresh()
	if follow {
		p.vp.GotoBottom()
	}
}

// Lines returns the kept lines.
func (p *LogPane) Lines() []string {
	return append([]string(nil), p.lines...)
}

// SetSize sets the pane dimensions.
func (p *LogPane) SetSize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
	p.refresh()
	p.vp.GotoBottom()
}

// Update forwards scrolling keys and mouse events to the viewport.
func (p *LogPane) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	return cmd
}

// View renders the pane.
func (p *LogPane) View() string {
	return p.vp.View()
}

func (p *LogPane) refresh() {
	rendered := make([]string, len(p.lines))
	for i, line := range p.lines {
		switch {
		case strings.HasPrefix(line, "[ERROR]"):
			rendered[i] = p.theme.LogError.Render(line)
		case strings.HasPrefix(line, "[WARN]"):
			rendered[i] = p.theme.LogWarn.Render(line)
		default:
			rendered[i] = p.theme.LogLine.Render(line)
		}
	}
	p.vp.SetContent(strings.Join(rendered, "\n"))
}
