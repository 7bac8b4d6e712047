// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/jeranaias/batchrun/internal/ui/components"
	"github.com/jeranaias/batchrun/internal/util"
)

// View renders the screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	switch m.mode {
	case modeHelp:
		return m.helpPage.Render(m.width, m.theme.IsDark)
	case modePreview:
		return m.preview.View(m.theme)
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteByte('\n')
	b.WriteString(m.list.View(m.theme))
	b.WriteByte('\n')
	b.WriteString(m.theme.Muted.Render(strings.Repeat("-", max(m.width, 1))))
	b.WriteByte('\n')
	b.WriteString(m.logs.View())
	b.WriteByte('\n')

	switch {
	case m.prompt.Active():
		b.WriteString(m.prompt.View(m.theme))
	case m.mode == modeConfirmQuit:
		b.WriteString(m.theme.Confirm.Render("Scripts are still running. Stop them and quit? (y/n)"))
		b.WriteByte('\n')
	default:
		b.WriteString("\n")
	}
	b.WriteByte('\n')

	b.WriteString(components.RenderStatusBar(m.theme, m.width, components.StatusInfo{
		Message:         m.sess.Status(),
		Stats:           m.sess.Snapshot(),
		Counts:          m.sess.List().Counts(),
		Parallelism:     m.sess.Parallelism(),
		AllowDuplicates: m.sess.List().AllowDuplicates(),
		Spinner:         m.spinner.View(),
	}))
	if m.showHelp {
		b.WriteByte('\n')
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

func (m Model) header() string {
	counts := m.sess.List().Counts()
	sub := fmt.Sprintf("  %s, %d pending, %d failed", util.Plural(counts.Total, "script"), counts.Pending, counts.Failed)
	if n := m.list.Marked(); n > 0 {
		sub += fmt.Sprintf(", %d marked", n)
	}
	if m.focusLog {
		sub += "  [log]"
	}
	return m.theme.Title.Render("batchrun") + m.theme.Subtitle.Render(sub)
}
