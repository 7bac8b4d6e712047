// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/glamour"
)

// HelpMarkdown is the source of the help page.
const HelpMarkdown = `# batchrun

Runs every script in the list with at most **max** of them at a time.

## Keys

| Key | Action |
|-----|--------|
| a | add paths (quote paths with spaces in {braces}) |
| e | edit arguments of the marked or selected scripts |
| d | remove the marked or selected scripts |
| space | mark / unmark |
| D | toggle duplicate paths |
| s | start a run with the whole list |
| x | stop: running scripts finish, nothing new starts |
| c | finish: run what is queued, then end |
| + / - | change max parallel for the next run |
| m | type max parallel |
| p | preview the selected script |
| tab | scroll the log pane |
| ? | this help |
| q | quit (asks first while a run is active) |

## Colors

Running scripts are cyan, finished ones gray, launch failures red and scripts
left queued by a stop amber. Scripts added while a run is active join it.
`

// Help renders HelpMarkdown and caches the result per width and background.
type Help struct {
	width    int
	dark     bool
	rendered string
}

// Render returns the help page for the given width.
func (h *Help) Render(width int, dark bool) string {
	if width < 20 {
		width = 20
	}
	if h.rendered != "" && h.width == width && h.dark == dark {
		return h.rendered
	}
	h.width, h.dark = width, dark
	h.rendered = RenderMarkdown(HelpMarkdown, width, dark)
	return h.rendered
}

// RenderMarkdown renders md for the terminal, returning md unchanged when the
// renderer fails.
func RenderMarkdown(md string, width int, dark bool) string {
	style := "dark"
	if !dark {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
