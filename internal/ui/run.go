// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Program wraps the Bubble Tea program so callers can inject messages.
type Program struct {
	*tea.Program
}

// NewProgram creates a full-screen program for m.
func NewProgram(m Model) *Program {
	return &Program{tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())}
}

// Drop adds paths to the list from any goroutine.
func (p *Program) Drop(paths []string) {
	p.Send(DropMsg{Paths: paths})
}
