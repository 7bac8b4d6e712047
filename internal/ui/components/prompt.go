// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/batchrun/internal/ui/styles"
)

// PromptKind says what a submitted prompt value is for.
type PromptKind int

const (
	PromptNone PromptKind = iota
	PromptAdd
	PromptEditArgs
	PromptParallelism
)

// Prompt is a one-line input shown above the status bar.
type Prompt struct {
	Kind  PromptKind
	Label string
	input textinput.Model
}

// NewPrompt creates a closed prompt.
func NewPrompt() *Prompt {
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 4096
	return &Prompt{input: in}
}

// Open shows the prompt with an initial value.
func (p *Prompt) Open(kind PromptKind, label, value string) tea.Cmd {
	p.Kind = kind
	p.Label = label
	p.input.SetValue(value)
	p.input.CursorEnd()
	return p.input.Focus()
}

// Close hides the prompt.
func (p *Prompt) Close() {
	p.Kind = PromptNone
	p.Label = ""
	p.input.Blur()
	p.input.SetValue("")
}

// Active reports whether the prompt is shown.
func (p *Prompt) Active() bool { return p.Kind != PromptNone }

// Value returns the typed text.
func (p *Prompt) Value() string { return p.input.Value() }

// SetWidth sets the input width.
func (p *Prompt) SetWidth(w int) {
	p.input.Width = w - len(p.input.Prompt) - 1
}

// Update forwards editing keys to the input.
func (p *Prompt) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

// View renders the label and the input.
func (p *Prompt) View(th *styles.Theme) string {
	if !p.Active() {
		return ""
	}
	p.input.PromptStyle = th.Prompt
	return th.PromptLabel.Render(p.Label) + "\n" + p.input.View()
}
