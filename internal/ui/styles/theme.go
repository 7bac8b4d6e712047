// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/batchrun/internal/batch"
)

// Theme holds all the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Border   lipgloss.Style

	// ==========================================================================
	// ENTRY LIST STYLES
	// ==========================================================================

	EntryPending lipgloss.Style
	EntryRunning lipgloss.Style
	EntryDone    lipgloss.Style
	EntryFailed  lipgloss.Style
	EntryNotRun  lipgloss.Style
	Cursor       lipgloss.Style
	Marked       lipgloss.Style

	// ==========================================================================
	// LOG AND STATUS STYLES
	// ==========================================================================

	LogLine    lipgloss.Style
	LogWarn    lipgloss.Style
	LogError   lipgloss.Style
	StatusBar  lipgloss.Style
	StatusText lipgloss.Style
	StatusKey  lipgloss.Style
	StatusVal  lipgloss.Style

	// ==========================================================================
	// PROMPT STYLES
	// ==========================================================================

	Prompt      lipgloss.Style
	PromptLabel lipgloss.Style
	Confirm     lipgloss.Style
	Muted       lipgloss.Style
}

// NewTheme creates a theme. mode is "dark", "light" or "auto"; "auto" asks
// the terminal for its background.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	isDark := true
	switch mode {
	case "light":
		isDark = false
	case "auto":
		isDark = termenv.HasDarkBackground()
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	t.Subtitle = lipgloss.NewStyle().Foreground(TextSecondary).Italic(true)
	t.Border = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.EntryPending = lipgloss.NewStyle().Foreground(TextPrimary)
	t.EntryRunning = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.EntryDone = lipgloss.NewStyle().Foreground(TextMuted)
	t.EntryFailed = lipgloss.NewStyle().Foreground(Rose)
	t.EntryNotRun = lipgloss.NewStyle().Foreground(Amber)
	t.Cursor = lipgloss.NewStyle().Background(SurfaceBright).Bold(true)
	t.Marked = lipgloss.NewStyle().Foreground(Purple).Bold(true)

	t.LogLine = lipgloss.NewStyle().Foreground(TextSecondary)
	t.LogWarn = lipgloss.NewStyle().Foreground(Amber)
	t.LogError = lipgloss.NewStyle().Foreground(Rose)
	t.StatusBar = lipgloss.NewStyle().Background(SurfaceDim).Foreground(TextSecondary).Padding(0, 1)
	t.StatusText = lipgloss.NewStyle().Foreground(TextPrimary)
	t.StatusKey = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.StatusVal = lipgloss.NewStyle().Foreground(Emerald)

	t.Prompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.PromptLabel = lipgloss.NewStyle().Foreground(TextSecondary)
	t.Confirm = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// EntryStyle returns the style for an entry in the given status.
func (t *Theme) EntryStyle(s batch.Status) lipgloss.Style {
	switch s {
	case batch.StatusRunning:
		return t.EntryRunning
	case batch.StatusDone:
		return t.EntryDone
	case batch.StatusFailed:
		return t.EntryFailed
	case batch.StatusNotRun:
		return t.EntryNotRun
	default:
		return t.EntryPending
	}
}

// Indicator returns the shape shown before an entry in the given status.
func Indicator(s batch.Status) string {
	switch s {
	case batch.StatusRunning:
		return StatusIndicators.Running
	case batch.StatusDone:
		return StatusIndicators.Done
	case batch.StatusFailed:
		return StatusIndicators.Failed
	case batch.StatusNotRun:
		return StatusIndicators.NotRun
	default:
		return StatusIndicators.Pending
	}
}
