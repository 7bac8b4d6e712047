// styles.go - Shared styling for batchrun command output.
//
// Colors are disabled for non-TTY output and when NO_COLOR is set;
// FORCE_COLOR overrides the detection.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// init configures the lipgloss color profile for the terminal.
func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles and headers
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")) // Cyan

	// SectionStyle is used for section headers within commands
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")) // White

	// LabelStyle is used for field labels, 14 columns wide
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")). // Light gray
			Width(14)

	// ValueStyle is used for regular values and text
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Off-white

	// SuccessStyle is used for succeeded tasks
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")). // Green
			Bold(true)

	// ErrorStyle is used for errors and failed tasks
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// WarningStyle is used for tasks that never ran and stopped runs
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // Yellow/Orange

	// DimStyle is used for secondary information and hints
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242")) // Dim gray

	// SeparatorStyle is used for visual separators
	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // Dark gray
)

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// RenderSeparator renders a horizontal separator line. Default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return RenderConditional(SeparatorStyle, strings.Repeat("=", w))
}

// RenderOutcome renders a journal outcome ("succeeded", "failed",
// "launch_failed", "not_run") as a colored tag.
func RenderOutcome(outcome string) string {
	switch strings.ToLower(outcome) {
	case "succeeded", "ok", "completed":
		return RenderConditional(SuccessStyle, "[OK]")
	case "failed", "launch_failed":
		return RenderConditional(ErrorStyle, "[FAIL]")
	case "not_run", "stopped":
		return RenderConditional(WarningStyle, "[SKIP]")
	default:
		return RenderConditional(DimStyle, "["+strings.ToUpper(outcome)+"]")
	}
}

// RenderLabel renders a label padded to the label width.
func RenderLabel(label string) string {
	if !ColorsEnabled() {
		return LabelStyle.Copy().UnsetForeground().Render(label)
	}
	return LabelStyle.Render(label)
}

// RenderConditional renders text with style if colors are enabled,
// otherwise returns the text unmodified.
func RenderConditional(style lipgloss.Style, text string) string {
	if !ColorsEnabled() {
		return text
	}
	return style.Render(text)
}
