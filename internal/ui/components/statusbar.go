// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/ui/styles"
	"github.com/jeranaias/batchrun/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusInfo is everything the status bar shows.
type StatusInfo struct {
	Message         string
	Stats           tasks.Stats
	Counts          batch.Counts
	Parallelism     int
	AllowDuplicates bool
	Spinner         string
}

// RenderStatusBar renders the bottom line at the given width: the status text
// on the left, counters on the right. The text is truncated first.
func RenderStatusBar(th *styles.Theme, width int, info StatusInfo) string {
	dups := "off"
	if info.AllowDuplicates {
		dups = "on"
	}
	segments := []string{
		th.StatusKey.Render("state ") + th.StatusVal.Render(runLabel(info.Stats)),
		th.StatusKey.Render("max ") + th.StatusVal.Render(fmt.Sprint(info.Parallelism)),
		th.StatusKey.Render("dups ") + th.StatusVal.Render(dups),
		th.StatusKey.Render("done ") + th.StatusVal.Render(fmt.Sprintf("%d/%d", info.Counts.Done+info.Counts.Failed, info.Counts.Total)),
	}
	right := strings.Join(segments, "  ")

	left := info.Message
	if info.Spinner != "" && info.Stats.State.Active() {
		left = info.Spinner + " " + left
	}

	inner := width - 2 // StatusBar padding
	room := inner - lipgloss.Width(right) - 2
	if room < 0 {
		room = 0
	}
	left = util.PadRight(left, room)
	return th.StatusBar.Width(width).Render(th.StatusText.Render(left) + "  " + right)
}

func runLabel(st tasks.Stats) string {
	switch st.State {
	case tasks.StateRunning:
		return fmt.Sprintf("running %d/%d", st.Executing, st.Parallelism)
	case tasks.StateStopping:
		return fmt.Sprintf("stopping %d", st.Executing)
	case tasks.StateFinished:
		return "finished"
	default:
		return "idle"
	}
}
