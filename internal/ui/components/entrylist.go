// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/batchrun/internal/batch"
	"github.com/jeranaias/batchrun/internal/tasks"
	"github.com/jeranaias/batchrun/internal/ui/styles"
	"github.com/jeranaias/batchrun/internal/util"
)

// =============================================================================
// ENTRY LIST
// =============================================================================

// EntryList renders the batch list with a cursor and optional marks.
type EntryList struct {
	entries []batch.Entry
	marked  map[tasks.TaskID]bool
	cursor  int
	offset  int
	width   int
	height  int
}

// NewEntryList creates an empty list.
func NewEntryList() *EntryList {
	return &EntryList{marked: make(map[tasks.TaskID]bool)}
}

// SetEntries replaces the rows. The cursor is clamped and marks of entries
// that disappeared are dropped.
func (l *EntryList) SetEntries(entries []batch.Entry) {
	l.entries = entries
	present := make(map[tasks.TaskID]bool, len(entries))
	for _, e := range entries {
		present[e.ID] = true
	}
	for id := range l.marked {
		if !present[id] {
			delete(l.marked, id)
		}
	}
	l.clamp()
}

// SetSize sets the render area.
func (l *EntryList) SetSize(width, height int) {
	l.width, l.height = width, height
	l.clamp()
}

func (l *EntryList) Len() int    { return len(l.entries) }
func (l *EntryList) Cursor() int { return l.cursor }

func (l *EntryList) Up()     { l.cursor--; l.clamp() }
func (l *EntryList) Down()   { l.cursor++; l.clamp() }
func (l *EntryList) Top()    { l.cursor = 0; l.clamp() }
func (l *EntryList) Bottom() { l.cursor = len(l.entries) - 1; l.clamp() }

// Current returns the entry under the cursor.
func (l *EntryList) Current() (batch.Entry, bool) {
	if l.cursor < 0 || l.cursor >= len(l.entries) {
		return batch.Entry{}, false
	}
	return l.entries[l.cursor], true
}

// ToggleMark marks or unmarks the entry under the cursor and moves down.
func (l *EntryList) ToggleMark() {
	e, ok := l.Current()
	if !ok {
		return
	}
	if l.marked[e.ID] {
		delete(l.marked, e.ID)
	} else {
		l.marked[e.ID] = true
	}
	l.Down()
}

// ClearMarks unmarks everything.
func (l *EntryList) ClearMarks() {
	l.marked = make(map[tasks.TaskID]bool)
}

// Marked returns the number of marked entries.
func (l *EntryList) Marked() int { return len(l.marked) }

// Targets returns the marked entries in list order, or the entry under the
// cursor when nothing is marked.
func (l *EntryList) Targets() []tasks.TaskID {
	if len(l.marked) == 0 {
		if e, ok := l.Current(); ok {
			return []tasks.TaskID{e.ID}
		}
		return nil
	}
	ids := make([]tasks.TaskID, 0, len(l.marked))
	for _, e := range l.entries {
		if l.marked[e.ID] {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (l *EntryList) clamp() {
	if l.cursor >= len(l.entries) {
		l.cursor = len(l.entries) - 1
	}
	if l.cursor < 0 {
		l.cursor = 0
	}
	if l.height <= 0 {
		l.offset = 0
		return
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+l.height {
		l.offset = l.cursor - l.height + 1
	}
	if max := len(l.entries) - l.height; l.offset > max {
		l.offset = max
	}
	if l.offset < 0 {
		l.offset = 0
	}
}

// View renders the visible rows.
func (l *EntryList) View(th *styles.Theme) string {
	if len(l.entries) == 0 {
		return th.Muted.Render("No scripts. Press a to add paths or drop files into the watch folder.")
	}

	height := l.height
	if height <= 0 {
		height = len(l.entries)
	}
	end := l.offset + height
	if end > len(l.entries) {
		end = len(l.entries)
	}

	var b strings.Builder
	for i := l.offset; i < end; i++ {
		if i > l.offset {
			b.WriteByte('\n')
		}
		b.WriteString(l.row(th, i))
	}
	return b.String()
}

func (l *EntryList) row(th *styles.Theme, i int) string {
	e := l.entries[i]
	mark := " "
	if l.marked[e.ID] {
		mark = th.Marked.Render("*")
	}
	prefix := mark + styles.Indicator(e.Status) + " "

	text := batch.Display(e)
	if l.width > 3 {
		text = util.PadRight(util.TruncateLeft(text, l.width-3), l.width-3)
	}
	style := th.EntryStyle(e.Status)
	if i == l.cursor {
		style = style.Inherit(th.Cursor)
	}
	return prefix + style.Render(text)
}
