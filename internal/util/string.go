// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strconv"

	"github.com/mattn/go-runewidth"
)

// TruncateWidth truncates s to at most maxWidth terminal columns, appending
// "..." when something was cut. Wide (CJK) characters count as two columns.
func TruncateWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(s, maxWidth, "")
	}
	return runewidth.Truncate(s, maxWidth, "...")
}

// TruncateLeft keeps the right-most columns of s, prefixing "..." when cut.
// Paths read better this way: the file name survives.
func TruncateLeft(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return reverse(runewidth.Truncate(reverse(s), maxWidth, ""))
	}
	return "..." + reverse(runewidth.Truncate(reverse(s), maxWidth-3, ""))
}

// PadRight pads s with spaces to width columns. Longer strings are truncated.
func PadRight(s string, width int) string {
	return runewidth.FillRight(TruncateWidth(s, width), width)
}

// Plural returns "1 task" / "3 tasks".
func Plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
