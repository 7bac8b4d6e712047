// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package batch

import (
	"regexp"
	"strings"
)

var bracedPath = regexp.MustCompile(`\{(.*?)\}`)

// ParseDropped splits a dropped-files string into paths. Paths containing
// spaces arrive wrapped in braces ("{/a b/c.sh} /d.sh"); everything outside
// braces is split on whitespace. Braced paths come first.
func ParseDropped(s string) []string {
	if !strings.Contains(s, "{") || !strings.Contains(s, "}") {
		return strings.Fields(s)
	}

	var paths []string
	for _, m := range bracedPath.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			paths = append(paths, m[1])
		}
	}
	rest := bracedPath.ReplaceAllString(s, "")
	return append(paths, strings.Fields(rest)...)
}
