// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// maxFileCompletions caps the candidates listed for one path.
const maxFileCompletions = 50

// Complete returns full-line completions of line for the prompt.
func (c *Console) Complete(line string) []string {
	end := strings.IndexAny(line, " \t")
	if end == -1 {
		return completeFromList(c.reg.Names(), line, "")
	}

	cmd := c.reg.Get(strings.ToLower(line[:end]))
	if cmd == nil {
		return nil
	}

	start := strings.LastIndexAny(line, " \t") + 1
	head, partial := line[:start], line[start:]
	argIndex := len(strings.Fields(line[end:start]))

	var def ArgDef
	switch {
	case cmd.Name == "add":
		if strings.Contains(" "+line[end:start], " -- ") {
			return nil
		}
		def = ArgDef{Type: ArgFile}
	case cmd.Name == "rm":
		def = ArgDef{Type: ArgIndex}
	case argIndex < len(cmd.Args):
		def = cmd.Args[argIndex]
	default:
		return nil
	}

	switch def.Type {
	case ArgFile:
		return completeFiles(partial, head)
	case ArgEnum:
		return completeFromList(def.Values, partial, head)
	case ArgIndex:
		n := c.sess.List().Len()
		values := make([]string, n)
		for i := range values {
			values[i] = strconv.Itoa(i + 1)
		}
		return completeFromList(values, partial, head)
	}
	return nil
}

func completeFromList(values []string, partial, head string) []string {
	var out []string
	lower := strings.ToLower(partial)
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(v), lower) {
			out = append(out, head+v)
		}
	}
	return out
}

// completeFiles lists paths starting with partial. Directories end in a
// separator so completion can continue into them.
func completeFiles(partial, head string) []string {
	matches, err := filepath.Glob(globEscape(partial) + "*")
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	if len(matches) > maxFileCompletions {
		matches = matches[:maxFileCompletions]
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			m += string(filepath.Separator)
		}
		if strings.ContainsAny(m, " \t") {
			m = `"` + m + `"`
		}
		out = append(out, head+m)
	}
	return out
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}
