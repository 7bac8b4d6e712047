// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package console

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/jeranaias/batchrun/internal/batch"
)

// =============================================================================
// INPUT
// =============================================================================

// Input is one parsed console line.
type Input struct {
	// Command is the matched command
	Command *Command

	// Name is the command word as typed
	Name string

	// Args are the tokens after the command word
	Args []string

	// Raw is the unparsed text after the command word
	Raw string
}

// Parse splits line into a command and its arguments. It returns an
// *UnknownCommandError for an unregistered word and a *ValidationError when
// required arguments are missing or malformed.
func (r *Registry) Parse(line string) (Input, error) {
	line = strings.TrimSpace(line)
	in := Input{}

	end := strings.IndexFunc(line, unicode.IsSpace)
	if end == -1 {
		in.Name = line
	} else {
		in.Name = line[:end]
		in.Raw = strings.TrimSpace(line[end:])
	}
	in.Name = strings.ToLower(in.Name)
	in.Args = splitLine(in.Raw)

	in.Command = r.Get(in.Name)
	if in.Command == nil {
		return in, &UnknownCommandError{Name: in.Name}
	}
	return in, ValidateArgs(in.Command, in.Args)
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

// splitLine splits a line into tokens, respecting single and double quotes.
func splitLine(input string) []string {
	var tokens []string
	var current strings.Builder
	var inSingleQuote, inDoubleQuote, quoted bool

	for i := 0; i < len(input); i++ {
		char := input[i]

		switch {
		case char == '\'' && !inDoubleQuote:
			inSingleQuote = !inSingleQuote
			quoted = true

		case char == '"' && !inSingleQuote:
			inDoubleQuote = !inDoubleQuote
			quoted = true

		case char == '\\' && i+1 < len(input) && inDoubleQuote:
			next := input[i+1]
			if next == '"' || next == '\\' {
				current.WriteByte(next)
				i++
			} else {
				current.WriteByte(char)
			}

		case char < 0x80 && unicode.IsSpace(rune(char)) && !inSingleQuote && !inDoubleQuote:
			if current.Len() > 0 || quoted {
				tokens = append(tokens, current.String())
				current.Reset()
				quoted = false
			}

		default:
			current.WriteByte(char)
		}
	}

	if current.Len() > 0 || quoted {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// splitDashes cuts raw at a standalone "--". after is the text following it
// verbatim, so arguments keep their own quoting.
func splitDashes(raw string) (before, after string) {
	switch {
	case raw == "--":
		return "", ""
	case strings.HasPrefix(raw, "-- "):
		return "", strings.TrimSpace(raw[3:])
	case strings.HasSuffix(raw, " --"):
		return strings.TrimSpace(raw[:len(raw)-3]), ""
	}
	if i := strings.Index(raw, " -- "); i >= 0 {
		return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+4:])
	}
	return raw, ""
}

// parsePaths reads the path list of an add command. Brace-wrapped input is
// read the way dropped paths are; anything else is split like a shell line.
func parsePaths(s string) []string {
	if strings.ContainsRune(s, '{') {
		return batch.ParseDropped(s)
	}
	return splitLine(s)
}

// ValidateArgs checks args against a command's argument definitions.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}

	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{
					Command: cmd.Name,
					Arg:     def.Name,
					Message: "required argument missing",
					Usage:   cmd.Usage,
				}
			}
			continue
		}

		value := args[i]
		switch def.Type {
		case ArgIndex, ArgInt:
			if n, err := strconv.Atoi(value); err != nil || n < 1 {
				return &ValidationError{
					Command: cmd.Name,
					Arg:     def.Name,
					Message: "expected a positive number",
					Got:     value,
					Usage:   cmd.Usage,
				}
			}
		case ArgEnum:
			valid := false
			for _, v := range def.Values {
				if strings.EqualFold(value, v) {
					valid = true
					break
				}
			}
			if !valid {
				return &ValidationError{
					Command: cmd.Name,
					Arg:     def.Name,
					Message: "invalid value",
					Got:     value,
					Usage:   strings.Join(def.Values, "|"),
				}
			}
		}
	}
	return nil
}

// =============================================================================
// ERRORS
// =============================================================================

// UnknownCommandError is returned for a command word nothing is registered under.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "unknown command: " + e.Name + " (type help)"
}

// ValidationError is an argument validation error.
type ValidationError struct {
	Command string
	Arg     string
	Message string
	Got     string
	Usage   string
}

func (e *ValidationError) Error() string {
	msg := e.Command + ": " + e.Message
	if e.Arg != "" {
		msg += " for argument '" + e.Arg + "'"
	}
	if e.Got != "" {
		msg += " (got: " + e.Got + ")"
	}
	if e.Usage != "" {
		msg += "; usage: " + e.Usage
	}
	return msg
}
