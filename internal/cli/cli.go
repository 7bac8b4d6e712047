// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch for batchrun.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdRun
	CmdConsole
	CmdHistory
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Quiet      bool
	Verbose    bool
	JSON       bool
	ConfigPath string // --config: load this file instead of the default

	// Name is the command word as typed
	Name string

	// Raw args (remaining after global flag parsing and the command word)
	Raw []string
}

const usageText = `batchrun - run scripts in parallel with a bounded worker pool

Usage:
  batchrun [paths...]              Open the batch view (default)
  batchrun tui [paths...]          Same as above
  batchrun run [flags] paths...    Run scripts without a UI and exit
  batchrun console                 Line-oriented prompt with history
  batchrun history [flags]         Show past runs
  batchrun config [subcommand]     Show or change configuration
  batchrun version                 Show version information
  batchrun help                    Show this help

Run flags:
  --parallel N                     Scripts executing at once (default: config)
  --args=S                         Arguments for every script
  --allow-duplicates               Accept the same script more than once
  --watch DIR                      Also run scripts dropped into DIR; run until Ctrl+C
  --json                           Print a JSON summary on stdout

Batch view flags:
  --theme NAME                     dark, light or auto
  --watch DIR                      Add scripts dropped into DIR
  --help-keys                      Show the key hints footer

History flags:
  --limit N                        Number of runs to list (default 20)
  --run ID                         Show the results of one run (id prefix allowed)
  --json                           JSON output

Config subcommands:
  show                             Print the effective configuration
  get <key>                        Print one value (e.g. runner.max_parallel)
  set <key> <value>                Change a value and save it
  keys                             List every key
  path                             Show the configuration file path
  init                             Write a default configuration file
  reset                            Overwrite the file with defaults

Global flags:
  --config FILE                    Use FILE instead of ~/.batchrun/config.toml
  -q, --quiet                      Only print errors
  -v, --verbose                    Debug logging
  --json                           JSON output where supported

Examples:
  batchrun run --parallel 4 build/*.sh
  batchrun run --args="--env staging" deploy.py migrate.py
  batchrun run --watch ./inbox
  batchrun history --run 1f3a

Press ? inside the batch view for key bindings.
`

// PrintUsage writes the usage text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "batchrun version %s\n", Version)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", BuildDate)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses a command line without the program name.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	cmd := strings.ToLower(remaining[0])
	parsed.Name = remaining[0]
	parsed.Raw = remaining[1:]

	switch cmd {
	case "tui", "ui":
		return CmdTUI, parsed
	case "run", "r":
		return CmdRun, parsed
	case "console", "repl":
		return CmdConsole, parsed
	case "history", "hist":
		return CmdHistory, parsed
	case "config", "cfg":
		return CmdConfig, parsed
	case "version", "--version":
		return CmdVersion, parsed
	case "help", "-h", "--help":
		return CmdHelp, parsed
	}

	// Anything else is a path to preload, unless it is a mistyped command
	if _, err := os.Stat(remaining[0]); err != nil && SuggestCommand(cmd) != "" {
		return CmdUnknown, parsed
	}
	parsed.Name = ""
	parsed.Raw = remaining
	return CmdTUI, parsed
}

// parseGlobalFlags extracts global flags from args and returns the rest.
// Global flags may appear anywhere before a bare "--".
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	i := 0
	for i < len(args) {
		arg := args[i]

		switch {
		case arg == "--":
			remaining = append(remaining, args[i:]...)
			return remaining, parsed
		case arg == "-q" || arg == "--quiet":
			parsed.Quiet = true
		case arg == "-v" || arg == "--verbose":
			parsed.Verbose = true
		case arg == "--json":
			parsed.JSON = true
		case arg == "--config":
			if i+1 < len(args) {
				i++
				parsed.ConfigPath = args[i]
			}
		case strings.HasPrefix(arg, "--config="):
			parsed.ConfigPath = strings.TrimPrefix(arg, "--config=")
		default:
			remaining = append(remaining, arg)
		}
		i++
	}

	return remaining, parsed
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

// Execute runs cmd and returns its error. main maps the error to an exit code.
func Execute(cmd Command, args Args) error {
	switch cmd {
	case CmdTUI:
		return HandleTUI(args)
	case CmdRun:
		return HandleRun(args)
	case CmdConsole:
		return HandleConsole(args)
	case CmdHistory:
		return HandleHistory(args)
	case CmdConfig:
		return HandleConfig(args)
	case CmdVersion:
		return HandleVersion(args)
	case CmdHelp:
		PrintUsage(os.Stdout)
		return nil
	default:
		return unknownCommand(args.Name)
	}
}

func unknownCommand(name string) error {
	example := "batchrun help"
	if s := SuggestCommand(name); s != "" {
		example = "batchrun " + s
	}
	return NewValidationErrorWithExample("command", name, "unknown command", example)
}

// HandleVersion handles the "version" command.
func HandleVersion(args Args) error {
	if args.JSON {
		data := VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}
		return NewJSONResponse("version", data, nil).Print(os.Stdout)
	}
	PrintVersion(os.Stdout)
	return nil
}
