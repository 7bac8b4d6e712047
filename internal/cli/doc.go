// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for batchrun.
//
// # Key Types
//
//   - Command: Enumeration of the available commands
//   - Args: Parsed global flags plus the raw command arguments
//   - ArgParser: Flag and positional parsing for one command
//   - JSONResponse: Envelope for --json output
//
// # Usage
//
//	cmd, args := cli.Parse()
//	if err := cli.Execute(cmd, args); err != nil {
//	    cli.HandleErrorAndExit(err, args.JSON)
//	}
//
// # Commands Overview
//
//   - (default), tui: Full-screen batch view
//   - run: Headless run that exits when the scripts are done
//   - console: Line console with completion and history
//   - history: Past runs from the SQLite journal
//   - config: Show and edit the configuration file
//   - version: Build information
//
// Every command that opens a session also starts the run journal and, when
// metrics.addr is set, the Prometheus endpoint and status server.
//
// Exit codes follow errors.go: 1 when any script failed, 2 for usage errors,
// 3 for configuration errors and 130 when a run was interrupted.
package cli
