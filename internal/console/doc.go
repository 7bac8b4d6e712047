// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package console is the line-oriented front end of batchrun.
//
// It drives the same session as the TUI from a readline prompt with history
// and tab completion:
//
//	batchrun> add build.sh "deploy test.sh" -- --env staging
//	batchrun> parallel 4
//	batchrun> start
//	batchrun> wait
//
// Commands are declared in a Registry and parsed with shell-like quoting.
// Paths may also be wrapped in {braces} the way drag and drop delivers them.
package console
