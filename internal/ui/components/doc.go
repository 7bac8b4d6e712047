// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the widgets of the batchrun TUI.

# Components

EntryList (entrylist.go) - Scrollable batch list colored by entry status, with marks.
LogPane (logpane.go) - Viewport holding the most recent log lines.
StatusBar (statusbar.go) - Bottom line with the status text and run counters.
Help (help.go) - Key reference rendered from markdown with Glamour.
Preview (preview.go) - Syntax-highlighted view of a script using Chroma.
Prompt (prompt.go) - One-line text input for paths, arguments and parallelism.

Components hold no reference to the session; the app model copies state into
them before rendering.
*/
package components
